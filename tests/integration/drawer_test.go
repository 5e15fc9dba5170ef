//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestDrawer_Lifecycle(t *testing.T) {
	openResp := doPost(t, "/api/drawer/open", map[string]any{
		"operator":       "drawer-lifecycle",
		"opening_amount": 100.00,
	})
	defer openResp.Body.Close()
	if openResp.StatusCode != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d", openResp.StatusCode)
	}
	sess := decodeJSON[sessionResponse](t, openResp)

	// A second open for the same operator conflicts.
	dupResp := doPost(t, "/api/drawer/open", map[string]any{
		"operator":       "drawer-lifecycle",
		"opening_amount": 50.00,
	})
	defer dupResp.Body.Close()
	if dupResp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate open: expected 409, got %d", dupResp.StatusCode)
	}

	// Manual cash movement.
	movResp := doPost(t, "/api/drawer/movements", map[string]any{
		"session_id": sess.SessionID,
		"type":       "in",
		"amount":     20.00,
		"reason":     "change run",
	})
	defer movResp.Body.Close()
	if movResp.StatusCode != http.StatusCreated {
		t.Fatalf("movement: expected 201, got %d", movResp.StatusCode)
	}

	// Close with the exact expected amount: 100 + 20 in.
	closeResp := doPost(t, "/api/drawer/close", map[string]any{
		"session_id":     sess.SessionID,
		"closing_amount": 120.00,
	})
	defer closeResp.Body.Close()
	if closeResp.StatusCode != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", closeResp.StatusCode)
	}
	res := decodeJSON[closeResponse](t, closeResp)
	if res.ExpectedAmount != 120.00 {
		t.Fatalf("expected 120.00, got %v", res.ExpectedAmount)
	}
	if res.HasDiscrepancy {
		t.Fatalf("expected balanced close, got difference %v", res.Difference)
	}
}

func TestDrawer_CloseUnknownSession(t *testing.T) {
	resp := doPost(t, "/api/drawer/close", map[string]any{
		"session_id":     "no-such-session",
		"closing_amount": 10.00,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
