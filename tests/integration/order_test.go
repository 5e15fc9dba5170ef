//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var orderNumberPattern = regexp.MustCompile(`^POS-\d{8}-[23456789A-HJKMNP-Z]{6}$`)

func checkoutBody(sku string, qty int, price float64, tendered float64) map[string]any {
	return map[string]any{
		"lines": []map[string]any{
			{"item_id": sku, "sku": sku, "name": sku, "quantity": qty, "unit_price": price},
		},
		"payments": []map[string]any{
			{"method": "cash", "amount": tendered},
		},
		"actor": "integration",
	}
}

func TestCheckout_Sale(t *testing.T) {
	resp := doPost(t, "/api/checkout", checkoutBody("STICKER-PACK", 2, 4.50, 10))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	receipt := decodeJSON[receiptResponse](t, resp)
	if !orderNumberPattern.MatchString(receipt.OrderNumber) {
		t.Fatalf("unexpected order number %q", receipt.OrderNumber)
	}
	if receipt.Total != 9.00 {
		t.Fatalf("expected total 9.00, got %v", receipt.Total)
	}
	if receipt.ChangeDue != 1.00 {
		t.Fatalf("expected change 1.00, got %v", receipt.ChangeDue)
	}

	// The receipt must be readable back as a completed, paid order.
	orderResp := doGet(t, "/api/orders/"+receipt.OrderID)
	defer orderResp.Body.Close()
	if orderResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", orderResp.StatusCode)
	}
	ord := decodeJSON[orderResponse](t, orderResp)
	if ord.Status != "completed" || ord.PaymentStatus != "paid" {
		t.Fatalf("expected completed/paid, got %s/%s", ord.Status, ord.PaymentStatus)
	}
}

func TestCheckout_Shortfall(t *testing.T) {
	resp := doPost(t, "/api/checkout", checkoutBody("MUG-CLASSIC", 2, 12.00, 20.00))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	errBody := decodeJSON[errorResponse](t, resp)
	if errBody.Kind != "payment_shortfall" {
		t.Fatalf("expected payment_shortfall, got %q", errBody.Kind)
	}
	if errBody.Remaining != 4.00 {
		t.Fatalf("expected remaining 4.00, got %v", errBody.Remaining)
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	resp := doPost(t, "/api/checkout", checkoutBody("HOODIE-GRY-S", 10_000, 55.00, 600_000))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	errBody := decodeJSON[errorResponse](t, resp)
	if errBody.Kind != "insufficient_stock" {
		t.Fatalf("expected insufficient_stock, got %q", errBody.Kind)
	}
	if errBody.SKU != "HOODIE-GRY-S" {
		t.Fatalf("expected sku HOODIE-GRY-S, got %q", errBody.SKU)
	}
}

func TestCheckout_UnknownSKU(t *testing.T) {
	resp := doPost(t, "/api/checkout", checkoutBody("NO-SUCH-SKU", 1, 5, 5))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCheckout_MalformedBody(t *testing.T) {
	resp := doPost(t, "/api/checkout", "not an object")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReturn_FullRefund(t *testing.T) {
	// Sell first so there is something to return.
	saleResp := doPost(t, "/api/checkout", checkoutBody("TSHIRT-BLK-M", 1, 25.00, 25.00))
	defer saleResp.Body.Close()
	if saleResp.StatusCode != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d", saleResp.StatusCode)
	}
	sale := decodeJSON[receiptResponse](t, saleResp)

	resp := doPost(t, "/api/returns", map[string]any{
		"original_order_id": sale.OrderID,
		"return_lines": []map[string]any{
			{"item_id": "TSHIRT-BLK-M", "sku": "TSHIRT-BLK-M", "name": "tshirt", "quantity": -1, "unit_price": 25.00, "restock": true},
		},
		"payment_method": "cash",
		"actor":          "integration",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	ret := decodeJSON[returnResponse](t, resp)
	if ret.RefundDue != 25.00 {
		t.Fatalf("expected refund 25.00, got %v", ret.RefundDue)
	}

	// The original order is now refunded.
	orderResp := doGet(t, "/api/orders/"+sale.OrderID)
	defer orderResp.Body.Close()
	ord := decodeJSON[orderResponse](t, orderResp)
	if ord.Status != "refunded" {
		t.Fatalf("expected refunded, got %s", ord.Status)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/no-such-order")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
