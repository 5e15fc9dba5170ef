package catalogsync

import (
	"bytes"
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// HTTPPusher delivers jobs to the external platform over HTTP. The wire
// protocol beyond this envelope is the platform's concern.
type HTTPPusher struct {
	client  *http.Client
	baseURL string
}

// NewHTTPPusher creates a pusher posting to baseURL.
func NewHTTPPusher(client *http.Client, baseURL string) *HTTPPusher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPusher{client: client, baseURL: baseURL}
}

// Push posts the job envelope {entity_type, entity_id, action, payload}.
func (p *HTTPPusher) Push(ctx context.Context, job Job) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("entity_type")
	e.Str(job.EntityType)
	e.FieldStart("entity_id")
	e.Str(job.EntityID)
	e.FieldStart("action")
	e.Str(job.Action)
	e.FieldStart("payload")
	if len(job.Payload) > 0 {
		e.Raw(job.Payload)
	} else {
		e.Null()
	}
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post sync job")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return errors.Errorf("platform responded %d", resp.StatusCode)
	}
	return nil
}
