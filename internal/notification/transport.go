package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Transport delivers an encoded message to its push service and reports the
// HTTP status it answered with.
type Transport interface {
	Post(ctx context.Context, msg *EncodedMessage) (int, error)
}

// HTTPTransport is the Transport used in production.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a transport whose client gives up after timeout.
// The dispatcher's per-subscription context usually fires first.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

// Post sends msg and drains the response so the connection can be reused.
func (t *HTTPTransport) Post(ctx context.Context, msg *EncodedMessage) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.Endpoint, bytes.NewReader(msg.Body))
	if err != nil {
		return 0, err
	}
	req.Header = msg.Header.Clone()

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}
