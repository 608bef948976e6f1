package notification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"

	"push-demo-backend/internal/model"
	"push-demo-backend/internal/vapid"
)

// ErrEncoding means a message could not be built for a subscription, usually
// because its keys are malformed. Such subscriptions are skipped, not removed.
var ErrEncoding = errors.New("cannot encode push message")

const (
	p256dhLength = 65
	authLength   = 16
)

var urgencies = map[string]webpush.Urgency{
	string(webpush.UrgencyVeryLow): webpush.UrgencyVeryLow,
	string(webpush.UrgencyLow):     webpush.UrgencyLow,
	string(webpush.UrgencyNormal):  webpush.UrgencyNormal,
	string(webpush.UrgencyHigh):    webpush.UrgencyHigh,
}

// EncodedMessage is an encrypted push message ready to be POSTed to Endpoint.
type EncodedMessage struct {
	Endpoint string
	Body     []byte
	Header   http.Header
}

// Encoder turns a notification into an aes128gcm encrypted request for one
// subscription.
type Encoder struct {
	identity   *vapid.Identity
	topic      string
	recordSize uint32
}

// NewEncoder returns an encoder signing with identity. topic and recordSize
// are optional; zero values leave the Topic header off and use 4096 byte records.
func NewEncoder(identity *vapid.Identity, topic string, recordSize uint32) *Encoder {
	return &Encoder{identity: identity, topic: topic, recordSize: recordSize}
}

// Encode encrypts n for sub. Nothing is sent; the returned message carries the
// body and every header the push service expects.
func (e *Encoder) Encode(ctx context.Context, sub model.PushSubscription, n model.Notification, ttl int, urgency string) (*EncodedMessage, error) {
	if err := validateKey(sub.P256DH, p256dhLength); err != nil {
		return nil, fmt.Errorf("%w: p256dh: %v", ErrEncoding, err)
	}
	if err := validateKey(sub.Auth, authLength); err != nil {
		return nil, fmt.Errorf("%w: auth: %v", ErrEncoding, err)
	}
	token, err := e.identity.SignFor(sub.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	n.Normalize()
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal notification: %v", ErrEncoding, err)
	}

	u, ok := urgencies[urgency]
	if !ok {
		u = webpush.UrgencyNormal
	}
	if ttl < 0 {
		ttl = 0
	}

	capture := &captureClient{}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256DH, Auth: sub.Auth},
	}, e.identity.WebPushOptions(webpush.Options{
		HTTPClient: capture,
		RecordSize: e.recordSize,
		Topic:      e.topic,
		TTL:        ttl,
		Urgency:    u,
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	resp.Body.Close()

	capture.header.Set("Authorization", token.Header())
	return &EncodedMessage{
		Endpoint: sub.Endpoint,
		Body:     capture.body,
		Header:   capture.header,
	}, nil
}

// captureClient records the request webpush builds instead of sending it.
type captureClient struct {
	body   []byte
	header http.Header
}

func (c *captureClient) Do(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body.Close()

	c.body = body
	c.header = req.Header.Clone()
	return &http.Response{
		StatusCode: http.StatusCreated,
		Header:     http.Header{},
		Body:       http.NoBody,
		Request:    req,
	}, nil
}

// validateKey checks that key decodes to exactly want bytes. Browsers hand
// out base64url without padding but stored keys may use any flavour.
func validateKey(key string, want int) error {
	raw, err := decodeAnyBase64(key)
	if err != nil {
		return err
	}
	if len(raw) != want {
		return fmt.Errorf("decoded to %d bytes, want %d", len(raw), want)
	}
	if want == p256dhLength && raw[0] != 0x04 {
		return errors.New("not an uncompressed P-256 point")
	}
	return nil
}

func decodeAnyBase64(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, errors.New("empty key")
	}
	if raw, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
