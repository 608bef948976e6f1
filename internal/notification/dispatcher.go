package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"push-demo-backend/internal/model"
	"push-demo-backend/internal/store"
)

var (
	// ErrDeliveryPermanent means the push service no longer knows the
	// subscription (404 or 410); it is removed from the store.
	ErrDeliveryPermanent = errors.New("subscription expired or unsubscribed")
	// ErrDeliveryTransient covers every other failure. It is logged and
	// counted; the subscription is kept and the message is not retried.
	ErrDeliveryTransient = errors.New("push delivery failed")
)

// DeliveryError describes one failed delivery. Err wraps either
// ErrDeliveryPermanent or ErrDeliveryTransient.
type DeliveryError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("push to %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("push to %s: %v", e.Endpoint, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// classify maps a push service answer to nil (delivered) or a *DeliveryError.
func classify(endpoint string, status int, err error) error {
	if err != nil {
		return &DeliveryError{Endpoint: endpoint, Err: fmt.Errorf("%w: %w", ErrDeliveryTransient, err)}
	}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return &DeliveryError{Endpoint: endpoint, StatusCode: status, Err: ErrDeliveryPermanent}
	default:
		return &DeliveryError{Endpoint: endpoint, StatusCode: status, Err: ErrDeliveryTransient}
	}
}

// Options tune a Dispatcher. Zero values fall back to defaults.
type Options struct {
	Concurrency int
	Timeout     time.Duration // per subscription
	TTL         int           // seconds
	Urgency     string
}

// Dispatcher delivers a notification to every device of an owner.
type Dispatcher struct {
	store     store.Store
	encoder   *Encoder
	transport Transport
	metrics   *Metrics
	opts      Options
}

// NewDispatcher wires a dispatcher. metrics may be nil.
func NewDispatcher(st store.Store, enc *Encoder, tr Transport, metrics *Metrics, opts Options) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 3600
	}
	return &Dispatcher{
		store:     st,
		encoder:   enc,
		transport: tr,
		metrics:   metrics,
		opts:      opts,
	}
}

// Send pushes n to every subscription ownerID holds at the time of the call.
// Delivery failures are logged and counted, never returned; only a failure to
// load the subscriptions or to remove an expired one is reported.
func (d *Dispatcher) Send(ctx context.Context, ownerID string, n model.Notification) error {
	subs, err := d.store.ByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load subscriptions of %s: %w", ownerID, err)
	}
	if len(subs) == 0 {
		log.Printf("No subscriptions for owner %s", ownerID)
		return nil
	}
	n.Normalize()

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(d.opts.Concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			if err := d.deliver(ctx, sub, n); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return errors.Join(errs...)
}

// deliver handles one subscription. It only returns cleanup errors.
func (d *Dispatcher) deliver(ctx context.Context, sub model.PushSubscription, n model.Notification) error {
	start := time.Now()

	msg, err := d.encoder.Encode(ctx, sub, n, d.opts.TTL, d.opts.Urgency)
	if err != nil {
		log.Printf("Skipping subscription %s: %v", sub.Endpoint, err)
		d.metrics.observe(OutcomeEncoding, 0)
		return nil
	}

	postCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	status, err := d.transport.Post(postCtx, msg)
	cancel()

	derr := classify(sub.Endpoint, status, err)
	elapsed := time.Since(start).Seconds()
	switch {
	case derr == nil:
		d.metrics.observe(OutcomeDelivered, elapsed)
		return nil

	case errors.Is(derr, ErrDeliveryPermanent):
		d.metrics.observe(OutcomeGone, elapsed)
		log.Printf("Subscription for endpoint %s is gone (status %d). Deleting.", sub.Endpoint, status)
		if err := d.store.Remove(ctx, sub); err != nil {
			return fmt.Errorf("remove expired subscription %s: %w", sub.Endpoint, err)
		}
		d.metrics.prunedOne()
		return nil

	default:
		d.metrics.observe(OutcomeTransient, elapsed)
		log.Printf("Error sending notification: %v", derr)
		return nil
	}
}
