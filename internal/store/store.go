package store

import (
	"context"
	"errors"
	"fmt"

	"push-demo-backend/internal/model"
)

// ErrStorageUnavailable wraps every I/O failure of a backend.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store is the keyed collection of push subscriptions. Rows are keyed by the
// client's p256dh key; every operation is atomic for a single row.
type Store interface {
	// Upsert inserts sub unless a row with the same p256dh exists, in which
	// case the existing row is returned unchanged.
	Upsert(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error)
	// Remove deletes the row with sub's p256dh. Removing a missing row is not an error.
	Remove(ctx context.Context, sub model.PushSubscription) error
	// ByOwner returns every subscription of ownerID in no particular order.
	ByOwner(ctx context.Context, ownerID string) ([]model.PushSubscription, error)
	// All returns every stored subscription.
	All(ctx context.Context) ([]model.PushSubscription, error)
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
