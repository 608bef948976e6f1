package store

import (
	"time"

	"push-demo-backend/internal/model"
)

// row is the JSON form persisted by the key-value backends. It spells out
// every column, unlike the API form of model.PushSubscription.
type row struct {
	OwnerID        string    `json:"owner_id"`
	Endpoint       string    `json:"endpoint"`
	ExpirationTime *float64  `json:"expiration_time,omitempty"`
	P256DH         string    `json:"p256dh"`
	Auth           string    `json:"auth"`
	CreatedAt      time.Time `json:"created_at"`
}

func newRow(sub model.PushSubscription) row {
	return row{
		OwnerID:        sub.OwnerID,
		Endpoint:       sub.Endpoint,
		ExpirationTime: sub.ExpirationTime,
		P256DH:         sub.P256DH,
		Auth:           sub.Auth,
		CreatedAt:      sub.CreatedAt,
	}
}

func (r row) subscription() model.PushSubscription {
	return model.PushSubscription{
		OwnerID:        r.OwnerID,
		Endpoint:       r.Endpoint,
		ExpirationTime: r.ExpirationTime,
		P256DH:         r.P256DH,
		Auth:           r.Auth,
		CreatedAt:      r.CreatedAt,
	}
}
