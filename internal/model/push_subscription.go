package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// The client's ECDH public key doubles as the primary key.
type PushSubscription struct {
	P256DH         string    `gorm:"column:p256dh;primaryKey" json:"p256dh"`
	OwnerID        string    `gorm:"index;size:64;not null" json:"userId"`
	Endpoint       string    `gorm:"not null" json:"endpoint"`
	ExpirationTime *float64  `json:"expirationTime"` // epoch ms, advisory only
	Auth           string    `gorm:"not null" json:"auth"`
	CreatedAt      time.Time `gorm:"not null" json:"-"`
}
