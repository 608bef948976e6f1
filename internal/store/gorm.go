package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"push-demo-backend/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store. The push_subscriptions table
// must already be migrated (see db.Init).
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Upsert relies on ON CONFLICT DO NOTHING so two concurrent registrations of
// the same key cannot both insert.
func (s *gormStore) Upsert(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error) {
	var stored model.PushSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "p256dh"}},
			DoNothing: true,
		}).Create(&sub).Error; err != nil {
			return err
		}
		return tx.Where("p256dh = ?", sub.P256DH).First(&stored).Error
	})
	if err != nil {
		return model.PushSubscription{}, unavailable("upsert subscription", err)
	}
	return stored, nil
}

func (s *gormStore) Remove(ctx context.Context, sub model.PushSubscription) error {
	if err := s.db.WithContext(ctx).
		Where("p256dh = ?", sub.P256DH).
		Delete(&model.PushSubscription{}).Error; err != nil {
		return unavailable("remove subscription", err)
	}
	return nil
}

func (s *gormStore) ByOwner(ctx context.Context, ownerID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&subs).Error; err != nil {
		return nil, unavailable("list subscriptions by owner", err)
	}
	return subs, nil
}

func (s *gormStore) All(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, unavailable("list subscriptions", err)
	}
	return subs, nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
