package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"push-demo-backend/internal/model"
)

var (
	subscriptionsBucket = []byte("subscriptions")
	ownersBucket        = []byte("subscriptions_by_owner")
)

// boltStore keeps subscriptions in a single bbolt file. Rows live in one
// bucket keyed by p256dh; a second bucket indexes them as owner\x00p256dh.
type boltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if needed) the bbolt file at path.
func OpenBoltStore(path string) (Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, unavailable("open bolt database", err)
	}
	s, err := NewBoltStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewBoltStore creates the buckets it needs on an already open database.
func NewBoltStore(db *bbolt.DB) (Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{subscriptionsBucket, ownersBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("initialize bolt buckets", err)
	}
	return &boltStore{db: db}, nil
}

func ownerIndexKey(ownerID, p256dh string) []byte {
	key := make([]byte, 0, len(ownerID)+1+len(p256dh))
	key = append(key, ownerID...)
	key = append(key, 0)
	return append(key, p256dh...)
}

// Upsert runs in a single read-write transaction; bbolt allows one writer at
// a time so the existence check and the insert cannot interleave.
func (s *boltStore) Upsert(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error) {
	if err := ctx.Err(); err != nil {
		return model.PushSubscription{}, err
	}

	var stored model.PushSubscription
	err := s.db.Update(func(tx *bbolt.Tx) error {
		rows := tx.Bucket(subscriptionsBucket)
		if existing := rows.Get([]byte(sub.P256DH)); existing != nil {
			var r row
			if err := json.Unmarshal(existing, &r); err != nil {
				return err
			}
			stored = r.subscription()
			return nil
		}

		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = time.Now().UTC()
		}
		value, err := json.Marshal(newRow(sub))
		if err != nil {
			return err
		}
		if err := rows.Put([]byte(sub.P256DH), value); err != nil {
			return err
		}
		if err := tx.Bucket(ownersBucket).Put(ownerIndexKey(sub.OwnerID, sub.P256DH), []byte{}); err != nil {
			return err
		}
		stored = sub
		return nil
	})
	if err != nil {
		return model.PushSubscription{}, unavailable("upsert subscription", err)
	}
	return stored, nil
}

func (s *boltStore) Remove(ctx context.Context, sub model.PushSubscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		rows := tx.Bucket(subscriptionsBucket)
		value := rows.Get([]byte(sub.P256DH))
		if value == nil {
			return nil
		}

		// The stored owner is authoritative; the caller may not know it.
		var stored row
		if err := json.Unmarshal(value, &stored); err != nil {
			return err
		}
		if err := tx.Bucket(ownersBucket).Delete(ownerIndexKey(stored.OwnerID, stored.P256DH)); err != nil {
			return err
		}
		return rows.Delete([]byte(sub.P256DH))
	})
	if err != nil {
		return unavailable("remove subscription", err)
	}
	return nil
}

func (s *boltStore) ByOwner(ctx context.Context, ownerID string) ([]model.PushSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var subs []model.PushSubscription
	prefix := ownerIndexKey(ownerID, "")
	err := s.db.View(func(tx *bbolt.Tx) error {
		rows := tx.Bucket(subscriptionsBucket)
		c := tx.Bucket(ownersBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			value := rows.Get(k[len(prefix):])
			if value == nil {
				continue
			}
			var r row
			if err := json.Unmarshal(value, &r); err != nil {
				return err
			}
			subs = append(subs, r.subscription())
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list subscriptions by owner", err)
	}
	return subs, nil
}

func (s *boltStore) All(ctx context.Context) ([]model.PushSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var subs []model.PushSubscription
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(subscriptionsBucket).ForEach(func(_, v []byte) error {
			var r row
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			subs = append(subs, r.subscription())
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("list subscriptions", err)
	}
	return subs, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
