package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"push-demo-backend/internal/model"
)

const (
	subscriptionKeyPrefix = "push:subscription:"
	ownerKeyPrefix        = "push:owner:"
	allSubscriptionsKey   = "push:subscriptions"
)

// claimScript writes the row and both index entries in one step when the key
// is free. It returns {1, row} when it wrote, {0, stored row} otherwise.
var claimScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 1 then
	redis.call("SADD", KEYS[2], ARGV[2])
	redis.call("SADD", KEYS[3], ARGV[2])
	return {1, ARGV[1]}
end
return {0, redis.call("GET", KEYS[1])}
`)

// redisStore keeps each subscription as a JSON string under
// push:subscription:<p256dh>, indexed by the sets push:owner:<id> and
// push:subscriptions.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects a store to the redis server described by opts.
func NewRedisStore(opts *redis.Options) Store {
	return &redisStore{client: redis.NewClient(opts)}
}

func subscriptionKey(p256dh string) string { return subscriptionKeyPrefix + p256dh }
func ownerKey(ownerID string) string       { return ownerKeyPrefix + ownerID }

// Upsert claims the key and indexes it atomically, so only one of several
// concurrent registrations of the same p256dh writes the row. An existing row
// is returned as stored and re-added to its indexes.
func (s *redisStore) Upsert(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(newRow(sub))
	if err != nil {
		return model.PushSubscription{}, err
	}

	keys := []string{subscriptionKey(sub.P256DH), ownerKey(sub.OwnerID), allSubscriptionsKey}
	res, err := claimScript.Run(ctx, s.client, keys, value, sub.P256DH).Slice()
	if err != nil {
		return model.PushSubscription{}, unavailable("upsert subscription", err)
	}
	if len(res) != 2 {
		return model.PushSubscription{}, unavailable("upsert subscription", fmt.Errorf("unexpected script reply %v", res))
	}
	if created, _ := res[0].(int64); created == 1 {
		return sub, nil
	}

	stored, ok := res[1].(string)
	if !ok {
		return model.PushSubscription{}, unavailable("upsert subscription", fmt.Errorf("unexpected stored value %T", res[1]))
	}
	var r row
	if err := json.Unmarshal([]byte(stored), &r); err != nil {
		return model.PushSubscription{}, unavailable("decode existing subscription", err)
	}

	// Rows left behind without index entries become reachable again.
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, ownerKey(r.OwnerID), r.P256DH)
		pipe.SAdd(ctx, allSubscriptionsKey, r.P256DH)
		return nil
	}); err != nil {
		return model.PushSubscription{}, unavailable("index subscription", err)
	}
	return r.subscription(), nil
}

func (s *redisStore) Remove(ctx context.Context, sub model.PushSubscription) error {
	key := subscriptionKey(sub.P256DH)

	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return unavailable("read subscription", err)
	}

	ownerID := sub.OwnerID
	var r row
	if err := json.Unmarshal(value, &r); err == nil {
		ownerID = r.OwnerID
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, ownerKey(ownerID), sub.P256DH)
	pipe.SRem(ctx, allSubscriptionsKey, sub.P256DH)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("remove subscription", err)
	}
	return nil
}

func (s *redisStore) ByOwner(ctx context.Context, ownerID string) ([]model.PushSubscription, error) {
	subs, err := s.loadIndex(ctx, ownerKey(ownerID))
	if err != nil {
		return nil, unavailable("list subscriptions by owner", err)
	}
	return subs, nil
}

func (s *redisStore) All(ctx context.Context) ([]model.PushSubscription, error) {
	subs, err := s.loadIndex(ctx, allSubscriptionsKey)
	if err != nil {
		return nil, unavailable("list subscriptions", err)
	}
	return subs, nil
}

// loadIndex resolves the members of an index set into rows. Members whose
// row no longer exists are dropped from the set.
func (s *redisStore) loadIndex(ctx context.Context, index string) ([]model.PushSubscription, error) {
	members, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = subscriptionKey(m)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	subs := make([]model.PushSubscription, 0, len(values))
	var stale []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var r row
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			log.Printf("skipping undecodable subscription %s: %v", keys[i], err)
			continue
		}
		subs = append(subs, r.subscription())
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, index, stale...).Err(); err != nil {
			log.Printf("failed to prune %d stale members of %s: %v", len(stale), index, err)
		}
	}
	return subs, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
