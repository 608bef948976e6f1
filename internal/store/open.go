package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"push-demo-backend/config"
	"push-demo-backend/internal/db"
)

// Open builds the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendDatabase:
		gormDB, err := db.Init(&cfg.Database)
		if err != nil {
			return nil, unavailable("open database", err)
		}
		return NewGormStore(gormDB), nil

	case config.BackendBolt:
		log.Printf("Using bolt subscription store at %s", cfg.Bolt.Path)
		return OpenBoltStore(cfg.Bolt.Path)

	case config.BackendRedis:
		s := NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}).(*redisStore)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.client.Ping(pingCtx).Err(); err != nil {
			s.Close()
			return nil, unavailable("connect to redis at "+cfg.Redis.Addr, err)
		}
		log.Printf("Using redis subscription store at %s", cfg.Redis.Addr)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
