package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"register-shift-service/internal/config"
	"register-shift-service/internal/database"
	"register-shift-service/internal/logger"
)

// New builds the Store selected by cfg.Type.
func New(ctx context.Context, cfg config.StateStorage) (Store, error) {
	logger.Log.Info("Initialising state store", zap.String("type", cfg.Type))

	switch cfg.Type {
	case "mysql", "sqlite":
		db, err := database.NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLStore(db), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return NewRedisStore(client), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state storage type %q", cfg.Type)
	}
}
