package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Layr-Labs/gasaudit-go/pkg/config"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence/badger"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence/memory"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence/redis"
)

func newStore(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.IAuditPersistence, error) {
	switch cfg.Type {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceTypeBadger:
		store, err := badger.NewBadgerPersistence(cfg.DataDir, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return store, nil
	case config.PersistenceTypeRedis:
		store, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.Type)
	}
}
