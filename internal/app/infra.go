package app

import (
	"fmt"
	"time"

	"github.com/FrK06/web-rag-original/internal/config"
	"github.com/FrK06/web-rag-original/internal/db"
	"github.com/FrK06/web-rag-original/internal/store"
	"github.com/FrK06/web-rag-original/internal/store/memstore"
	"github.com/FrK06/web-rag-original/internal/store/redisstore"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Infra holds the process-wide backing stores.
type Infra struct {
	DB *gorm.DB
	KV store.KV

	closers []func() error
}

func setupInfra(cfg config.Config, log logrus.FieldLogger) (*Infra, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.WithField("driver", cfg.DBDriver).Info("database ready")

	infra := &Infra{DB: gdb}
	if sqlDB, err := gdb.DB(); err == nil {
		infra.closers = append(infra.closers, sqlDB.Close)
	}

	switch cfg.StoreBackend {
	case "memory":
		infra.KV = memstore.New(time.Minute)
		log.Warn("kv: using in-memory store, rate limits and revocations are per process")
	default:
		rs, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = infra.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		log.WithField("addr", cfg.RedisAddr).Info("redis ready")
		infra.KV = rs
		infra.closers = append(infra.closers, rs.Close)
	}
	return infra, nil
}

// Close releases everything in reverse order of acquisition.
func (i *Infra) Close() error {
	var first error
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil && first == nil {
			first = err
		}
	}
	i.closers = nil
	return first
}
