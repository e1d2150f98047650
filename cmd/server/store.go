package main

import (
	"context"
	"fmt"
	"time"

	"gigearn-link/internal/cache"
	"gigearn-link/internal/config"
	"gigearn-link/internal/dependency"
	"gigearn-link/internal/memory"
	"gigearn-link/internal/repository"
	"gigearn-link/internal/util"
)

// tokenStore is a KV backend plus whatever it needs released on exit.
type tokenStore struct {
	dependency.KVStore
	purger dependency.Purger
	close  func() error
}

func (s tokenStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openTokenStore(ctx context.Context, cfg *config.Config) (tokenStore, error) {
	if cfg.Store.Kind == config.StoreMemory {
		util.LogWarn("in-memory token store: credentials are lost on restart")
		m := memory.NewMemoryStore()
		return tokenStore{KVStore: m, purger: m}, nil
	}

	cipher, err := util.NewCipher(cfg.Store.SecretKey)
	if err != nil {
		return tokenStore{}, err
	}

	switch cfg.Store.Kind {
	case config.StorePostgres, config.StoreSQLite:
		var db *repository.Database
		if cfg.Store.Kind == config.StorePostgres {
			db, err = repository.New(cfg.Database, cipher, cfg.AutoMigration)
		} else {
			db, err = repository.NewSQLite(cfg.Store.SQLitePath, cipher, cfg.AutoMigration)
		}
		if err != nil {
			return tokenStore{}, fmt.Errorf("failed connect to db: %w", err)
		}
		repo := db.TokenRepository()
		purger, _ := repo.(dependency.Purger)
		return tokenStore{KVStore: repo, purger: purger, close: db.Close}, nil

	case config.StoreRedis:
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return tokenStore{}, err
		}
		return tokenStore{KVStore: cache.NewRedisStore(client, cipher), close: client.Close}, nil
	}

	return tokenStore{}, fmt.Errorf("unknown token store %q", cfg.Store.Kind)
}

// runJanitor sweeps expired pending states from backends without native TTLs.
func runJanitor(ctx context.Context, store tokenStore, every time.Duration) {
	if store.purger == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.purger.PurgeExpired(ctx)
			if err != nil {
				util.LogError(err, "component", "janitor")
				continue
			}
			if n > 0 {
				util.LogDebug("purged expired token entries", "count", n)
			}
		}
	}
}
