// Package store persists the ledger as three JSON snapshots in a key-value
// backend and exposes the ledger operations as a repository.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iwvelando/installment-ledger/internal/config"
	"github.com/iwvelando/installment-ledger/pkg/constants"
)

// KV is the key-value backend holding the snapshots. Values are opaque
// JSON documents.
type KV interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// SetMany replaces several values together. Either every entry is
	// written or, on error, none is visible.
	SetMany(ctx context.Context, entries []Entry) error
	Close() error
}

// Entry is one key and value of a SetMany batch.
type Entry struct {
	Key   string
	Value []byte
}

// OpenKV opens the backend selected in the storage configuration.
func OpenKV(ctx context.Context, conf config.StorageConfig, logger *zap.Logger) (KV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("opening storage backend",
		zap.String("op", "store.OpenKV"),
		zap.String("backend", conf.Backend),
	)

	switch conf.Backend {
	case constants.StorageBackendFile:
		return NewFileKV(conf.Path)
	case constants.StorageBackendSQLite:
		return NewSQLiteKV(ctx, conf.Path)
	case constants.StorageBackendRedis:
		return NewRedisKV(ctx, conf.RedisAddr, conf.RedisDB)
	}
	return nil, fmt.Errorf("unknown storage backend %q", conf.Backend)
}
