package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/iwvelando/installment-ledger/internal/config"
)

func newMiniredisKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	kv, err := NewRedisKV(context.Background(), mr.Addr(), 0)
	if err != nil {
		t.Fatalf("NewRedisKV() error = %v", err)
	}
	return mr, kv
}

func backends(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()

	fileKV, err := NewFileKV(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewFileKV() error = %v", err)
	}
	sqliteKV, err := NewSQLiteKV(ctx, filepath.Join(t.TempDir(), "db", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV() error = %v", err)
	}
	_, redisKV := newMiniredisKV(t)

	return map[string]KV{
		"file":   fileKV,
		"sqlite": sqliteKV,
		"redis":  redisKV,
	}
}

func TestKVBackends(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer func() { _ = kv.Close() }()

			if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
				t.Errorf("Get(missing) = ok %v, err %v", ok, err)
			}

			if err := kv.Set(ctx, "painel_devedores_db", []byte(`[{"id":1}]`)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := kv.Set(ctx, "painel_devedores_db", []byte(`[{"id":2}]`)); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}

			value, ok, err := kv.Get(ctx, "painel_devedores_db")
			if err != nil || !ok {
				t.Fatalf("Get() = ok %v, err %v", ok, err)
			}
			if string(value) != `[{"id":2}]` {
				t.Errorf("Get() = %s", value)
			}

			entries := []Entry{
				{Key: "painel_devedores_db", Value: []byte(`[{"id":3}]`)},
				{Key: "painel_cartoes_db", Value: []byte(`[]`)},
			}
			if err := kv.SetMany(ctx, entries); err != nil {
				t.Fatalf("SetMany() error = %v", err)
			}
			for _, e := range entries {
				value, ok, err := kv.Get(ctx, e.Key)
				if err != nil || !ok || string(value) != string(e.Value) {
					t.Errorf("Get(%s) after SetMany = %s, ok %v, err %v", e.Key, value, ok, err)
				}
			}
		})
	}
}

func TestFileKVLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	if err != nil {
		t.Fatalf("NewFileKV() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := kv.Set(context.Background(), "painel_cartoes_db", []byte("[]")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "painel_cartoes_db.json" {
		names := []string{}
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v", names)
	}
}

func TestSQLiteKVPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	kv, err := NewSQLiteKV(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteKV() error = %v", err)
	}
	if err := kv.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_ = kv.Close()

	reopened, err := NewSQLiteKV(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteKV() reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()
	value, ok, err := reopened.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Errorf("Get() = %q, %v, %v", value, ok, err)
	}
}

func TestNewRedisKVUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisKV(context.Background(), addr, 0); err == nil {
		t.Error("NewRedisKV() expected error for a closed server")
	}
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()
	mr, _ := newMiniredisKV(t)

	tests := []struct {
		name    string
		conf    config.StorageConfig
		wantErr bool
	}{
		{"File", config.StorageConfig{Backend: "file", Path: t.TempDir()}, false},
		{"SQLite", config.StorageConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "l.db")}, false},
		{"Redis", config.StorageConfig{Backend: "redis", RedisAddr: mr.Addr()}, false},
		{"Unknown", config.StorageConfig{Backend: "s3"}, true},
		{"File without path", config.StorageConfig{Backend: "file"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := OpenKV(ctx, tt.conf, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("OpenKV() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenKV() error = %v", err)
			}
			_ = kv.Close()
		})
	}
}
