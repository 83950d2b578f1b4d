// Package templatestore provides the persistence adapters behind
// mapping.Store: in-memory, JSON file, PostgreSQL, SQLite and Redis.
//
// Every adapter assigns ids with mapping.NewRecord, applies updates with
// mapping.Patch.Apply and reports unknown ids as mapping.ErrNotFound, so
// callers can swap backends without changing behaviour.
package templatestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/logging"
	"github.com/JonMunkholm/sheetimport/internal/mapping"
)

// Store kinds accepted by Open.
const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindRedis    = "redis"
)

// ErrUnknownKind is returned by Open for an unsupported store kind.
var ErrUnknownKind = errors.New("unknown template store")

// Store is a mapping.Store that holds resources until closed.
type Store interface {
	mapping.Store
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Kind string

	// Path is the JSON file (file) or database file (sqlite).
	Path string

	// DatabaseURL and MaxConns configure the postgres pool.
	DatabaseURL string
	MaxConns    int32

	Redis RedisOptions
}

// OptionsFromConfig maps the store section of the configuration.
func OptionsFromConfig(cfg config.StoreConfig) Options {
	return Options{
		Kind:        cfg.Kind,
		Path:        cfg.Path,
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    int32(cfg.MaxConns),
		Redis: RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		},
	}
}

// Open returns the backend named by opts.Kind. An empty kind means memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Kind) {
	case "", KindMemory:
		return NewMemory(), nil
	case KindFile:
		return NewFile(opts.Path)
	case KindPostgres:
		return NewPostgres(ctx, opts.DatabaseURL, opts.MaxConns)
	case KindSQLite:
		return NewSQLite(ctx, opts.Path)
	case KindRedis:
		return NewRedis(ctx, opts.Redis)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
}

func logWrite(ctx context.Context, store, op, id string) {
	logging.FromContext(ctx).Debug("template store write", "store", store, "op", op, "template_id", id)
}

func notFound(ctx context.Context, store, op, id string) error {
	logging.FromContext(ctx).Warn("template not found", "store", store, "op", op, "template_id", id)
	return mapping.ErrNotFound
}

// clone copies the slices of t so callers cannot mutate stored state.
func clone(t mapping.Template) mapping.Template {
	t.Mappings = slices.Clone(t.Mappings)
	t.ApplicablePatterns = slices.Clone(t.ApplicablePatterns)
	if t.LastUsed != nil {
		at := *t.LastUsed
		t.LastUsed = &at
	}
	return t
}
