package store

import (
	"context"
	"fmt"
)

// Options selects and configures a backend.
type Options struct {
	Driver       string
	RedisURL     string
	SQLitePath   string
	PostgresURL  string
	MessageLimit int
}

// Open builds the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(opts.MessageLimit), nil
	case "redis":
		return NewRedisStore(ctx, opts.RedisURL, opts.MessageLimit)
	case "sqlite":
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case "postgres":
		return NewPostgresStore(ctx, opts.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
