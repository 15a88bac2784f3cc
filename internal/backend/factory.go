// Package backend constructs the configured remote store adapter.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"kudi/internal/remote"
	"kudi/internal/remote/memory"
	"kudi/internal/remote/postgres"
)

// New creates a remote store from config. The cleanup function is always
// non-nil and safe to call once.
func New(ctx context.Context, cfg remote.Config) (remote.Store, remote.CleanupFunc, error) {
	if !cfg.Type.IsValid() {
		return nil, nil, fmt.Errorf("invalid remote backend: %s", cfg.Type)
	}

	switch cfg.Type {
	case remote.PostgresBackend:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize postgres remote: %w", err)
		}
		slog.InfoContext(ctx, "Remote backend initialized", "backend", cfg.Type)
		return store, store.Close, nil
	default:
		store := memory.New()
		slog.InfoContext(ctx, "Remote backend initialized", "backend", cfg.Type)
		return store, func() error { return nil }, nil
	}
}
