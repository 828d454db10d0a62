package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/mcsched/internal/config"
)

// Open builds the store described by cfg. It returns nil when no backend
// is enabled. The result is always a *MultiStore so callers can Close it.
func Open(ctx context.Context, cfg config.SnapshotConfig, logger *slog.Logger) (*MultiStore, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	var stores []Store
	for _, backend := range cfg.Backends {
		switch backend {
		case config.BackendNone, "":
			continue
		case config.BackendFile:
			stores = append(stores, NewFileStore(cfg.Path))
		case config.BackendSQLite:
			st, err := NewSQLiteStore(cfg.DBPath, cfg.Keep, logger)
			if err != nil {
				NewMultiStore(stores...).Close()
				return nil, err
			}
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				NewMultiStore(stores...).Close()
				return nil, fmt.Errorf("migrate snapshot db: %w", err)
			}
			stores = append(stores, st)
		case config.BackendS3:
			st, err := NewS3StoreFromConfig(ctx, cfg.Region, cfg.Bucket, cfg.Key, logger)
			if err != nil {
				NewMultiStore(stores...).Close()
				return nil, err
			}
			stores = append(stores, st)
		default:
			NewMultiStore(stores...).Close()
			return nil, fmt.Errorf("unknown snapshot backend %q", backend)
		}
	}
	ms := NewMultiStore(stores...)
	logger.Info("snapshot store ready", "store", ms.Name(), "autosave", cfg.Autosave, "restore", cfg.Restore)
	return ms, nil
}
