// internal/cache/overrides.go
package cache

import (
	"context"
	"database/sql"
	"fmt"

	"schedule-designgen/internal/common/logger"
)

// OverrideStore holds user edits made on top of a generated design. They are dropped whenever
// the underlying artifact is invalidated.
type OverrideStore interface {
	DeleteOverride(ctx context.Context, key string) error
	HasOverride(ctx context.Context, key string) (bool, error)
}

type PostgresOverrides struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresOverrides(db *sql.DB, log logger.Logger) *PostgresOverrides {
	return &PostgresOverrides{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "override-store"}),
	}
}

func (p *PostgresOverrides) DeleteOverride(ctx context.Context, key string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM design_overrides WHERE idb_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete override %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		p.logger.Info("User override removed", map[string]interface{}{
			"key":  key,
			"rows": n,
		})
	}
	return nil
}

func (p *PostgresOverrides) HasOverride(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM design_overrides WHERE idb_key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query override %s: %w", key, err)
	}
	return exists, nil
}

// NoopOverrides is used when no override database is configured.
type NoopOverrides struct{}

func (NoopOverrides) DeleteOverride(ctx context.Context, key string) error { return nil }

func (NoopOverrides) HasOverride(ctx context.Context, key string) (bool, error) { return false, nil }
