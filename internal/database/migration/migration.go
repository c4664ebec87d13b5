package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

// Every step is idempotent so an existing posts table picks up newer columns
// (the claim lease) on the next start.
var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_posts",
		SQL: `CREATE TABLE IF NOT EXISTS posts (
  id             UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  user_id        UUID        NULL,
  title          TEXT        NOT NULL,
  kind           TEXT        NOT NULL CHECK (kind IN ('image', 'document')),
  content        TEXT        NOT NULL,
  test_id        TEXT        NULL,
  happened_at    TIMESTAMPTZ NULL,
  processed      BOOLEAN     NOT NULL DEFAULT false,
  extracted_data JSONB       NULL,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "add_column_posts_claimed_at",
		SQL:  `ALTER TABLE posts ADD COLUMN IF NOT EXISTS claimed_at TIMESTAMPTZ NULL;`,
	},
	{
		Name: "add_column_posts_claim_token",
		SQL:  `ALTER TABLE posts ADD COLUMN IF NOT EXISTS claim_token UUID NULL;`,
	},
	{
		Name: "create_index_posts_pending",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_posts_pending ON posts (created_at, id) WHERE processed = false;`,
	},
	{
		Name: "create_index_posts_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts (user_id);`,
	},
	{
		Name: "create_index_posts_kind_processed",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_posts_kind_processed ON posts (kind, processed);`,
	},
}

// EnsureMigrated brings the posts schema up to date.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With("component", "database", "db_host", dbHost)

	var exists bool
	query := "SELECT to_regclass('public.posts') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	mode := "fresh"
	if exists {
		mode = "upgrade"
	}
	log.Info("db_migration_start", "mode", mode, "steps", len(steps))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Debug("db_migration_step",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info("db_migration_success", "mode", mode, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
