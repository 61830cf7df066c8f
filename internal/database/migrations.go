package database

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_room_events (
    id          BIGSERIAL PRIMARY KEY,
    room_id     TEXT NOT NULL,
    kind        TEXT NOT NULL CHECK (kind IN ('created', 'reopened', 'closed', 'deleted')),
    actor_id    TEXT,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chat_room_events_room ON chat_room_events (room_id, occurred_at DESC);
`

func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
