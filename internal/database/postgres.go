package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/umar/forum-livechat/internal/models"
)

func InitDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// --- Room events ---

func InsertRoomEvent(ctx context.Context, db *sql.DB, e models.RoomEvent) error {
	var actor sql.NullString
	if e.ActorID != "" {
		actor = sql.NullString{String: e.ActorID, Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO chat_room_events (room_id, kind, actor_id, occurred_at) VALUES ($1, $2, $3, $4)`,
		e.RoomID, e.Kind, actor, e.At,
	)
	if err != nil {
		return fmt.Errorf("failed to insert room event: %w", err)
	}
	return nil
}

func ListRoomEvents(ctx context.Context, db *sql.DB, roomID string, limit int) ([]models.RoomEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT room_id, kind, actor_id, occurred_at FROM chat_room_events
		 WHERE room_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list room events: %w", err)
	}
	defer rows.Close()

	var events []models.RoomEvent
	for rows.Next() {
		var e models.RoomEvent
		var actor sql.NullString
		if err := rows.Scan(&e.RoomID, &e.Kind, &actor, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan room event: %w", err)
		}
		e.ActorID = actor.String
		events = append(events, e)
	}
	return events, rows.Err()
}
