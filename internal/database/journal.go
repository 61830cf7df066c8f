package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/umar/forum-livechat/internal/models"
)

const journalBuffer = 512

// Journal writes room lifecycle events to Postgres in the background. It is
// write-only: chat state is never rebuilt from it.
type Journal struct {
	events chan models.RoomEvent
	insert func(context.Context, models.RoomEvent) error
	logger *slog.Logger
}

func NewJournal(db *sql.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		events: make(chan models.RoomEvent, journalBuffer),
		insert: func(ctx context.Context, e models.RoomEvent) error {
			return InsertRoomEvent(ctx, db, e)
		},
		logger: logger,
	}
}

// Record queues e and drops it if the queue is full.
func (j *Journal) Record(e models.RoomEvent) {
	select {
	case j.events <- e:
	default:
		j.logger.Warn("journal queue full, dropping event", "room_id", e.RoomID, "kind", e.Kind)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return nil
		case e := <-j.events:
			j.write(ctx, e)
		}
	}
}

func (j *Journal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-j.events:
			j.write(ctx, e)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, e models.RoomEvent) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := j.insert(ctx, e); err != nil {
		j.logger.Error("failed to journal room event", "room_id", e.RoomID, "kind", e.Kind, "error", err)
	}
}
