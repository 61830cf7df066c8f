package redisc

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey  = "chat:online_users"
	roomPresenceKey = "chat:room_presence"

	presenceTTL  = 120 * time.Second
	writeTimeout = 2 * time.Second
)

type snapshot struct {
	counts map[string]int
	online []string
}

// PresenceMirror copies the chat's online counts into Redis for the forum
// pages. Only the newest snapshot is kept; the keys expire if the chat
// process goes away.
type PresenceMirror struct {
	client  *redis.Client
	updates chan snapshot
	refresh time.Duration
	logger  *slog.Logger
}

func NewPresenceMirror(client *redis.Client, logger *slog.Logger) *PresenceMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceMirror{
		client:  client,
		updates: make(chan snapshot, 1),
		refresh: presenceTTL / 2,
		logger:  logger,
	}
}

// Publish replaces any pending snapshot and never blocks.
func (m *PresenceMirror) Publish(counts map[string]int, online []string) {
	s := snapshot{counts: counts, online: online}
	for {
		select {
		case m.updates <- s:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}

// Run writes snapshots until ctx is cancelled, re-writing the last one
// periodically so the keys do not expire while the chat is up.
func (m *PresenceMirror) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.refresh)
	defer ticker.Stop()

	var last *snapshot
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-m.updates:
			last = &s
		case <-ticker.C:
			if last == nil {
				continue
			}
		}
		if err := m.write(ctx, *last); err != nil {
			m.logger.Warn("failed to mirror presence", "error", err)
		}
	}
}

func (m *PresenceMirror) write(ctx context.Context, s snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	notice, err := presenceNotice(s)
	if err != nil {
		return err
	}

	pipe := m.client.TxPipeline()
	pipe.Del(ctx, onlineUsersKey, roomPresenceKey)
	if len(s.online) > 0 {
		members := make([]interface{}, len(s.online))
		for i, id := range s.online {
			members[i] = id
		}
		pipe.SAdd(ctx, onlineUsersKey, members...)
		pipe.Expire(ctx, onlineUsersKey, presenceTTL)
	}
	if len(s.counts) > 0 {
		fields := make(map[string]interface{}, len(s.counts))
		for roomID, n := range s.counts {
			fields[roomID] = n
		}
		pipe.HSet(ctx, roomPresenceKey, fields)
		pipe.Expire(ctx, roomPresenceKey, presenceTTL)
	}
	pipe.Publish(ctx, PresenceChannel, notice)
	_, err = pipe.Exec(ctx)
	return err
}
