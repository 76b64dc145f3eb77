// Package divergence keeps a journal of writes that reached the relational
// store but not the document store, so they can be found and resynced later.
package divergence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultMaxEntries caps each per-entity list.
const DefaultMaxEntries = 1000

// Entry describes one divergence between the two stores.
type Entry struct {
	ID           uuid.UUID         `json:"id"`
	Entity       domain.EntityType `json:"entity"`
	Operation    string            `json:"operation"`
	RelationalID string            `json:"relational_id,omitempty"`
	DocumentID   string            `json:"document_id,omitempty"`
	Outcome      string            `json:"outcome"`
	Error        string            `json:"error,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// Journal records divergences and lists the most recent ones.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, entity domain.EntityType, limit int64) ([]Entry, error)
}

func key(entity domain.EntityType) string {
	return "divergence:" + string(entity)
}

type redisJournal struct {
	client     *redis.Client
	maxEntries int64
}

// NewRedisJournal stores entries newest first in one capped list per entity.
func NewRedisJournal(client *redis.Client, maxEntries int64) Journal {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &redisJournal{client: client, maxEntries: maxEntries}
}

func (j *redisJournal) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode divergence entry: %w", err)
	}

	pipe := j.client.TxPipeline()
	pipe.LPush(ctx, key(entry.Entity), payload)
	pipe.LTrim(ctx, key(entry.Entity), 0, j.maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record divergence: %w", err)
	}
	return nil
}

func (j *redisJournal) Recent(ctx context.Context, entity domain.EntityType, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	raw, err := j.client.LRange(ctx, key(entity), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read divergences: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode divergence entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Nop discards every entry. Used when Redis is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Recent(context.Context, domain.EntityType, int64) ([]Entry, error) {
	return []Entry{}, nil
}
