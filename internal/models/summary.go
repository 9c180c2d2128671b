package models

import (
	"time"

	"github.com/google/uuid"
)

// SummaryCacheEntry is one row of the content-addressed summary cache.
// The key is (user, snapshot hash); identical record snapshots always map
// to the same cached text, so staleness is structural rather than TTL-based.
type SummaryCacheEntry struct {
	UserID       uuid.UUID `db:"user_id"`
	SnapshotHash string    `db:"snapshot_hash"`
	SummaryText  string    `db:"summary_text"`
	CreatedAt    time.Time `db:"created_at"`
}

// LatestSummary is the per-user "most recent summary" slot, maintained as a
// single upserted row independent of the content-addressed cache.
type LatestSummary struct {
	UserID      uuid.UUID `db:"user_id"`
	SummaryText string    `db:"summary_text"`
	UpdatedAt   time.Time `db:"updated_at"`
}
