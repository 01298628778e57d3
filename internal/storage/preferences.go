package storage

import (
	"context"
	"time"
)

const (
	ItemArticle = "article"
	ItemPost    = "post"
)

// CategoryPreference is the dynamic interest a user has in one category.
type CategoryPreference struct {
	CategoryID       int       `json:"category_id"`
	InterestScore    float64   `json:"interest_score"`
	InteractionCount int       `json:"interaction_count"`
	LastInteraction  time.Time `json:"last_interaction"`
}

type ViewEvent struct {
	UserID     int64
	ItemType   string
	ItemID     int64
	CategoryID int
	ViewedAt   time.Time
}

type DwellEvent struct {
	UserID        int64
	ItemType      string
	ItemID        int64
	DwellSeconds  float64
	ScrollPercent float64
}

// Interaction is one view joined with the dwell record of the same item.
type Interaction struct {
	ItemType      string
	ItemID        int64
	CategoryID    int
	ViewedAt      time.Time
	HasDwell      bool
	DwellSeconds  float64
	ScrollPercent float64
}

// PreferenceStore holds explicit preferences, the append-only view log and
// incrementally maintained interest scores. Every update is an upsert with
// increment semantics so concurrent writers for one user stay correct.
type PreferenceStore interface {
	StaticPreferences(ctx context.Context, userID int64) (map[int]struct{}, error)
	SetStaticPreference(ctx context.Context, userID int64, categoryID int) error
	CategoryPreferences(ctx context.Context, userID int64) ([]CategoryPreference, error)
	RecordView(ctx context.Context, e ViewEvent) error
	RecordDwell(ctx context.Context, e DwellEvent) error
	RecentInteractions(ctx context.Context, userID int64, window time.Duration) ([]Interaction, error)
	// BoostInterest inserts initial with a count of 1, or raises the score by
	// step (capped at 1) and increments the count.
	BoostInterest(ctx context.Context, userID int64, categoryID int, initial, step float64) error
	// SeedInterest inserts score, or keeps the greater of the stored and given score.
	SeedInterest(ctx context.Context, userID int64, categoryID int, score float64) error
}
