package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PostgresPreferences is the persistent PreferenceStore. Counters and scores
// change through ON CONFLICT upserts only.
type PostgresPreferences struct {
	db *sql.DB
}

var _ PreferenceStore = (*PostgresPreferences)(nil)

func NewPostgresPreferences(ctx context.Context, db *sql.DB) (*PostgresPreferences, error) {
	p := &PostgresPreferences{db: db}
	if err := p.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize preference schema: %w", err)
	}
	return p, nil
}

func (p *PostgresPreferences) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_static_preferences (
		user_id BIGINT NOT NULL,
		category_id INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, category_id)
	);

	CREATE TABLE IF NOT EXISTS user_category_preferences (
		user_id BIGINT NOT NULL,
		category_id INTEGER NOT NULL,
		interest_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		interaction_count INTEGER NOT NULL DEFAULT 0,
		last_interaction TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, category_id)
	);

	CREATE TABLE IF NOT EXISTS content_views (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		item_type VARCHAR(16) NOT NULL,
		item_id BIGINT NOT NULL,
		category_id INTEGER,
		viewed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_content_views_user_time ON content_views(user_id, viewed_at);

	CREATE TABLE IF NOT EXISTS content_dwell (
		user_id BIGINT NOT NULL,
		item_type VARCHAR(16) NOT NULL,
		item_id BIGINT NOT NULL,
		dwell_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		scroll_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, item_type, item_id)
	);
	`
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresPreferences) StaticPreferences(ctx context.Context, userID int64) (map[int]struct{}, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT category_id FROM user_static_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load static preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[int]struct{})
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out[c] = struct{}{}
	}
	return out, rows.Err()
}

func (p *PostgresPreferences) SetStaticPreference(ctx context.Context, userID int64, categoryID int) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO user_static_preferences (user_id, category_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, categoryID)
	if err != nil {
		return fmt.Errorf("failed to set static preference: %w", err)
	}
	return nil
}

func (p *PostgresPreferences) CategoryPreferences(ctx context.Context, userID int64) ([]CategoryPreference, error) {
	query, args, err := psql.Select("category_id", "interest_score", "interaction_count", "last_interaction").
		From("user_category_preferences").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("interest_score DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load category preferences: %w", err)
	}
	defer rows.Close()

	var out []CategoryPreference
	for rows.Next() {
		var c CategoryPreference
		if err := rows.Scan(&c.CategoryID, &c.InterestScore, &c.InteractionCount, &c.LastInteraction); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordView appends to the view log and bumps the category counter in one transaction.
func (p *PostgresPreferences) RecordView(ctx context.Context, e ViewEvent) error {
	if e.ViewedAt.IsZero() {
		e.ViewedAt = time.Now()
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO content_views (user_id, item_type, item_id, category_id, viewed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.UserID, e.ItemType, e.ItemID, nullInt(e.CategoryID), e.ViewedAt); err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	if e.CategoryID != 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_category_preferences (user_id, category_id, interaction_count, last_interaction)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (user_id, category_id) DO UPDATE
			SET interaction_count = user_category_preferences.interaction_count + 1,
			    last_interaction = EXCLUDED.last_interaction`,
			e.UserID, e.CategoryID, e.ViewedAt); err != nil {
			return fmt.Errorf("failed to bump interaction count: %w", err)
		}
	}
	return tx.Commit()
}

func (p *PostgresPreferences) RecordDwell(ctx context.Context, e DwellEvent) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO content_dwell (user_id, item_type, item_id, dwell_seconds, scroll_percent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, item_type, item_id) DO UPDATE
		SET dwell_seconds = content_dwell.dwell_seconds + EXCLUDED.dwell_seconds,
		    scroll_percent = GREATEST(content_dwell.scroll_percent, EXCLUDED.scroll_percent),
		    updated_at = NOW()`,
		e.UserID, e.ItemType, e.ItemID, e.DwellSeconds, e.ScrollPercent)
	if err != nil {
		return fmt.Errorf("failed to record dwell: %w", err)
	}
	return nil
}

func (p *PostgresPreferences) RecentInteractions(ctx context.Context, userID int64, window time.Duration) ([]Interaction, error) {
	query, args, err := psql.Select("v.item_type", "v.item_id", "COALESCE(v.category_id, 0)", "v.viewed_at",
		"d.user_id IS NOT NULL", "COALESCE(d.dwell_seconds, 0)", "COALESCE(d.scroll_percent, 0)").
		From("content_views v").
		LeftJoin("content_dwell d ON d.user_id = v.user_id AND d.item_type = v.item_type AND d.item_id = v.item_id").
		Where(sq.Eq{"v.user_id": userID}).
		Where(sq.GtOrEq{"v.viewed_at": time.Now().Add(-window)}).
		OrderBy("v.viewed_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ItemType, &in.ItemID, &in.CategoryID, &in.ViewedAt,
			&in.HasDwell, &in.DwellSeconds, &in.ScrollPercent); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (p *PostgresPreferences) BoostInterest(ctx context.Context, userID int64, categoryID int, initial, step float64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO user_category_preferences (user_id, category_id, interest_score, interaction_count, last_interaction)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (user_id, category_id) DO UPDATE
		SET interest_score = LEAST(1.0, user_category_preferences.interest_score + $4),
		    interaction_count = user_category_preferences.interaction_count + 1,
		    last_interaction = NOW()`,
		userID, categoryID, initial, step)
	if err != nil {
		return fmt.Errorf("failed to boost interest: %w", err)
	}
	return nil
}

func (p *PostgresPreferences) SeedInterest(ctx context.Context, userID int64, categoryID int, score float64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO user_category_preferences (user_id, category_id, interest_score, interaction_count, last_interaction)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (user_id, category_id) DO UPDATE
		SET interest_score = GREATEST(user_category_preferences.interest_score, EXCLUDED.interest_score)`,
		userID, categoryID, score)
	if err != nil {
		return fmt.Errorf("failed to seed interest: %w", err)
	}
	return nil
}
