package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/deusflow/joyfeed/internal/news"
	_ "github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore is the persistent ContentStore.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

var (
	_ ContentStore = (*PostgresStore)(nil)
	_ Cleaner      = (*PostgresStore)(nil)
)

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates the content tables if needed.
func NewPostgresStore(ctx context.Context, db *sql.DB, log *slog.Logger) (*PostgresStore, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &PostgresStore{db: db, log: log}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Info("PostgreSQL content store ready")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id SERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS articles (
		id BIGSERIAL PRIMARY KEY,
		fingerprint VARCHAR(64) UNIQUE,
		title TEXT NOT NULL,
		original_body TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		source_name TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		category_id INTEGER REFERENCES categories(id),
		published_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		classification VARCHAR(16) NOT NULL,
		headline TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		sentiment VARCHAR(16) NOT NULL DEFAULT 'NEUTRAL',
		sentiment_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
		is_ai_rewritten BOOLEAN NOT NULL DEFAULT FALSE,
		is_breaking BOOLEAN NOT NULL DEFAULT FALSE,
		blocked BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_articles_title_url ON articles(title, source_url);
	CREATE INDEX IF NOT EXISTS idx_articles_category_published ON articles(category_id, published_at DESC);
	CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);

	CREATE TABLE IF NOT EXISTS posts (
		id BIGSERIAL PRIMARY KEY,
		author_id BIGINT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		category_id INTEGER,
		is_public BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Insert(ctx context.Context, a *news.Article) (int64, error) {
	query, args, err := psql.Insert("articles").
		Columns("fingerprint", "title", "original_body", "source_url", "source_name", "image_url",
			"category_id", "published_at", "classification", "headline", "summary",
			"sentiment", "sentiment_score", "is_ai_rewritten", "is_breaking").
		Values(a.Fingerprint, a.Title, a.OriginalBody, a.SourceURL, a.SourceName, a.ImageURL,
			nullInt(a.CategoryID), nullTime(a.PublishedAt), string(a.Classification), a.Headline, a.Summary,
			string(a.Sentiment), a.SentimentScore, a.IsAIRewritten, a.IsBreaking).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert article: %w", err)
	}
	a.ID = id
	return id, nil
}

func (s *PostgresStore) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	return s.exists(ctx, sq.Eq{"fingerprint": fingerprint})
}

func (s *PostgresStore) ExistsByTitleAndURL(ctx context.Context, title, url string) (bool, error) {
	return s.exists(ctx, sq.Eq{"title": title, "source_url": url})
}

func (s *PostgresStore) exists(ctx context.Context, where sq.Eq) (bool, error) {
	sub, args, err := psql.Select("1").From("articles").Where(where).ToSql()
	if err != nil {
		return false, err
	}
	var ok bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS ("+sub+")", args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return ok, nil
}

// CategoryID returns the id for name, creating the category when missing.
func (s *PostgresStore) CategoryID(ctx context.Context, name string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve category %q: %w", name, err)
	}
	return id, nil
}

func (s *PostgresStore) Categories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// articleQuery builds the SELECT behind RecentArticles.
func articleQuery(q ArticleQuery) sq.SelectBuilder {
	b := psql.Select("id", "COALESCE(fingerprint, '')", "title", "original_body", "source_url", "source_name",
		"image_url", "COALESCE(category_id, 0)", "published_at", "created_at", "classification",
		"headline", "summary", "sentiment", "sentiment_score", "is_ai_rewritten", "is_breaking", "blocked").
		From("articles")

	if len(q.CategoryIDs) > 0 {
		b = b.Where(sq.Eq{"category_id": q.CategoryIDs})
	}
	if !q.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"COALESCE(published_at, created_at)": q.Since})
	}
	if len(q.Sentiments) > 0 {
		sents := make([]string, len(q.Sentiments))
		for i, v := range q.Sentiments {
			sents[i] = string(v)
		}
		b = b.Where(sq.Eq{"sentiment": sents})
	}
	if q.MinBodyLength > 0 {
		b = b.Where(sq.Expr("LENGTH(COALESCE(NULLIF(summary, ''), original_body)) >= ?", q.MinBodyLength))
	}
	if q.ExcludeBlocked {
		b = b.Where(sq.Eq{"blocked": false})
	}

	switch q.Order {
	case OrderPositiveFirst:
		b = b.OrderBy("(sentiment = 'POSITIVE') DESC", "is_ai_rewritten DESC", "COALESCE(published_at, created_at) DESC")
	default:
		b = b.OrderBy("COALESCE(published_at, created_at) DESC")
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	return b
}

func (s *PostgresStore) RecentArticles(ctx context.Context, q ArticleQuery) ([]news.Article, error) {
	query, args, err := articleQuery(q).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var out []news.Article
	for rows.Next() {
		var (
			a         news.Article
			published sql.NullTime
			class     string
			sentiment string
		)
		if err := rows.Scan(&a.ID, &a.Fingerprint, &a.Title, &a.OriginalBody, &a.SourceURL, &a.SourceName,
			&a.ImageURL, &a.CategoryID, &published, &a.CreatedAt, &class,
			&a.Headline, &a.Summary, &sentiment, &a.SentimentScore, &a.IsAIRewritten, &a.IsBreaking, &a.Blocked); err != nil {
			return nil, err
		}
		a.PublishedAt = published.Time
		a.Classification = news.Classification(class)
		a.Sentiment = news.Sentiment(sentiment)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecentPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	b := psql.Select("id", "author_id", "title", "body", "image_url", "COALESCE(category_id, 0)", "is_public", "created_at").
		From("posts").
		Where(sq.Eq{"is_public": true}).
		OrderBy("created_at DESC")
	if q.CategoryID != 0 {
		b = b.Where(sq.Eq{"category_id": q.CategoryID})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.ImageURL, &p.CategoryID, &p.Public, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CleanupLegacy deletes rows with an empty body or legacy boilerplate.
func (s *PostgresStore) CleanupLegacy(ctx context.Context) (int64, error) {
	cond := sq.Or{sq.Eq{"original_body": ""}, sq.Eq{"original_body": nil}}
	for _, p := range legacyBoilerplate {
		cond = append(cond, sq.Like{"LOWER(original_body)": "%" + p + "%"})
	}
	return s.delete(ctx, cond, "legacy cleanup")
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return s.delete(ctx, sq.Lt{"created_at": time.Now().Add(-age)}, "purge")
}

func (s *PostgresStore) delete(ctx context.Context, where sq.Sqlizer, what string) (int64, error) {
	query, args, err := psql.Delete("articles").Where(where).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to run %s: %w", what, err)
	}
	n, _ := res.RowsAffected()
	s.log.Info("articles removed", "job", what, "rows", n)
	return n, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
