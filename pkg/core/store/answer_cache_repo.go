package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filing_qa/pkg/core/cache"

	"github.com/jackc/pgx/v5"
)

// AnswerCacheRepo is the postgres answer cache. Staleness is computed from
// created_at at read time; PurgeExpired reclaims the rows.
type AnswerCacheRepo struct {
	db  DBTX
	ttl time.Duration
	now func() time.Time
}

var (
	_ cache.Cache  = (*AnswerCacheRepo)(nil)
	_ cache.Purger = (*AnswerCacheRepo)(nil)
)

func NewAnswerCacheRepo(db DBTX, ttl time.Duration) *AnswerCacheRepo {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &AnswerCacheRepo{db: db, ttl: ttl, now: time.Now}
}

func (r *AnswerCacheRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var answer string
	err := r.db.QueryRow(ctx, `
		SELECT answer FROM answer_cache
		WHERE cache_key = $1 AND created_at > $2
	`, key, r.now().Add(-r.ttl)).Scan(&answer)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read answer cache: %w", err)
	}
	return answer, true, nil
}

func (r *AnswerCacheRepo) Put(ctx context.Context, key, answer string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO answer_cache (cache_key, answer, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key)
		DO UPDATE SET
			answer = EXCLUDED.answer,
			created_at = EXCLUDED.created_at
	`, key, answer, r.now())
	if err != nil {
		return fmt.Errorf("failed to write answer cache: %w", err)
	}
	return nil
}

func (r *AnswerCacheRepo) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM answer_cache WHERE created_at <= $1`, r.now().Add(-r.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to purge answer cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
