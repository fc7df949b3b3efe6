package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/pingzy/internal/domain"
	"github.com/hamed0406/pingzy/internal/repo"
)

var _ repo.ResultStore = (*Store)(nil)

// Schema is applied by New; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS check_results (
  id          BIGSERIAL PRIMARY KEY,
  cycle_id    TEXT NOT NULL,
  url         TEXT NOT NULL,
  up          BOOLEAN NOT NULL,
  http_status INTEGER NULL,
  latency_ms  DOUBLE PRECISION NOT NULL,
  reason      TEXT NOT NULL,
  checked_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_check_results_url_time ON check_results (url, checked_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("history_store_ready", zap.String("driver", "postgres"))
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Append(ctx context.Context, cr *domain.CheckResult) error {
	var statusPtr *int
	if cr.HTTPStatus != 0 {
		statusPtr = &cr.HTTPStatus
	}
	checkedAt := cr.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO check_results
		   (cycle_id, url, up, http_status, latency_ms, reason, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7)`,
		cr.CycleID, cr.URL, cr.Up, statusPtr, cr.LatencyMS, cr.Reason, checkedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT ON (url)
       cycle_id,
       url,
       up,
       http_status,
       latency_ms,
       reason,
       checked_at
  FROM check_results
 ORDER BY url, checked_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var (
			r        domain.CheckResult
			httpNull sql.NullInt32
		)
		if err := rows.Scan(&r.CycleID, &r.URL, &r.Up, &httpNull, &r.LatencyMS, &r.Reason, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		if httpNull.Valid {
			r.HTTPStatus = int(httpNull.Int32)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
