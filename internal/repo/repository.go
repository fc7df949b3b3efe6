package repo

import (
	"context"

	"github.com/hamed0406/pingzy/internal/domain"
)

// ResultStore keeps the check history. It is an audit trail: the monitor
// never reads its own state back from it.
type ResultStore interface {
	Append(ctx context.Context, r *domain.CheckResult) error
	// Latest returns the most recent result per URL, ordered by URL.
	Latest(ctx context.Context) ([]domain.CheckResult, error)
}
