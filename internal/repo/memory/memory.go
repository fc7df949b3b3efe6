package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/pingzy/internal/domain"
	"github.com/hamed0406/pingzy/internal/repo"
)

// DefaultRetention is how many results are kept per URL.
const DefaultRetention = 100

type Store struct {
	mu        sync.RWMutex
	retention int
	results   map[string][]domain.CheckResult
}

var _ repo.ResultStore = (*Store)(nil)

func New(retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		retention: retention,
		results:   make(map[string][]domain.CheckResult),
	}
}

func (m *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	cp := *r
	if cp.CheckedAt.IsZero() {
		cp.CheckedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := append(m.results[cp.URL], cp)
	if len(rs) > m.retention {
		rs = rs[len(rs)-m.retention:]
	}
	m.results[cp.URL] = rs
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.CheckResult, 0, len(m.results))
	for _, rs := range m.results {
		var latest *domain.CheckResult
		for i := range rs {
			if latest == nil || rs[i].CheckedAt.After(latest.CheckedAt) {
				latest = &rs[i]
			}
		}
		if latest != nil {
			out = append(out, *latest)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

// History returns up to limit results for url, oldest first.
func (m *Store) History(url string, limit int) []domain.CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := m.results[url]
	if limit > 0 && len(rs) > limit {
		rs = rs[len(rs)-limit:]
	}
	return append([]domain.CheckResult(nil), rs...)
}
