package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/pingzy/internal/domain"
	"github.com/hamed0406/pingzy/internal/notify"
	"github.com/hamed0406/pingzy/internal/probe"
	"github.com/hamed0406/pingzy/internal/repo"
)

// DefaultSummaryInterval is the cadence of the daily summary.
const DefaultSummaryInterval = 24 * time.Hour

const historyTimeout = 5 * time.Second

type Config struct {
	// Interval between check cycles. Required.
	Interval time.Duration
	// SummaryInterval defaults to DefaultSummaryInterval.
	SummaryInterval time.Duration
	// MaxConcurrentChecks bounds in-flight probes per cycle; 0 means one
	// per website.
	MaxConcurrentChecks int
	Identity            notify.Identity
}

// Monitor owns the website states and drives the check and summary cycles.
//
// Probes of one cycle run concurrently, but every state transition happens
// on the cycle's own goroutine under mu, so a website's debounce flags are
// never written from two places. Readers (summary, status API) take mu for
// reading and get copies.
type Monitor struct {
	logger   *zap.Logger
	checker  probe.Checker
	notifier notify.Notifier
	history  repo.ResultStore
	cfg      Config
	now      func() time.Time

	mu    sync.RWMutex
	sites []*domain.Website
	urls  []string

	cycleMu sync.Mutex

	runMu   sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds one state record per URL. history may be nil.
func New(
	logger *zap.Logger,
	urls []string,
	checker probe.Checker,
	notifier notify.Notifier,
	history repo.ResultStore,
	cfg Config,
) (*Monitor, error) {
	if len(urls) == 0 {
		return nil, errors.New("monitor: no urls to monitor")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("monitor: check interval must be positive")
	}
	if checker == nil || notifier == nil {
		return nil, errors.New("monitor: checker and notifier are required")
	}
	if cfg.SummaryInterval <= 0 {
		cfg.SummaryInterval = DefaultSummaryInterval
	}
	if cfg.MaxConcurrentChecks < 1 || cfg.MaxConcurrentChecks > len(urls) {
		cfg.MaxConcurrentChecks = len(urls)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sites := make([]*domain.Website, len(urls))
	for i, u := range urls {
		sites[i] = domain.NewWebsite(u)
	}
	return &Monitor{
		logger:   logger,
		checker:  checker,
		notifier: notifier,
		history:  history,
		cfg:      cfg,
		now:      time.Now,
		sites:    sites,
		urls:     append([]string(nil), urls...),
	}, nil
}

// Start announces the monitored URLs, runs one check cycle right away and
// then keeps both cycles ticking in the background until Stop or until ctx
// is cancelled. Start is a no-op after the first call or after Stop.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	if m.started || m.stopped {
		m.runMu.Unlock()
		return
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(2)
	m.runMu.Unlock()

	m.logger.Info("monitor_started",
		zap.Strings("urls", m.urls),
		zap.Duration("interval", m.cfg.Interval),
		zap.Duration("summary_interval", m.cfg.SummaryInterval),
	)
	m.notifier.Notify(runCtx, m.cfg.Identity.Startup(m.urls))

	go m.checkLoop(runCtx)
	go m.summaryLoop(runCtx)
}

// Stop halts both cycles and waits for the running check cycle, including
// its in-flight probes, to finish. No new probes are started once Stop has
// been called. Safe to call more than once.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	if !m.stopped {
		m.stopped = true
		if m.cancel != nil {
			m.cancel()
		}
	}
	m.runMu.Unlock()

	m.wg.Wait()
	m.logger.Info("monitor_stopped")
}

func (m *Monitor) checkLoop(ctx context.Context) {
	defer m.wg.Done()
	t := time.NewTicker(m.cfg.Interval)
	defer t.Stop()

	// immediate pass
	m.RunChecks(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.RunChecks(ctx)
		}
	}
}

func (m *Monitor) summaryLoop(ctx context.Context) {
	defer m.wg.Done()
	t := time.NewTicker(m.cfg.SummaryInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.SendSummary(ctx)
		}
	}
}

type probeResult struct {
	site *domain.Website
	out  probe.Outcome
	at   time.Time
}

// RunChecks probes every website once and applies the outcomes as they
// arrive. Cycles never overlap; a call made while another cycle is running
// waits for it. Cancelling ctx stops new probes from being started but
// lets the ones already in flight complete and be applied.
func (m *Monitor) RunChecks(ctx context.Context) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	cycleID := uuid.NewString()
	log := m.logger.With(zap.String("cycle_id", cycleID))
	probeCtx := context.WithoutCancel(ctx)

	results := make(chan probeResult, len(m.sites))
	sem := make(chan struct{}, m.cfg.MaxConcurrentChecks)

	go func() {
		var wg sync.WaitGroup
		defer close(results)
		defer wg.Wait()

	dispatch:
		for _, site := range m.sites {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break dispatch
			}
			if ctx.Err() != nil {
				<-sem
				break
			}
			wg.Add(1)
			go func(s *domain.Website) {
				defer wg.Done()
				defer func() { <-sem }()
				log.Debug("checking", zap.String("url", s.URL))
				out := m.checker.Check(probeCtx, s.URL)
				results <- probeResult{site: s, out: out, at: m.now()}
			}(site)
		}
	}()

	for r := range results {
		m.apply(probeCtx, log, cycleID, r)
	}
}

func (m *Monitor) apply(ctx context.Context, log *zap.Logger, cycleID string, r probeResult) {
	url := r.site.URL
	if !r.out.Success {
		log.Warn("check_failed",
			zap.String("url", url),
			zap.Int("status", r.out.StatusCode),
			zap.Error(r.out.Err),
		)
	} else {
		log.Debug("check_ok",
			zap.String("url", url),
			zap.Int("status", r.out.StatusCode),
			zap.Float64("latency_ms", r.out.LatencyMS),
		)
	}

	m.mu.Lock()
	wasPending := r.site.LastCheckWasDown
	ev := r.site.Apply(r.out, r.at)
	snap := r.site.Clone()
	m.mu.Unlock()

	switch ev {
	case domain.EventNone:
		if !r.out.Success && !wasPending {
			log.Info("website_suspect", zap.String("url", url))
		}
	case domain.EventWentDown:
		log.Warn("website_down", zap.String("url", url), zap.Int("downtime_count", snap.DowntimeCount))
	case domain.EventStillDown:
		log.Warn("website_still_down", zap.String("url", url), zap.Timep("went_down_at", snap.WentDownAt))
	case domain.EventRecoveredUp:
		log.Warn("website_up", zap.String("url", url))
	}

	if p, ok := m.cfg.Identity.ForEvent(ev, snap); ok {
		m.notifier.Notify(ctx, p)
	}

	m.record(ctx, log, &domain.CheckResult{
		CycleID:    cycleID,
		URL:        url,
		Up:         r.out.Success,
		HTTPStatus: r.out.StatusCode,
		LatencyMS:  r.out.LatencyMS,
		Reason:     r.out.Reason(),
		CheckedAt:  r.at.UTC(),
	})
}

func (m *Monitor) record(ctx context.Context, log *zap.Logger, cr *domain.CheckResult) {
	if m.history == nil {
		return
	}
	hctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()
	if err := m.history.Append(hctx, cr); err != nil {
		log.Warn("history_append_error", zap.String("url", cr.URL), zap.Error(err))
	}
}

// SendSummary sends the aggregate status of every website.
func (m *Monitor) SendSummary(ctx context.Context) {
	m.logger.Info("sending_summary")
	m.notifier.Notify(ctx, m.cfg.Identity.DailySummary(m.Snapshot()))
}

// Snapshot returns copies of all website states in configuration order.
func (m *Monitor) Snapshot() []domain.Website {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Website, len(m.sites))
	for i, s := range m.sites {
		out[i] = s.Clone()
	}
	return out
}
