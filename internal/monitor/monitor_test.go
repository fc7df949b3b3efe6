package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/pingzy/internal/domain"
	"github.com/hamed0406/pingzy/internal/notify"
	"github.com/hamed0406/pingzy/internal/probe"
	"github.com/hamed0406/pingzy/internal/repo/memory"
)

// --- fakes ---

// scriptedChecker returns the queued outcomes per URL, then repeats the last
// one. A URL listed in gates blocks until its channel is closed.
type scriptedChecker struct {
	mu      sync.Mutex
	script  map[string][]probe.Outcome
	gates   map[string]chan struct{}
	started chan string
	calls   map[string]int
}

func newScripted() *scriptedChecker {
	return &scriptedChecker{
		script:  map[string][]probe.Outcome{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 64),
		calls:   map[string]int{},
	}
}

func (s *scriptedChecker) Check(ctx context.Context, target string) probe.Outcome {
	s.mu.Lock()
	gate := s.gates[target]
	s.calls[target]++
	q := s.script[target]
	out := probe.Succeeded(200)
	if len(q) > 0 {
		out = q[0]
		if len(q) > 1 {
			s.script[target] = q[1:]
		}
	}
	s.mu.Unlock()

	select {
	case s.started <- target:
	default:
	}
	if gate != nil {
		<-gate
	}
	return out
}

func (s *scriptedChecker) callsFor(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Payload
	ch  chan notify.Payload
}

func newRecorder() *recordingNotifier {
	return &recordingNotifier{ch: make(chan notify.Payload, 64)}
}

func (r *recordingNotifier) Notify(ctx context.Context, p notify.Payload) {
	r.mu.Lock()
	r.got = append(r.got, p)
	r.mu.Unlock()
	r.ch <- p
}

func (r *recordingNotifier) payloads() []notify.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Payload(nil), r.got...)
}

func (r *recordingNotifier) next(t *testing.T) notify.Payload {
	t.Helper()
	select {
	case p := <-r.ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return notify.Payload{}
	}
}

var down = probe.Failed(&probe.StatusError{URL: "x", StatusCode: 503, Status: "503 Service Unavailable"})

func newMonitor(t *testing.T, urls []string, chk probe.Checker, n notify.Notifier, cfg Config) *Monitor {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	m, err := New(zap.NewNop(), urls, chk, n, memory.New(0), cfg)
	require.NoError(t, err)
	return m
}

// --- tests ---

func TestNew_Validates(t *testing.T) {
	chk, n := newScripted(), newRecorder()

	_, err := New(nil, nil, chk, n, nil, Config{Interval: time.Minute})
	assert.Error(t, err)

	_, err = New(nil, []string{"https://a"}, chk, n, nil, Config{})
	assert.Error(t, err, "interval has no implicit default")

	_, err = New(nil, []string{"https://a"}, nil, n, nil, Config{Interval: time.Minute})
	assert.Error(t, err)

	m, err := New(nil, []string{"https://a", "https://b"}, chk, n, nil, Config{Interval: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, DefaultSummaryInterval, m.cfg.SummaryInterval)
	assert.Equal(t, 2, m.cfg.MaxConcurrentChecks)

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].DisplayURL)
	assert.False(t, snap[0].IsDown)
}

func TestRunChecks_DebounceThenDownThenRecovery(t *testing.T) {
	chk := newScripted()
	chk.script["https://a.example.com"] = []probe.Outcome{down, down, down, probe.Succeeded(200)}
	n := newRecorder()
	m := newMonitor(t, []string{"https://a.example.com"}, chk, n, Config{Identity: notify.Identity{Channel: "#ops"}})

	ctx := context.Background()
	m.RunChecks(ctx)
	assert.Empty(t, n.payloads(), "first failure only arms the debounce")
	assert.True(t, m.Snapshot()[0].LastCheckWasDown)

	m.RunChecks(ctx)
	p := n.next(t)
	assert.True(t, strings.HasPrefix(p.Fallback, "Website <https://a.example.com|a.example.com> just went down at "))
	assert.Equal(t, notify.ColorDanger, p.Color)
	assert.Equal(t, "#ops", p.Channel)
	snap := m.Snapshot()[0]
	assert.True(t, snap.IsDown)
	assert.Equal(t, 1, snap.DowntimeCount)

	m.RunChecks(ctx)
	assert.Len(t, n.payloads(), 1, "no repeat inside the quiet period")

	m.RunChecks(ctx)
	p = n.next(t)
	assert.Equal(t, "Website <https://a.example.com|a.example.com> went back online. Good job!", p.Fallback)
	assert.False(t, m.Snapshot()[0].IsDown)
}

func TestRunChecks_StillDownUsesClock(t *testing.T) {
	chk := newScripted()
	chk.script["https://a"] = []probe.Outcome{down}
	n := newRecorder()
	m := newMonitor(t, []string{"https://a"}, chk, n, Config{})

	now := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.RunChecks(context.Background())
	m.RunChecks(context.Background())
	n.next(t) // went down

	now = now.Add(16 * time.Minute)
	m.RunChecks(context.Background())
	p := n.next(t)
	assert.Equal(t, "Website <https://a|a> is still down.", p.Fallback)
	assert.Equal(t, 1, m.Snapshot()[0].DowntimeCount)
}

func TestRunChecks_SlowSiteDoesNotDelayOthers(t *testing.T) {
	chk := newScripted()
	gate := make(chan struct{})
	chk.gates["https://slow"] = gate
	chk.script["https://fast"] = []probe.Outcome{down}
	n := newRecorder()
	m := newMonitor(t, []string{"https://slow", "https://fast"}, chk, n, Config{})

	// fast already failed once, so this cycle confirms it down
	m.sites[1].LastCheckWasDown = true

	done := make(chan struct{})
	go func() {
		m.RunChecks(context.Background())
		close(done)
	}()

	p := n.next(t)
	assert.Contains(t, p.Fallback, "https://fast")
	select {
	case <-done:
		t.Fatal("cycle finished before the slow probe was released")
	default:
	}

	close(gate)
	<-done
	assert.False(t, m.Snapshot()[0].IsDown)
}

func TestRunChecks_RecordsHistory(t *testing.T) {
	chk := newScripted()
	chk.script["https://b"] = []probe.Outcome{down}
	hist := memory.New(0)
	m, err := New(zap.NewNop(), []string{"https://a", "https://b"}, chk, newRecorder(), hist, Config{Interval: time.Hour})
	require.NoError(t, err)

	m.RunChecks(context.Background())

	latest, err := hist.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.True(t, latest[0].Up)
	assert.False(t, latest[1].Up)
	assert.Equal(t, 503, latest[1].HTTPStatus)
	assert.NotEmpty(t, latest[0].CycleID)
	assert.Equal(t, latest[0].CycleID, latest[1].CycleID)
}

type failingStore struct{}

func (failingStore) Append(context.Context, *domain.CheckResult) error {
	return errors.New("db down")
}
func (failingStore) Latest(context.Context) ([]domain.CheckResult, error) { return nil, nil }

func TestRunChecks_HistoryErrorsDoNotAffectState(t *testing.T) {
	chk := newScripted()
	chk.script["https://a"] = []probe.Outcome{down}
	m, err := New(zap.NewNop(), []string{"https://a"}, chk, newRecorder(), failingStore{}, Config{Interval: time.Hour})
	require.NoError(t, err)

	m.RunChecks(context.Background())
	m.RunChecks(context.Background())
	assert.True(t, m.Snapshot()[0].IsDown)
}

func TestRunChecks_CancelledContextStartsNoProbes(t *testing.T) {
	chk := newScripted()
	m := newMonitor(t, []string{"https://a", "https://b"}, chk, newRecorder(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.RunChecks(ctx)

	assert.Zero(t, chk.callsFor("https://a"))
	assert.Zero(t, chk.callsFor("https://b"))
}

func TestStart_AnnouncesThenChecksImmediately(t *testing.T) {
	chk := newScripted()
	n := newRecorder()
	m := newMonitor(t, []string{"https://a", "https://b"}, chk, n, Config{})

	m.Start(context.Background())
	defer m.Stop()

	p := n.next(t)
	assert.Equal(t, "Starting monitoring urls: <https://a|https://a> , <https://b|https://b> ", p.Text)

	for i := 0; i < 2; i++ {
		select {
		case <-chk.started:
		case <-time.After(2 * time.Second):
			t.Fatal("immediate check cycle did not run")
		}
	}

	// second Start is a no-op
	m.Start(context.Background())
	assert.Len(t, n.payloads(), 1)
}

func TestStart_TicksBothCycles(t *testing.T) {
	chk := newScripted()
	n := newRecorder()
	m := newMonitor(t, []string{"https://a"}, chk, n, Config{
		Interval:        10 * time.Millisecond,
		SummaryInterval: 25 * time.Millisecond,
	})

	m.Start(context.Background())
	n.next(t) // startup

	p := n.next(t)
	assert.Equal(t, "Daily summary:", p.Pretext)
	m.Stop()

	assert.GreaterOrEqual(t, chk.callsFor("https://a"), 2)
}

func TestStop_DrainsInFlightProbe(t *testing.T) {
	chk := newScripted()
	gate := make(chan struct{})
	chk.gates["https://a"] = gate
	hist := memory.New(0)
	m, err := New(zap.NewNop(), []string{"https://a"}, chk, newRecorder(), hist, Config{Interval: time.Hour})
	require.NoError(t, err)

	m.Start(context.Background())
	<-chk.started

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a probe was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the probe finished")
	}

	latest, _ := hist.Latest(context.Background())
	assert.Len(t, latest, 1, "in-flight result is still applied")
	assert.Equal(t, 1, chk.callsFor("https://a"))

	m.Stop() // idempotent
}

func TestStop_BeforeStartDisablesStart(t *testing.T) {
	chk, n := newScripted(), newRecorder()
	m := newMonitor(t, []string{"https://a"}, chk, n, Config{})
	m.Stop()
	m.Start(context.Background())

	assert.Empty(t, n.payloads())
	assert.Zero(t, chk.callsFor("https://a"))
}

func TestSendSummary(t *testing.T) {
	chk := newScripted()
	chk.script["https://a"] = []probe.Outcome{down}
	n := newRecorder()
	m := newMonitor(t, []string{"https://a", "https://b"}, chk, n, Config{})

	m.RunChecks(context.Background())
	m.RunChecks(context.Background())
	n.next(t) // went down

	m.SendSummary(context.Background())
	p := n.next(t)
	require.Len(t, p.Fields, 2)
	assert.Equal(t, "https://a", p.Fields[0].Title)
	assert.True(t, strings.HasPrefix(p.Fields[0].Value, "Site is down since "))
	assert.Equal(t, "Site is currently up and has been down 0 times.", p.Fields[1].Value)
}
