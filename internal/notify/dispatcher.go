package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher hands each payload to a Sender on its own goroutine. Failures
// are logged and dropped; callers never wait on delivery.
type Dispatcher struct {
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher wraps sender. A nil sender yields a dispatcher that drops
// everything, which is how an unset webhook disables notifications.
func NewDispatcher(sender Sender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sender: sender, logger: logger, timeout: 30 * time.Second}
}

// Enabled reports whether payloads go anywhere.
func (d *Dispatcher) Enabled() bool {
	if d == nil || d.sender == nil {
		return false
	}
	if s, ok := d.sender.(*Slack); ok && s == nil {
		return false
	}
	return true
}

func (d *Dispatcher) Notify(ctx context.Context, p Payload) {
	if !d.Enabled() {
		return
	}
	// delivery outlives the caller's cycle, not its values
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		err := d.sender.Send(sctx, p)
		if err == nil {
			d.logger.Debug("notify_sent", zap.String("summary", p.Summary()))
			return
		}
		if errors.Is(err, ErrDisabled) {
			return
		}
		d.logger.Error("notify_failed",
			zap.String("summary", p.Summary()),
			zap.Error(err),
		)
	}()
}

// Wait blocks until every dispatched payload has been attempted.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
