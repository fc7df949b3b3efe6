package notify

import (
	"context"
	"errors"
	"fmt"
)

// ErrDisabled is returned by a sender that has no channel configured.
var ErrDisabled = errors.New("notifications disabled")

// Sender delivers a payload synchronously and reports failures.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// Notifier accepts a payload for delivery. Implementations must not block
// on the delivery itself.
type Notifier interface {
	Notify(ctx context.Context, p Payload)
}

// DeliveryError is a payload the channel did not accept.
type DeliveryError struct {
	StatusCode int    // 0 on transport errors
	Body       string // response body, truncated
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("notification delivery failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
