package probe

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is the classified result of a single probe.
//
// A probe either succeeds with the response status code, or fails with an
// error describing why (see TransportError and StatusError).
type Outcome struct {
	Success    bool
	StatusCode int // 0 when no response was received
	Err        error
	LatencyMS  float64
}

// Succeeded builds a successful Outcome.
func Succeeded(status int) Outcome {
	return Outcome{Success: true, StatusCode: status}
}

// Failed builds a failed Outcome carrying err.
func Failed(err error) Outcome {
	o := Outcome{Err: err}
	var se *StatusError
	if errors.As(err, &se) {
		o.StatusCode = se.StatusCode
	}
	return o
}

// Reason is a short human-readable description for logs and history.
func (o Outcome) Reason() string {
	if o.Success {
		return fmt.Sprintf("%d", o.StatusCode)
	}
	if o.Err == nil {
		return "unknown failure"
	}
	return o.Err.Error()
}

// Checker performs a single check for a given target URL.
type Checker interface {
	Check(ctx context.Context, target string) Outcome
}

// TransportError is a probe that never produced a response (DNS, connect,
// timeout, TLS).
type TransportError struct {
	URL string
	DNS string // DNS classification, empty when not diagnosed
	Err error
}

func (e *TransportError) Error() string {
	if e.DNS != "" {
		return fmt.Sprintf("GET %s: %v (dns=%s)", e.URL, e.Err, e.DNS)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a probe whose response status was not 200.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}
