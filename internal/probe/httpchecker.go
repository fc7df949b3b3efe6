package probe

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a whole probe, connect through headers.
	DefaultTimeout = 10 * time.Second
	UserAgent      = "Pingzy"
)

type HTTPChecker struct {
	Client *http.Client
	// DiagnoseDNS runs a DNS lookup after transport failures so the logged
	// reason says whether the name still resolves.
	DiagnoseDNS bool
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) Outcome {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Failed(&TransportError{URL: target, Err: err})
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		te := &TransportError{URL: target, Err: err}
		if h.DiagnoseDNS {
			te.DNS = CheckDNS(ctx, extractHost(target)).Class
		}
		out := Failed(te)
		out.LatencyMS = latency
		return out
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		out := Failed(&StatusError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status})
		out.LatencyMS = latency
		return out
	}
	out := Succeeded(resp.StatusCode)
	out.LatencyMS = latency
	return out
}
