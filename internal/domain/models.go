package domain

import (
	"strings"
	"time"

	"github.com/hamed0406/pingzy/internal/probe"
)

// StillDownAfter is how long a site must have been down before every
// further failed check repeats the "still down" notification.
const StillDownAfter = 15 * time.Minute

// Event is what a state transition asks the monitor to announce.
type Event int

const (
	EventNone Event = iota
	EventWentDown
	EventStillDown
	EventRecoveredUp
)

func (e Event) String() string {
	switch e {
	case EventWentDown:
		return "went_down"
	case EventStillDown:
		return "still_down"
	case EventRecoveredUp:
		return "recovered_up"
	default:
		return "none"
	}
}

// Website is the mutable up/down record of one monitored URL.
//
// WentDownAt is non-nil exactly when IsDown is true.
type Website struct {
	URL              string     `json:"url"`
	DisplayURL       string     `json:"display_url"`
	IsDown           bool       `json:"is_down"`
	LastCheckWasDown bool       `json:"last_check_was_down"`
	WentDownAt       *time.Time `json:"went_down_at,omitempty"`
	DowntimeCount    int        `json:"downtime_count"`
}

func NewWebsite(url string) *Website {
	return &Website{URL: url, DisplayURL: DisplayURL(url)}
}

// DisplayURL strips everything up to and including the first "//".
func DisplayURL(url string) string {
	if i := strings.Index(url, "//"); i >= 0 {
		return url[i+2:]
	}
	return url
}

// Apply folds one probe outcome into the record and reports which
// notification, if any, the change warrants.
//
// Two consecutive failures are needed to declare the site down.
// LastCheckWasDown is only cleared by a recovery, so a failure, a success
// and another failure still confirm the outage on the second failure.
func (w *Website) Apply(o probe.Outcome, now time.Time) Event {
	if !o.Success {
		switch {
		case !w.LastCheckWasDown:
			w.LastCheckWasDown = true
			return EventNone
		case !w.IsDown:
			at := now
			w.IsDown = true
			w.WentDownAt = &at
			w.DowntimeCount++
			return EventWentDown
		case now.Sub(*w.WentDownAt) > StillDownAfter:
			return EventStillDown
		default:
			return EventNone
		}
	}

	if w.IsDown {
		w.IsDown = false
		w.LastCheckWasDown = false
		w.WentDownAt = nil
		return EventRecoveredUp
	}
	return EventNone
}

// Clone returns a deep copy safe to hand to readers.
func (w *Website) Clone() Website {
	c := *w
	if w.WentDownAt != nil {
		at := *w.WentDownAt
		c.WentDownAt = &at
	}
	return c
}

// CheckResult is one probe as recorded in the check history.
type CheckResult struct {
	CycleID    string    `json:"cycle_id"`
	URL        string    `json:"url"`
	Up         bool      `json:"up"`
	HTTPStatus int       `json:"http_status,omitempty"`
	LatencyMS  float64   `json:"latency_ms"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}
