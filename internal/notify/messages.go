package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/pingzy/internal/domain"
)

// TimeLayout renders timestamps inside messages.
const TimeLayout = time.RFC1123

const DefaultUsername = "Pingzy"

// Sender identity stamped on every payload.
type Identity struct {
	Channel  string
	Username string
	// Icon overrides the per-message emoji when set.
	Icon string
}

func (id Identity) stamp(p Payload, icon string) Payload {
	p.Channel = id.Channel
	p.Username = id.Username
	if p.Username == "" {
		p.Username = DefaultUsername
	}
	p.IconEmoji = icon
	if id.Icon != "" {
		p.IconEmoji = id.Icon
	}
	return p
}

func link(w domain.Website) string {
	return "<" + w.URL + "|" + w.DisplayURL + ">"
}

// URLList formats urls as Slack links, "<u|u> " joined by ", ".
func URLList(urls []string) string {
	parts := make([]string, len(urls))
	for i, u := range urls {
		parts[i] = "<" + u + "|" + u + "> "
	}
	return strings.Join(parts, ", ")
}

func (id Identity) attachment(text, color, icon string) Payload {
	return id.stamp(Payload{
		Fallback: text,
		Color:    color,
		Fields:   []Field{{Value: text}},
	}, icon)
}

// ForEvent builds the message for a state transition. ok is false for
// domain.EventNone.
func (id Identity) ForEvent(ev domain.Event, w domain.Website) (Payload, bool) {
	switch ev {
	case domain.EventWentDown:
		at := ""
		if w.WentDownAt != nil {
			at = w.WentDownAt.Format(TimeLayout)
		}
		return id.WentDown(w, at), true
	case domain.EventStillDown:
		return id.StillDown(w), true
	case domain.EventRecoveredUp:
		return id.Recovered(w), true
	}
	return Payload{}, false
}

func (id Identity) WentDown(w domain.Website, at string) Payload {
	return id.attachment("Website "+link(w)+" just went down at "+at, ColorDanger, IconThumbsDown)
}

func (id Identity) StillDown(w domain.Website) Payload {
	return id.attachment("Website "+link(w)+" is still down.", ColorDanger, IconThumbsDown)
}

func (id Identity) Recovered(w domain.Website) Payload {
	return id.attachment("Website "+link(w)+" went back online. Good job!", ColorGood, IconThumbsUp)
}

func (id Identity) Startup(urls []string) Payload {
	return id.stamp(Payload{Text: "Starting monitoring urls: " + URLList(urls)}, IconThumbsUp)
}

// DailySummary lists every site, down ones with their outage start and up
// ones with how often they went down.
func (id Identity) DailySummary(sites []domain.Website) Payload {
	urls := make([]string, len(sites))
	fields := make([]Field, len(sites))
	for i, w := range sites {
		urls[i] = w.URL
		value := fmt.Sprintf("Site is currently up and has been down %d times.", w.DowntimeCount)
		if w.IsDown && w.WentDownAt != nil {
			value = "Site is down since " + w.WentDownAt.Format(TimeLayout)
		}
		fields[i] = Field{Title: w.URL, Value: value, Short: false}
	}
	return id.stamp(Payload{
		Fallback: "Hi there! Still monitoring urls: " + URLList(urls),
		Color:    ColorGood,
		Pretext:  "Daily summary:",
		Fields:   fields,
	}, IconThumbsUp)
}
