package notify

// Slack attachment colors.
const (
	ColorGood   = "good"
	ColorDanger = "danger"
)

const (
	IconThumbsUp   = ":thumbsup:"
	IconThumbsDown = ":thumbsdown:"
)

// Field is one titled line of an attachment.
type Field struct {
	Title string `json:"title,omitempty"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Text      string  `json:"text,omitempty"`
	Fallback  string  `json:"fallback,omitempty"`
	Color     string  `json:"color,omitempty"`
	Pretext   string  `json:"pretext,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Channel   string  `json:"channel,omitempty"`
	Username  string  `json:"username,omitempty"`
	IconEmoji string  `json:"icon_emoji,omitempty"`
}

// Summary is the one-line form used in logs.
func (p Payload) Summary() string {
	switch {
	case p.Text != "":
		return p.Text
	case p.Fallback != "":
		return p.Fallback
	case p.Pretext != "":
		return p.Pretext
	}
	return ""
}
