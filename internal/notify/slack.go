// Package notify posts sync lifecycle events to a Slack incoming
// webhook. A notifier built without a webhook URL is a no-op.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/qq940500529/oracle-feishu-sync/internal/config"
	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
)

const (
	colorGreen  = "#36a64f"
	colorRed    = "#dc3545"
	iconStarted = ":arrows_counterclockwise:"
	iconOK      = ":white_check_mark:"
	iconFailed  = ":x:"

	maxErrorLength  = 500
	defaultUsername = "oracle-feishu-sync"
)

// SlackMessage is the webhook payload.
type SlackMessage struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	IconEmoji   string       `json:"icon_emoji,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is one colored block in a Slack message.
type Attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Footer string  `json:"footer,omitempty"`
	TS     int64   `json:"ts,omitempty"`
}

// Field is a titled value inside an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notifier sends sync events to Slack.
type Notifier struct {
	config *config.SlackConfig
	client *http.Client
}

// New creates a notifier. A nil config yields a disabled notifier whose
// methods all succeed silently.
func New(cfg *config.SlackConfig) *Notifier {
	return &Notifier{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled reports whether notifications will actually be sent.
func (n *Notifier) IsEnabled() bool {
	return n.config != nil && n.config.Enabled && n.config.WebhookURL != ""
}

func (n *Notifier) getUsername() string {
	if n.config != nil && n.config.Username != "" {
		return n.config.Username
	}
	return defaultUsername
}

// SyncStarted announces a new run.
func (n *Notifier) SyncStarted(runID, table string, pending int64) error {
	if !n.IsEnabled() {
		return nil
	}
	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: iconStarted,
		Attachments: []Attachment{{
			Color: colorGreen,
			Title: "Sync Started",
			Fields: []Field{
				{Title: "Run", Value: runID, Short: true},
				{Title: "Source Table", Value: table, Short: true},
				{Title: "Pending Rows", Value: formatNumberWithCommas(pending), Short: true},
			},
			Footer: defaultUsername,
			TS:     time.Now().Unix(),
		}},
	})
}

// SyncCompleted announces a successful run.
func (n *Notifier) SyncCompleted(runID string, duration time.Duration, records int64, tablesCreated int) error {
	if !n.IsEnabled() {
		return nil
	}
	rate := float64(0)
	if duration > 0 {
		rate = float64(records) / duration.Seconds()
	}
	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: iconOK,
		Attachments: []Attachment{{
			Color: colorGreen,
			Title: "Sync Completed",
			Fields: []Field{
				{Title: "Run", Value: runID, Short: true},
				{Title: "Duration", Value: formatDuration(duration), Short: true},
				{Title: "Records", Value: formatNumberWithCommas(records), Short: true},
				{Title: "Tables Created", Value: fmt.Sprintf("%d", tablesCreated), Short: true},
				{Title: "Rate", Value: fmt.Sprintf("%.0f rows/sec", rate), Short: true},
			},
			Footer: defaultUsername,
			TS:     time.Now().Unix(),
		}},
	})
}

// SyncFailed announces a failed run.
func (n *Notifier) SyncFailed(runID string, runErr error, duration time.Duration) error {
	if !n.IsEnabled() {
		return nil
	}
	errMsg := "Unknown error"
	if runErr != nil {
		errMsg = runErr.Error()
		if len(errMsg) > maxErrorLength {
			errMsg = errMsg[:maxErrorLength] + "..."
		}
	}
	return n.send(SlackMessage{
		Channel:   n.config.Channel,
		Username:  n.getUsername(),
		IconEmoji: iconFailed,
		Attachments: []Attachment{{
			Color: colorRed,
			Title: "Sync Failed",
			Fields: []Field{
				{Title: "Run", Value: runID, Short: true},
				{Title: "Duration", Value: formatDuration(duration), Short: true},
				{Title: "Error", Value: errMsg, Short: false},
			},
			Footer: defaultUsername,
			TS:     time.Now().Unix(),
		}},
	})
}

func (n *Notifier) send(msg SlackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	resp, err := n.client.Post(n.config.WebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	logging.Debug("Slack notification sent: %s", msg.Attachments[0].Title)
	return nil
}

func formatNumberWithCommas(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
