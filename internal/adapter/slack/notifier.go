// Package slack announces settled jobs on a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/TaskDesk/internal/port/notifier"
)

const (
	providerName   = "slack"
	defaultTimeout = 10 * time.Second
)

// Notifier posts Block Kit messages to one webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithTimeout bounds each webhook call. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.httpClient = c }
}

// NewNotifier creates a Slack notifier for webhookURL.
func NewNotifier(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{RichFormatting: true}
}

type message struct {
	Text   string  `json:"text"` // fallback for clients without blocks
	Blocks []block `json:"blocks"`
}

type block struct {
	Type      string  `json:"type"`
	Text      *text   `json:"text,omitempty"`
	Accessory *button `json:"accessory,omitempty"`
	Elements  []text  `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type button struct {
	Type string `json:"type"`
	Text text   `json:"text"`
	URL  string `json:"url"`
}

func (n *Notifier) Send(ctx context.Context, nt notifier.Notification) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	body, err := json.Marshal(buildMessage(nt))
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("slack webhook %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return nil
}

// buildMessage renders a notification as a header, a body section carrying
// an "Open result" button when the job produced a link, and a context line
// naming the operation.
func buildMessage(nt notifier.Notification) message {
	headline := levelEmoji(nt.Level) + " " + nt.Title
	body := block{Type: "section", Text: &text{Type: "mrkdwn", Text: nt.Message}}
	if nt.Link != "" {
		body.Accessory = &button{
			Type: "button",
			Text: text{Type: "plain_text", Text: "Open result"},
			URL:  nt.Link,
		}
	}

	msg := message{
		Text: headline + ": " + nt.Message,
		Blocks: []block{
			{Type: "header", Text: &text{Type: "plain_text", Text: headline}},
			body,
		},
	}
	if nt.Source != "" {
		msg.Blocks = append(msg.Blocks, block{
			Type:     "context",
			Elements: []text{{Type: "mrkdwn", Text: "taskdesk · `" + nt.Source + "`"}},
		})
	}
	return msg
}

func levelEmoji(level string) string {
	switch level {
	case notifier.LevelSuccess:
		return ":white_check_mark:"
	case notifier.LevelError:
		return ":x:"
	default:
		return ":information_source:"
	}
}
