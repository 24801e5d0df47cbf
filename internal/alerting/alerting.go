package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bher20/equotemanager/internal/storage"
	"go.uber.org/zap"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic".
	// Empty means auto-detect from the URL.
	WebhookType string
	// Timeout for HTTP requests
	Timeout time.Duration
}

// Enabled reports whether a webhook is configured.
func (c AlertConfig) Enabled() bool { return c.WebhookURL != "" }

func (c AlertConfig) payloadType() string {
	if c.WebhookType != "" && c.WebhookType != "auto" {
		return c.WebhookType
	}
	switch {
	case strings.Contains(c.WebhookURL, "slack.com"):
		return "slack"
	case strings.Contains(c.WebhookURL, "discord.com"):
		return "discord"
	default:
		return "generic"
	}
}

// Alerter sends alerts to configured webhooks.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
}

// NewAlerter creates a new alerter instance.
func NewAlerter(cfg AlertConfig) *Alerter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Alerter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Field is a labelled value shown in an alert.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Alert is a channel-agnostic notification.
type Alert struct {
	Type      string    `json:"alert_type"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Fields    []Field   `json:"fields,omitempty"`
	Items     []string  `json:"items,omitempty"`
	Urgent    bool      `json:"urgent"`
	Timestamp time.Time `json:"timestamp"`
}

// LeadAlert announces a new lead. q is nil for contact form leads.
func LeadAlert(lead storage.Lead, c storage.Customer, q *storage.Quote) Alert {
	a := Alert{
		Type:    "new_lead",
		Title:   fmt.Sprintf("New lead: %s %s", c.FirstName, c.LastName),
		Summary: fmt.Sprintf("via %s", strings.ReplaceAll(lead.Source, "_", " ")),
		Fields: []Field{
			{Name: "Email", Value: c.Email},
			{Name: "Phone", Value: c.Phone},
		},
		Timestamp: lead.CreatedAt,
	}
	if c.City != "" {
		a.Fields = append(a.Fields, Field{Name: "City", Value: strings.TrimSpace(c.City + " " + c.State)})
	}
	if q != nil {
		a.Fields = append(a.Fields,
			Field{Name: "Service", Value: variantLabel(q.Variant)},
			Field{Name: "Estimate", Value: fmt.Sprintf("$%d - $%d", q.PriceMin, q.PriceMax)},
		)
	}
	return a
}

// StaleLeadsAlert summarises leads nobody has contacted yet.
func StaleLeadsAlert(leads []storage.Lead, olderThan time.Duration, now time.Time) Alert {
	items := make([]string, 0, len(leads))
	for _, l := range leads {
		age := now.Sub(l.CreatedAt).Round(time.Hour)
		items = append(items, fmt.Sprintf("%s (%s, waiting %s)", l.ID, strings.ReplaceAll(l.Source, "_", " "), age))
	}
	return Alert{
		Type:      "stale_leads",
		Title:     "Leads waiting for follow-up",
		Summary:   fmt.Sprintf("%d lead(s) still new after %s", len(leads), olderThan),
		Items:     items,
		Urgent:    true,
		Timestamp: now,
	}
}

func variantLabel(v string) string {
	switch v {
	case "res":
		return "Residential"
	case "com":
		return "Commercial"
	}
	return v
}

// Send posts the alert to the configured webhook. It is a no-op when
// alerting is disabled.
func (a *Alerter) Send(ctx context.Context, alert Alert) error {
	if !a.cfg.Enabled() {
		zap.L().Debug("alerting: alerts disabled, skipping", zap.String("type", alert.Type))
		return nil
	}

	var payload []byte
	var err error

	switch a.cfg.payloadType() {
	case "slack":
		payload, err = buildSlackPayload(alert)
	case "discord":
		payload, err = buildDiscordPayload(alert)
	default:
		payload, err = json.Marshal(alert)
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	zap.L().Info("alerting: sent alert", zap.String("type", alert.Type))
	return nil
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("• " + it + "\n")
	}
	return b.String()
}

func buildSlackPayload(alert Alert) ([]byte, error) {
	emoji := ":sparkles:"
	if alert.Urgent {
		emoji = ":warning:"
	}

	fields := make([]map[string]string, 0, len(alert.Fields))
	for _, f := range alert.Fields {
		fields = append(fields, map[string]string{"type": "mrkdwn", "text": fmt.Sprintf("*%s:*\n%s", f.Name, f.Value)})
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]string{
				"type": "plain_text",
				"text": fmt.Sprintf("%s %s", emoji, alert.Title),
			},
		},
		{
			"type": "section",
			"text": map[string]string{"type": "mrkdwn", "text": alert.Summary},
		},
	}
	if len(fields) > 0 {
		blocks = append(blocks, map[string]interface{}{"type": "section", "fields": fields})
	}
	if len(alert.Items) > 0 {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": bulletList(alert.Items),
			},
		})
	}

	return json.Marshal(map[string]interface{}{"blocks": blocks})
}

func buildDiscordPayload(alert Alert) ([]byte, error) {
	color := 3066993 // Green
	if alert.Urgent {
		color = 16776960 // Yellow
	}

	fields := make([]map[string]interface{}, 0, len(alert.Fields)+1)
	for _, f := range alert.Fields {
		fields = append(fields, map[string]interface{}{"name": f.Name, "value": f.Value, "inline": true})
	}
	if len(alert.Items) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "Leads",
			"value":  bulletList(alert.Items),
			"inline": false,
		})
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       alert.Title,
				"description": alert.Summary,
				"color":       color,
				"fields":      fields,
				"timestamp":   alert.Timestamp.Format(time.RFC3339),
			},
		},
	}

	return json.Marshal(payload)
}
