// Package notifier posts cost alerts to a Slack incoming webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/samber/lo"
)

// SlackClient handles Slack notifications.
type SlackClient struct {
	WebhookURL string
	Channel    string // Optional: Override default channel
	HTTPClient *http.Client
}

// NewSlackClient initializes the Slack integration.
func NewSlackClient(webhookURL string, channel string) *SlackClient {
	return &SlackClient{
		WebhookURL: webhookURL,
		Channel:    channel,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var kindTitles = map[analytics.SpendKind]string{
	analytics.SpendTotal:            "Total Spend",
	analytics.SpendDailyBurn:        "Daily Burn",
	analytics.SpendProjectedMonthly: "Projected Monthly",
}

// Alerting returns the KPIs of s that spiked or crossed the warning band.
func Alerting(s *engine.CostSummary) []engine.KPI {
	return lo.Filter(s.KPIs(), func(k engine.KPI, _ int) bool {
		return k.Anomaly || k.Recommendation.Severity == analytics.SeverityWarning
	})
}

// SendCostAlert posts s when at least one KPI is alerting. It reports
// whether a message was sent.
func (s *SlackClient) SendCostAlert(ctx context.Context, summary *engine.CostSummary) (bool, error) {
	if s.WebhookURL == "" {
		return false, nil
	}
	alerts := Alerting(summary)
	if len(alerts) == 0 {
		return false, nil
	}
	if err := s.send(ctx, s.constructPayload(summary, alerts)); err != nil {
		return false, err
	}
	return true, nil
}

// constructPayload builds the message blocks.
func (s *SlackClient) constructPayload(summary *engine.CostSummary, alerts []engine.KPI) map[string]interface{} {
	statusIcon := "🟡"
	if lo.SomeBy(alerts, func(k engine.KPI) bool { return k.Anomaly }) {
		statusIcon = "🔴"
	}

	fields := lo.Map(summary.KPIs(), func(k engine.KPI, _ int) map[string]interface{} {
		return map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s:*\n$%.2f (prev $%.2f)", kindTitles[k.Kind], k.Value, k.Previous),
		}
	})

	blocks := []map[string]interface{}{
		// Header
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Cloud Spend Alert", statusIcon),
			},
		},
		// Context: range and granularity
		{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Range:* %s | *Granularity:* %s", summary.TimeRange, summary.Granularity),
				},
			},
		},
		{
			"type": "divider",
		},
		{
			"type":   "section",
			"fields": fields,
		},
	}

	for _, k := range alerts {
		text := fmt.Sprintf("*%s*: %s", kindTitles[k.Kind], k.Recommendation.Message)
		if k.Anomaly {
			text = "⚠️ *Spike detected.* " + text
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": text,
			},
		})
	}

	payload := map[string]interface{}{
		"blocks": blocks,
	}

	if s.Channel != "" {
		payload["channel"] = s.Channel
	}

	return payload
}

func (s *SlackClient) send(ctx context.Context, payload map[string]interface{}) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status from slack: %d", resp.StatusCode)
	}
	return nil
}
