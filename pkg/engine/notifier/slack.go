// Package notifier posts scan results to a Slack incoming webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/evo-uds/cloudsweep/pkg/engine/anomaly"
	"github.com/evo-uds/cloudsweep/pkg/engine/scanner"
)

// SlackClient handles Slack notifications. A client with an empty webhook
// URL is a no-op, so callers never need to branch.
type SlackClient struct {
	WebhookURL string
	Channel    string // Optional: Override default channel
}

// NewSlackClient initializes the Slack integration.
func NewSlackClient(webhookURL string, channel string) *SlackClient {
	return &SlackClient{
		WebhookURL: webhookURL,
		Channel:    channel,
	}
}

// SendScanSummary posts the outcome of one waste scan.
func (s *SlackClient) SendScanSummary(ctx context.Context, summary scanner.Summary) error {
	if s.WebhookURL == "" {
		return nil
	}
	return s.send(ctx, s.constructScanPayload(summary))
}

// SendAnomalyReport posts the outcome of one anomaly run. Insufficient
// history is not worth a message.
func (s *SlackClient) SendAnomalyReport(ctx context.Context, accountID string, res *anomaly.Result) error {
	if s.WebhookURL == "" || res.Insufficient {
		return nil
	}

	text := fmt.Sprintf("*Account:* %s\n*Anomalies:* %d (%d critical)\n*Total deviation:* $%.2f",
		accountID,
		len(res.Anomalies),
		res.Summary.BySeverity[anomaly.SeverityCritical],
		res.Summary.TotalDeviation)

	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type": "plain_text",
					"text": "📈 Cost Anomaly Report",
				},
			},
			{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	return s.send(ctx, payload)
}

// constructScanPayload builds the message blocks.
func (s *SlackClient) constructScanPayload(summary scanner.Summary) map[string]interface{} {
	// Determine status icon.
	statusIcon := "🟢"
	if summary.TotalMonthlyWaste > 1000 {
		statusIcon = "🔴"
	} else if summary.TotalMonthlyWaste > 0 {
		statusIcon = "🟡"
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Cloud Waste Report", statusIcon),
			},
		},
		{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Scan Date:* %s | *Account:* %s | *Regions:* %d",
						summary.StartedAt.Format("2006-01-02"), summary.AccountID, len(summary.RegionsScanned)),
				},
			},
		},
		{
			"type": "divider",
		},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Monthly Waste:*\n$%.2f", summary.TotalMonthlyWaste),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Yearly Waste:*\n$%.2f", summary.TotalYearlyWaste),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Findings:*\n%d", summary.WasteCount),
				},
			},
		},
	}

	if len(summary.FailedRegions) > 0 {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("⚠️ *Partial scan:* %d region(s) failed and are not included.", len(summary.FailedRegions)),
			},
		})
	}
	if summary.TotalMonthlyWaste > 500 {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": "⚠️ *High Financial Impact Detected*\nSignificant unused infrastructure has been identified. Immediate review is recommended.",
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

	req, err := http.NewRequestWithContext(ctx, "POST", s.WebhookURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("received non-200 status from slack: %d", resp.StatusCode)
	}
	return nil
}
