package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// deliver sends a to every configured target. Errors are logged only.
func (n *Notifier) deliver(a *types.Alert) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(url, a)
		case "teams":
			err = n.sendTeams(url, a)
		case "http":
			err = n.sendHTTP(url, a)
		default:
			n.log.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			n.log.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"id", a.ID,
				"err", err,
			)
		} else {
			n.log.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"id", a.ID,
				"state", a.State,
			)
		}
	}
}

func message(a *types.Alert) string {
	if a.State == types.AlertDismissed {
		return fmt.Sprintf("Low blink rate alert dismissed (session %s).", a.SessionID)
	}
	return fmt.Sprintf("Low blink rate: %.1f blinks/min (threshold %.0f). Time to rest your eyes.",
		a.Rate, a.LowBlinkThreshold)
}

func (n *Notifier) sendSlack(url string, a *types.Alert) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", stateLabel(a.State), message(a)),
	})
	return n.post(url, body)
}

func (n *Notifier) sendTeams(url string, a *types.Alert) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": stateColor(a.State),
		"summary":    "Low blink rate",
		"title":      "Blinkwatch: low blink rate",
		"text":       message(a),
	}
	body, _ := json.Marshal(payload)
	return n.post(url, body)
}

func (n *Notifier) sendHTTP(url string, a *types.Alert) error {
	body, _ := json.Marshal(map[string]interface{}{"alert": a})
	return n.post(url, body)
}

func (n *Notifier) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func stateLabel(s types.AlertState) string {
	if s == types.AlertDismissed {
		return "[DISMISSED]"
	}
	return "[ALERT]"
}

func stateColor(s types.AlertState) string {
	if s == types.AlertDismissed {
		return "00D4FF"
	}
	return "FFAB40"
}
