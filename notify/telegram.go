// Package notify contains reviewer-notification collaborators. The core
// only depends on sink.ReviewerNotifier; which transport carries the
// message is a deployment choice.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"refundflow/sink"
)

// defaultHTTP is shared by notifiers constructed without an explicit
// client.
var defaultHTTP = &http.Client{Timeout: 10 * time.Second}

// Telegram posts upheld contests to a reviewer chat via the Telegram
// bot API. With no token or chat id configured it reports the
// notification as skipped instead of failing, so deployments without a
// reviewer channel still adjudicate. A single notifier is shared across
// concurrent adjudications, so its fields are never written after
// construction.
type Telegram struct {
	Token   string
	ChatID  string
	BaseURL string
	HTTP    *http.Client
}

func (t *Telegram) client() *http.Client {
	if t.HTTP != nil {
		return t.HTTP
	}
	return defaultHTTP
}

// NotifyReviewer implements sink.ReviewerNotifier.
func (t *Telegram) NotifyReviewer(ctx context.Context, req sink.ReviewRequest) (sink.NotifyResult, error) {
	if t.Token == "" || t.ChatID == "" {
		return sink.NotifyResult{Sent: false, Detail: "not_configured"}, nil
	}
	baseURL := t.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	text := fmt.Sprintf(
		"Contest ready for review\n\nOrder: %s\nAmount: %.2f\nAction: %s\nConfidence: %.0f%%\n\nGenerated defense:\n%s\n\nApprove and send?",
		req.OrderID, req.FinancialImpact, req.Action, req.Confidence*100, excerpt(req.Justification, 500),
	)

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.ChatID,
		"text":    text,
	})
	if err != nil {
		return sink.NotifyResult{}, fmt.Errorf("notify: encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", baseURL, t.Token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return sink.NotifyResult{}, fmt.Errorf("notify: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := t.client().Do(httpReq)
	if err != nil {
		return sink.NotifyResult{}, fmt.Errorf("notify: send telegram message: %w", err)
	}
	defer res.Body.Close()

	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return sink.NotifyResult{}, fmt.Errorf("notify: decode response: %w", err)
	}
	if !resp.OK {
		if resp.Description == "" {
			resp.Description = "telegram api error"
		}
		return sink.NotifyResult{}, fmt.Errorf("notify: %s", resp.Description)
	}

	return sink.NotifyResult{
		Sent:   true,
		Detail: fmt.Sprintf("message_id=%d", resp.Result.MessageID),
	}, nil
}

func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
