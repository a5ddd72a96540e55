// Package gateway implements the four analysis capabilities against the
// model-gateway service over HTTP. The engine only sees the capability
// interfaces; swapping the gateway for another backend is a wiring
// change in cmd.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"refundflow/capability"
)

// maxRetries is the fixed retry count for gateway calls. Retrying is the
// gateway client's job; the engine treats any final failure as a reason
// to escalate.
const maxRetries = 2

// Client talks to the model-gateway service. The zero value is not
// usable; construct with NewClient.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// AnalyzeImage implements capability.ImageAdjudicator.
func (c *Client) AnalyzeImage(ctx context.Context, req capability.ImageRequest) (capability.ImageAnalysis, error) {
	body := map[string]any{
		"photo_ref":  req.PhotoRef,
		"claim_type": req.ClaimType,
		"context": map[string]any{
			"order_id":         req.OrderID,
			"financial_impact": req.FinancialImpact,
		},
	}

	var out capability.ImageAnalysis
	if err := c.postJSON(ctx, "/v1/image-analysis", body, &out); err != nil {
		return capability.ImageAnalysis{}, fmt.Errorf("gateway: image analysis: %w", err)
	}
	return out, nil
}

// AnalyzeChat implements capability.ChatAnalyzer.
func (c *Client) AnalyzeChat(ctx context.Context, req capability.ChatRequest) (capability.ChatAnalysis, error) {
	body := map[string]any{
		"messages": req.Messages,
		"context": map[string]any{
			"order_id":    req.OrderID,
			"reason_code": req.ReasonCode,
		},
	}

	var out capability.ChatAnalysis
	if err := c.postJSON(ctx, "/v1/chat-analysis", body, &out); err != nil {
		return capability.ChatAnalysis{}, fmt.Errorf("gateway: chat analysis: %w", err)
	}
	return out, nil
}

// RetrievePolicy implements capability.PolicyRetriever.
func (c *Client) RetrievePolicy(ctx context.Context, query string) (string, error) {
	var out struct {
		PolicyText string `json:"policy_text"`
	}
	if err := c.postJSON(ctx, "/v1/policy-search", map[string]any{"query": query}, &out); err != nil {
		return "", fmt.Errorf("gateway: policy search: %w", err)
	}
	return out.PolicyText, nil
}

// Compose implements capability.Composer.
func (c *Client) Compose(ctx context.Context, req capability.ComposeRequest) (string, error) {
	body := map[string]any{
		"situation":      req.Situation,
		"evidence":       req.Evidence,
		"policy_text":    req.PolicyText,
		"order_id":       req.OrderID,
		"customer_claim": req.CustomerClaim,
	}

	var out struct {
		Justification string `json:"justification_text"`
	}
	if err := c.postJSON(ctx, "/v1/compose", body, &out); err != nil {
		return "", fmt.Errorf("gateway: compose: %w", err)
	}
	return out.Justification, nil
}

// postJSON posts a JSON body and decodes the JSON response into out,
// retrying transport errors and 5xx responses up to maxRetries times.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		retryable, err := c.doOnce(ctx, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// doOnce performs a single request. The bool reports whether the failure
// is worth retrying (transport errors and 5xx responses are; a 4xx is a
// permanent request problem).
func (c *Client) doOnce(ctx context.Context, path string, payload []byte, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return true, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return res.StatusCode >= 500, fmt.Errorf("unexpected status %d: %s", res.StatusCode, snippet)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
