package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Summary is the structured application digest sent to the external
// model. It deliberately excludes PII beyond the application ID.
type Summary struct {
	ApplicationID  string  `json:"applicationId"`
	RiskScore      float64 `json:"riskScore"`
	Recommendation string  `json:"recommendation"`
	CreditScore    int     `json:"creditScore"`
	DebtToIncome   float64 `json:"debtToIncome"`
	LoanToValue    float64 `json:"loanToValue"`
}

// Enhancer calls an external model for free-text commentary on an
// estimate. Implementations must honor the context deadline.
type Enhancer interface {
	Enhance(ctx context.Context, s *Summary) (string, error)
}

// HTTPEnhancer posts the summary to a scoring endpoint and returns the
// commentary field of the response.
type HTTPEnhancer struct {
	url    string
	client *http.Client
}

func NewHTTPEnhancer(url string) *HTTPEnhancer {
	return &HTTPEnhancer{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPEnhancer) Enhance(ctx context.Context, s *Summary) (string, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("model endpoint returned %d", resp.StatusCode)
	}

	var out struct {
		Commentary string `json:"commentary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Commentary, nil
}
