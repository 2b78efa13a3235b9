package qr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vending-gateway/internal/core/domain"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SePayProvider creates QR codes through the SePay user API.
type SePayProvider struct {
	endpoint   string
	apiKey     string
	httpClient HTTPClient
}

// NewSePayProvider creates a SePay provider.
func NewSePayProvider(endpoint, apiKey string, httpClient HTTPClient) (*SePayProvider, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("sepay: api_base and api_key are required")
	}
	return &SePayProvider{endpoint: endpoint, apiKey: apiKey, httpClient: httpClient}, nil
}

type sepayRequest struct {
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"amount"`
	Content       string `json:"content"`
}

type sepayResponse struct {
	Status int `json:"status"`
	Data   struct {
		QR string `json:"qr"`
	} `json:"data"`
	Error string `json:"error"`
}

// Generate requests a QR image for the transfer.
func (p *SePayProvider) Generate(ctx context.Context, req domain.QRRequest) (*domain.QRImage, error) {
	body, err := json.Marshal(sepayRequest{AccountNumber: req.Account, Amount: req.Amount, Content: req.Code})
	if err != nil {
		return nil, fmt.Errorf("sepay: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sepay: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sepay: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("sepay: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sepay: status %d", resp.StatusCode)
	}

	var out sepayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("sepay: decode response: %w", err)
	}
	if out.Status != http.StatusOK || out.Data.QR == "" {
		return nil, fmt.Errorf("sepay: no qr in response (status %d): %s", out.Status, out.Error)
	}

	return &domain.QRImage{Provider: p.Name(), URL: out.Data.QR}, nil
}

// Name returns the provider name.
func (p *SePayProvider) Name() string {
	return "sepay"
}
