// Package invoicing is the HTTP client for the invoice-creation service.
// It is the collaborator the conversion engine submits finalized documents
// to; retry policy belongs to the caller, never to this client.
package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/sales"
)

// Client wraps interactions with the invoicing API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the remote invoicing service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("invoicing service returned status %d", resp.StatusCode)
	}
	return nil
}

// CreateInvoice submits the invoice payload and returns the created
// invoice's identifier and human reference.
func (c *Client) CreateInvoice(ctx context.Context, payload sales.InvoiceRequest) (sales.InvoiceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return sales.InvoiceResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/invoices", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return sales.InvoiceResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sales.InvoiceResult{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return sales.InvoiceResult{}, fmt.Errorf("create invoice failed with status %d", resp.StatusCode)
	}

	var result sales.InvoiceResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return sales.InvoiceResult{}, fmt.Errorf("decode invoice response: %w", err)
	}
	if result.ID == "" {
		return sales.InvoiceResult{}, fmt.Errorf("invoicing service returned empty invoice id")
	}
	return result, nil
}
