// Package client is the typed HTTP client for the Tomin backend: spending
// distribution, transactions, recurring detections, the financial summary,
// and bank-statement management. Every payload is validated at this
// boundary; malformed records are dropped with a diagnostic instead of
// propagating untyped values into view state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	tomin "github.com/tomin-app/tomin-web"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	// BaseURL of the backend collaborator, e.g. "http://localhost:8000".
	BaseURL string
	// Timeout bounds every request; a hung fetch must never block a
	// refresh invocation indefinitely. Defaults to 15s.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     tomin.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  tomin.Logger
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	} else if httpClient.Timeout == 0 {
		clone := *httpClient
		clone.Timeout = timeout
		httpClient = &clone
	}

	logger := cfg.Logger
	if logger == nil {
		logger = tomin.DefaultLogger()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}, nil
}

// SpendingDistribution fetches per-category spending for the period.
func (c *Client) SpendingDistribution(ctx context.Context, credential string, period Period) ([]SpendingSlice, error) {
	var raw []SpendingSlice
	if err := c.get(ctx, credential, "/api/transactions/spending-distribution", periodQuery(period), &raw); err != nil {
		return nil, tomin.WrapFetchFailure(err, "spending distribution")
	}

	slices := raw[:0]
	for _, s := range raw {
		if err := s.Validate(); err != nil {
			c.logger.Warn("Dropping malformed spending record for %q: %s", s.Category, err)
			continue
		}
		slices = append(slices, s)
	}
	return slices, nil
}

// Transactions fetches the transaction list for the period.
func (c *Client) Transactions(ctx context.Context, credential string, period Period) ([]Transaction, error) {
	return c.transactionList(ctx, credential, "/api/transactions/", period, "transactions")
}

// RecurringTransactions fetches detected recurring movements for the period.
func (c *Client) RecurringTransactions(ctx context.Context, credential string, period Period) ([]Transaction, error) {
	return c.transactionList(ctx, credential, "/api/transactions/recurring", period, "recurring transactions")
}

func (c *Client) transactionList(ctx context.Context, credential, path string, period Period, collection string) ([]Transaction, error) {
	var raw []Transaction
	if err := c.get(ctx, credential, path, periodQuery(period), &raw); err != nil {
		return nil, tomin.WrapFetchFailure(err, collection)
	}

	txs := raw[:0]
	for _, t := range raw {
		if err := t.Validate(); err != nil {
			c.logger.Warn("Dropping malformed transaction %s: %s", t.ID, err)
			continue
		}
		txs = append(txs, t)
	}
	return txs, nil
}

// Summary fetches the headline financial figures.
func (c *Client) Summary(ctx context.Context, credential string) (*Summary, error) {
	var summary Summary
	if err := c.get(ctx, credential, "/api/transactions/summary", nil, &summary); err != nil {
		return nil, tomin.WrapFetchFailure(err, "financial summary")
	}
	return &summary, nil
}

// Statements lists uploaded bank statements.
func (c *Client) Statements(ctx context.Context, credential string) ([]Statement, error) {
	var statements []Statement
	if err := c.get(ctx, credential, "/api/statements/", nil, &statements); err != nil {
		return nil, tomin.WrapFetchFailure(err, "statements")
	}
	return statements, nil
}

// StatementCount returns how many statements are on record.
func (c *Client) StatementCount(ctx context.Context, credential string) (int, error) {
	var payload struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, credential, "/api/statements/count", nil, &payload); err != nil {
		return 0, tomin.WrapFetchFailure(err, "statement count")
	}
	return payload.Count, nil
}

// DeleteStatement removes a statement and its transactions.
func (c *Client) DeleteStatement(ctx context.Context, credential string, id uuid.UUID) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/statements/"+id.String(), nil, credential)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return tomin.WrapFetchFailure(err, "statement delete")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return tomin.WrapFetchFailure(statusError(resp.StatusCode, req.URL.Path), "statement delete")
	}
	return nil
}

// UploadStatement submits a bank-statement document. Processing is
// asynchronous; completion is signaled later over the live feed.
func (c *Client) UploadStatement(ctx context.Context, credential, filename string, file io.Reader) (*UploadAck, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, tomin.WrapUploadFailure(err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, tomin.WrapUploadFailure(err)
	}
	if err := writer.Close(); err != nil {
		return nil, tomin.WrapUploadFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transactions/upload-bank-statement", body)
	if err != nil {
		return nil, tomin.WrapUploadFailure(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, tomin.WrapUploadFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, tomin.WrapUploadFailure(statusError(resp.StatusCode, req.URL.Path))
	}

	var ack UploadAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, tomin.WrapUploadFailure(err)
	}
	return &ack, nil
}

func (c *Client) get(ctx context.Context, credential, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, credential)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, req.URL.Path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, credential string) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	return req, nil
}

func periodQuery(period Period) url.Values {
	if period == "" {
		period = DefaultPeriod
	}
	return url.Values{"period": []string{string(period)}}
}

func statusError(status int, path string) error {
	return errors.New("backend returned unexpected status", errors.CategoryOperation).
		WithMetadata(map[string]any{
			"status": status,
			"path":   path,
		})
}
