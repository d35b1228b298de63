// Package batch is the REST client of the batch import service, including the
// streaming file upload transport.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jaki95/feedback-importer/internal/domain"
)

const (
	importPrefix          = "/batch-import"
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 32 << 20
)

// Client talks to the batch service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	token          string
	requestTimeout time.Duration
	uploadBase     time.Duration
	uploadPerMiB   time.Duration
	onAuthExpired  func()
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithRequestTimeout bounds every non-upload request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithUploadTimeout overrides the base and per-MiB upload allowances.
func WithUploadTimeout(base, perMiB time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.uploadBase = base
		}
		if perMiB >= 0 {
			c.uploadPerMiB = perMiB
		}
	}
}

// WithAuthExpired registers the session-invalidation hook run on HTTP 401.
func WithAuthExpired(fn func()) Option {
	return func(c *Client) {
		c.onAuthExpired = fn
	}
}

// NewClient constructs a client for the service rooted at baseURL
// (for example http://localhost:8080/api/v1).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
		uploadBase:     DefaultUploadBaseTimeout,
		uploadPerMiB:   DefaultUploadPerMiBTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func batchPath(batchID, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", importPrefix, url.PathEscape(batchID), suffix)
}

// DataPreview fetches preview rows and column statistics.
func (c *Client) DataPreview(ctx context.Context, batchID string) (*domain.DataPreview, error) {
	var out domain.DataPreview
	if err := c.do(ctx, http.MethodGet, batchPath(batchID, "data-preview"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BuildPrompt submits the dedup columns and returns the constructed prompt.
func (c *Client) BuildPrompt(ctx context.Context, batchID string, dedupColumns []string) (*domain.PromptPreview, error) {
	body := domain.BuildPromptRequest{DedupColumns: nonNil(dedupColumns)}
	var out domain.PromptPreview
	if err := c.do(ctx, http.MethodPost, batchPath(batchID, "build-prompt"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePrompt persists edited prompt text and returns the saved text.
func (c *Client) UpdatePrompt(ctx context.Context, batchID, text string) (string, error) {
	var out domain.UpdatePromptRequest
	if err := c.do(ctx, http.MethodPut, batchPath(batchID, "update-prompt"), domain.UpdatePromptRequest{PromptText: text}, &out); err != nil {
		return "", err
	}
	return out.PromptText, nil
}

// GenerateMapping triggers LLM-assisted mapping generation.
func (c *Client) GenerateMapping(ctx context.Context, batchID string, dedupColumns []string) error {
	body := domain.GenerateMappingRequest{DedupColumns: nonNil(dedupColumns)}
	return c.do(ctx, http.MethodPost, batchPath(batchID, "generate-mapping"), body, nil)
}

// PromptText fetches the current prompt.
func (c *Client) PromptText(ctx context.Context, batchID string) (*domain.PromptPreview, error) {
	var out domain.PromptPreview
	if err := c.do(ctx, http.MethodGet, batchPath(batchID, "prompt-text"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MappingPreview fetches the suggested column mapping.
func (c *Client) MappingPreview(ctx context.Context, batchID string) (*domain.MappingPreview, error) {
	var out domain.MappingPreview
	if err := c.do(ctx, http.MethodGet, batchPath(batchID, "mapping-preview"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResultPreview fetches sample imported records.
func (c *Client) ResultPreview(ctx context.Context, batchID string) (*domain.ResultPreview, error) {
	var out domain.ResultPreview
	if err := c.do(ctx, http.MethodGet, batchPath(batchID, "result-preview"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the server-side batch status.
func (c *Client) Status(ctx context.Context, batchID string) (*domain.Status, error) {
	var out domain.Status
	if err := c.do(ctx, http.MethodGet, batchPath(batchID, "status"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmMapping submits the user-approved mapping and starts the import.
func (c *Client) ConfirmMapping(ctx context.Context, batchID string, req domain.ConfirmMappingRequest) error {
	return c.do(ctx, http.MethodPost, batchPath(batchID, "confirm-mapping"), req, nil)
}

// ProcessPipeline requests downstream semantic processing of an imported batch.
func (c *Client) ProcessPipeline(ctx context.Context, batchID string) (*domain.PipelineResult, error) {
	var out domain.PipelineResult
	if err := c.do(ctx, http.MethodPost, "/pipeline/process", domain.PipelineRequest{BatchID: batchID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	return c.decode(ctx, op, resp, out)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// decode unwraps the {data}/{error} envelope into out.
func (c *Client) decode(ctx context.Context, op string, resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(ctx, op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		slog.Warn("Batch service rejected session", "op", op)
		if c.onAuthExpired != nil {
			c.onAuthExpired()
		}
		return fmt.Errorf("%s: %w", op, ErrAuthExpired)
	}

	var env domain.Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 || (decodeErr == nil && env.Error != nil) {
		se := &ServiceError{HTTPStatus: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			se.Code = env.Error.Code
			se.Message = env.Error.Message
			se.Details = env.Error.Details
		} else {
			se.Message = fmt.Sprintf("%s: %s", statusText(resp.StatusCode), snippet(raw))
		}
		return se
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: decode envelope: %w", op, decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode payload: %w", op, err)
	}
	return nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
