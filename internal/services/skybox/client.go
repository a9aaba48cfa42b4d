package skybox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"foundry/internal/catalog"
	"foundry/internal/provider"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultExtension = "png"
)

// Config captures the runtime settings required to talk to the skybox API.
type Config struct {
	APIKey         string
	BaseURL        string
	StyleID        int
	EnhancePrompt  bool
	TimeoutSeconds int
}

// Client drives an asynchronous panorama-generation REST API: a create call
// returns a generation id, a status endpoint reports progress, and the
// completed generation exposes a file URL.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// New constructs a skybox client. The API key is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("skybox api key is required (set SKYBOX_API_KEY or skybox.api_key)")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("skybox base url is required")
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the backend in logs and history records.
func (c *Client) Name() string {
	return "skybox"
}

type createRequest struct {
	Prompt        string `json:"prompt"`
	StyleID       int    `json:"skybox_style_id"`
	EnhancePrompt bool   `json:"enhance_prompt"`
}

// statusPayload is the generation record; some API revisions nest it under a
// "request" key, so responses are decoded through statusEnvelope.
type statusPayload struct {
	ID            json.Number `json:"id"`
	Status        string      `json:"status"`
	Progress      int         `json:"progress"`
	QueuePosition int         `json:"queue_position"`
	ErrorMessage  string      `json:"error_message"`
	FileURL       string      `json:"file_url"`
}

type statusEnvelope struct {
	Request *statusPayload `json:"request"`
	statusPayload
}

func (e statusEnvelope) payload() statusPayload {
	if e.Request != nil {
		return *e.Request
	}
	return e.statusPayload
}

// Submit starts one generation and returns its id as the job handle.
func (c *Client) Submit(ctx context.Context, item catalog.Item) (provider.JobHandle, error) {
	body, err := json.Marshal(createRequest{
		Prompt:        item.Prompt,
		StyleID:       c.cfg.StyleID,
		EnhancePrompt: c.cfg.EnhancePrompt,
	})
	if err != nil {
		return provider.JobHandle{}, fmt.Errorf("encode create request: %w", err)
	}

	var envelope statusEnvelope
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/skybox", bytes.NewReader(body), &envelope); err != nil {
		return provider.JobHandle{}, err
	}
	payload := envelope.payload()
	if payload.ID.String() == "" {
		return provider.JobHandle{}, fmt.Errorf("create response carried no generation id")
	}
	return provider.JobHandle{ID: payload.ID.String()}, nil
}

// Poll reports the generation's current status.
func (c *Client) Poll(ctx context.Context, handle provider.JobHandle) (provider.JobStatus, error) {
	payload, err := c.status(ctx, handle)
	if err != nil {
		return provider.JobStatus{}, err
	}

	switch strings.ToLower(payload.Status) {
	case "complete":
		return provider.JobStatus{State: provider.StateSucceeded, Progress: 100}, nil
	case "error":
		reason := payload.ErrorMessage
		if reason == "" {
			reason = "generation failed"
		}
		return provider.JobStatus{State: provider.StateFailed, Reason: reason}, nil
	case "abort":
		return provider.JobStatus{State: provider.StateFailed, Reason: "generation aborted"}, nil
	case "pending", "queued":
		return provider.JobStatus{State: provider.StatePending, QueuePosition: payload.QueuePosition}, nil
	default:
		return provider.JobStatus{State: provider.StateInProgress, Progress: payload.Progress}, nil
	}
}

// Fetch downloads the completed generation's file.
func (c *Client) Fetch(ctx context.Context, handle provider.JobHandle) (provider.Artifact, error) {
	payload, err := c.status(ctx, handle)
	if err != nil {
		return provider.Artifact{}, err
	}
	if payload.FileURL == "" {
		return provider.Artifact{}, fmt.Errorf("generation %s carries no file url", handle.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.FileURL, nil)
	if err != nil {
		return provider.Artifact{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Artifact{}, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return provider.Artifact{}, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.Artifact{}, fmt.Errorf("read file body: %w", err)
	}
	return provider.Artifact{Data: data, Extension: extensionFromURL(payload.FileURL)}, nil
}

func (c *Client) status(ctx context.Context, handle provider.JobHandle) (statusPayload, error) {
	if _, err := strconv.ParseInt(handle.ID, 10, 64); err != nil {
		return statusPayload{}, fmt.Errorf("invalid generation id %q", handle.ID)
	}
	var envelope statusEnvelope
	if err := c.doJSON(ctx, http.MethodGet, c.cfg.BaseURL+"/imagine/requests/"+handle.ID, nil, &envelope); err != nil {
		return statusPayload{}, err
	}
	return envelope.payload(), nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("call %s: status %s: %s", endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}

func extensionFromURL(fileURL string) string {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return defaultExtension
	}
	ext := strings.TrimPrefix(path.Ext(parsed.Path), ".")
	if ext == "" {
		return defaultExtension
	}
	return strings.ToLower(ext)
}
