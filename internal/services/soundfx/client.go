package soundfx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"foundry/internal/catalog"
	"foundry/internal/provider"
)

const (
	defaultTimeout = 60 * time.Second

	// The generation endpoint accepts duration hints inside this window.
	minDurationSeconds = 0.5
	maxDurationSeconds = 22.0

	promptInfluence = 0.3
)

// Config captures the runtime settings required to talk to the sound API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client drives a synchronous sound-effect REST API: the generation call
// returns the audio bytes directly. To present the same submit/poll/fetch
// shape as asynchronous backends, Submit performs the generation and parks
// the result under a run-local handle; Poll reports it terminal immediately
// and Fetch hands the bytes over.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu      sync.Mutex
	results map[string][]byte
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

// New constructs a soundfx client. The API key is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("soundfx api key is required (set SOUNDFX_API_KEY or soundfx.api_key)")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("soundfx base url is required")
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		results:    make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the backend in logs and history records.
func (c *Client) Name() string {
	return "soundfx"
}

type generateRequest struct {
	Text            string   `json:"text"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	PromptInfluence float64  `json:"prompt_influence"`
}

// Submit generates the sound synchronously and parks the audio under a fresh
// handle for the later Fetch.
func (c *Client) Submit(ctx context.Context, item catalog.Item) (provider.JobHandle, error) {
	request := generateRequest{Text: item.Prompt, PromptInfluence: promptInfluence}
	if seconds, ok := parseDuration(item.MetaValue("Duration")); ok {
		clamped := clampDuration(seconds)
		request.DurationSeconds = &clamped
	}

	body, err := json.Marshal(request)
	if err != nil {
		return provider.JobHandle{}, fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/sound-generation", bytes.NewReader(body))
	if err != nil {
		return provider.JobHandle{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.JobHandle{}, fmt.Errorf("call sound-generation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return provider.JobHandle{}, fmt.Errorf("call sound-generation: status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.JobHandle{}, fmt.Errorf("read audio body: %w", err)
	}

	handle := provider.JobHandle{ID: uuid.NewString()}
	c.mu.Lock()
	c.results[handle.ID] = audio
	c.mu.Unlock()
	return handle, nil
}

// Poll is immediately terminal for this synchronous backend.
func (c *Client) Poll(ctx context.Context, handle provider.JobHandle) (provider.JobStatus, error) {
	c.mu.Lock()
	_, ok := c.results[handle.ID]
	c.mu.Unlock()
	if !ok {
		return provider.JobStatus{}, fmt.Errorf("unknown job handle %q", handle.ID)
	}
	return provider.JobStatus{State: provider.StateSucceeded, Progress: 100}, nil
}

// Fetch hands over the audio generated at submit time and releases it.
func (c *Client) Fetch(ctx context.Context, handle provider.JobHandle) (provider.Artifact, error) {
	c.mu.Lock()
	audio, ok := c.results[handle.ID]
	if ok {
		delete(c.results, handle.ID)
	}
	c.mu.Unlock()
	if !ok {
		return provider.Artifact{}, fmt.Errorf("unknown job handle %q", handle.ID)
	}
	return provider.Artifact{Data: audio, Extension: "mp3"}, nil
}

// parseDuration reads catalog duration metadata like "1.5s" or "3".
func parseDuration(value string) (float64, bool) {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "s"))
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return seconds, true
}

func clampDuration(seconds float64) float64 {
	if seconds < minDurationSeconds {
		return minDurationSeconds
	}
	if seconds > maxDurationSeconds {
		return maxDurationSeconds
	}
	return seconds
}
