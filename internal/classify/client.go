// Package classify talks to an OpenAI-compatible vision model to name
// photographed items and to rank stored items against a search query.
package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"packtrack/internal/model"
)

// maxResponseSize limits the response body read from the service.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Classification is what the service reports for a photo.
type Classification struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Classifier is the external classification and search contract.
type Classifier interface {
	// Classify names the item in image (JPEG bytes), using description as
	// a hint from the user.
	Classify(ctx context.Context, image []byte, description string) (Classification, error)

	// Search returns the IDs of items matching query, best match first.
	Search(ctx context.Context, query string, items []model.Item) ([]string, error)
}

// Client is a Classifier over the chat completions endpoint of an
// OpenAI-compatible server.
type Client struct {
	baseURL     string
	model       string
	apiKey      string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

var _ Classifier = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) ClientOption {
	return func(client *Client) {
		client.apiKey = key
	}
}

// NewClient creates a client for the server at baseURL (for example
// "http://localhost:11434/v1") using the named model.
func NewClient(baseURL, modelName string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       modelName,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

const classifyPrompt = `You are helping someone catalogue the items they are packing into boxes.
Identify the main item in the photo. The owner described it as: %q
Reply with only a JSON object of the form
{"name": "short item name", "description": "one or two sentences", "tags": ["lowercase", "keywords"]}`

const searchPrompt = `You are searching a packing inventory. Each item is listed as JSON.
Return only a JSON array of the ids of items that match the query, best match first.
Return [] when nothing matches.

Query: %q

Items:
%s`

// Classify sends image and description to the model and parses its answer.
func (c *Client) Classify(ctx context.Context, image []byte, description string) (Classification, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	msg := chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: fmt.Sprintf(classifyPrompt, description)},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		},
	}

	content, err := c.complete(ctx, msg)
	if err != nil {
		return Classification{}, err
	}

	raw := extractJSONObject(content)
	if raw == "" {
		return Classification{}, NewFatalError(fmt.Errorf("no JSON object in model output"))
	}
	var out Classification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Classification{}, NewFatalError(fmt.Errorf("parsing classification: %w", err))
	}
	if strings.TrimSpace(out.Name) == "" {
		return Classification{}, NewFatalError(fmt.Errorf("classification has no name"))
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out, nil
}

// searchEntry is the text-only view of an item sent to the model.
type searchEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Box         string   `json:"box"`
}

// Search asks the model which items match query. IDs not present in items
// are dropped, as are duplicates.
func (c *Client) Search(ctx context.Context, query string, items []model.Item) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}

	entries := make([]searchEntry, 0, len(items))
	known := make(map[string]bool, len(items))
	for _, it := range items {
		entries = append(entries, searchEntry{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Tags:        it.Tags,
			Box:         it.BoxName,
		})
		known[it.ID] = true
	}
	listing, err := json.Marshal(entries)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("encoding items: %w", err))
	}

	content, err := c.complete(ctx, chatMessage{
		Role:    "user",
		Content: fmt.Sprintf(searchPrompt, query, listing),
	})
	if err != nil {
		return nil, err
	}

	ids, err := parseIDs(content)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// parseIDs accepts either a bare array of IDs or an object with an "ids"
// array.
func parseIDs(content string) ([]string, error) {
	if raw := extractJSONArray(content); raw != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err == nil {
			return ids, nil
		}
	}
	if raw := extractJSONObject(content); raw != "" {
		var wrapped struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.IDs != nil {
			return wrapped.IDs, nil
		}
	}
	return nil, NewFatalError(fmt.Errorf("no id list in model output"))
}

// complete runs one chat completion with retries and returns the content of
// the first choice.
func (c *Client) complete(ctx context.Context, msg chatMessage) (string, error) {
	attempts := c.retryConfig.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.doRequest(ctx, msg)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if IsFatal(err) {
			return "", err
		}

		if attempt < attempts {
			backoff := c.retryConfig.backoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"attempt", attempt,
				"max_attempts", attempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return "", NewTransientError(ctx.Err())
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) doRequest(ctx context.Context, msg chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{msg},
	})
	if err != nil {
		return "", NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	url := c.baseURL + "/chat/completions"
	c.logger.Debug("Sending classification request", "model", c.model, "url", url, "bytes", len(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", NewFatalError(fmt.Errorf("parse response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", NewFatalError(fmt.Errorf("response has no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// classifyHTTPError maps a non-200 status to a transient or fatal error.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	err := fmt.Errorf("classification API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	default:
		// 400, 401, 403 and anything unexpected
		return NewFatalError(err)
	}
}
