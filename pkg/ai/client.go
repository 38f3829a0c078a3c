// Package ai wraps an OpenAI-compatible chat completions API for
// structured content generation.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Per-operation timeouts. Generation is the slow path; key validation
// should fail fast so the admin UI stays responsive.
const (
	generateTimeout   = 60 * time.Second
	embeddingsTimeout = 30 * time.Second
	validateTimeout   = 10 * time.Second
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest describes one chat completion call. Zero-valued fields
// fall back to the client defaults.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider to emit a valid JSON object.
	JSONMode bool
}

// ChatResponse is the assistant's reply plus accounting data.
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Client calls any OpenAI-compatible API. The key is swappable at
// runtime so an admin key rotation does not need a restart.
type Client struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client

	mu     sync.RWMutex
	apiKey string
}

// NewClient builds a client. baseURL should include the /v1 prefix,
// e.g. "https://api.openai.com/v1".
func NewClient(baseURL, apiKey, defaultModel string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		defaultModel: strings.TrimSpace(defaultModel),
		apiKey:       strings.TrimSpace(apiKey),
		httpClient:   &http.Client{},
	}
}

// SetAPIKey swaps the key used for subsequent calls.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(key)
	c.mu.Unlock()
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// ChatCompletion performs one chat completion call.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return ChatResponse{}, fmt.Errorf("chat completion model required")
	}
	if len(req.Messages) == 0 {
		return ChatResponse{}, fmt.Errorf("chat completion needs at least one message")
	}
	body := oaiChatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &oaiResponseFormat{Type: "json_object"}
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	var chatResp oaiChatResponse
	if err := c.post(ctx, "/chat/completions", body, &chatResp); err != nil {
		return ChatResponse{}, err
	}
	if len(chatResp.Choices) == 0 {
		return ChatResponse{}, ErrEmptyResponse
	}
	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return ChatResponse{}, ErrEmptyResponse
	}
	usage := chatResp.Usage
	if usage.TotalTokens == 0 {
		// Some compatible backends omit usage. Estimate from the output
		// length so accounting never records zero for a successful call.
		usage = SplitEstimate(EstimateTokens(content))
	}
	return ChatResponse{Content: content, Model: model, Usage: usage}, nil
}

// Embeddings returns one vector per input text.
func (c *Client) Embeddings(ctx context.Context, model string, input []string) ([][]float32, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "text-embedding-3-small"
	}
	if len(input) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, embeddingsTimeout)
	defer cancel()
	var resp oaiEmbeddingsResponse
	if err := c.post(ctx, "/embeddings", oaiEmbeddingsRequest{Model: model, Input: input}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(input))
	}
	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings: index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Models lists the model IDs the provider offers.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	if key := c.key(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, apiError(resp)
	}
	var listing oaiModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	models := make([]string, 0, len(listing.Data))
	for _, m := range listing.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

// ValidateKey checks a candidate key's format and verifies it against
// the provider's model listing.
func (c *Client) ValidateKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "sk-") {
		return fmt.Errorf("%w: key must start with sk-", ErrInvalidAPIKey)
	}
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.key(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// OpenAI-compatible request/response types.

type oaiResponseFormat struct {
	Type string `json:"type"`
}

type oaiChatRequest struct {
	Model          string             `json:"model"`
	Messages       []Message          `json:"messages"`
	Temperature    float64            `json:"temperature,omitempty"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type oaiModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type oaiEmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type oaiEmbeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}
