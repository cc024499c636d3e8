package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrGenerationFailed wraps any transport or model error from the runtime.
// Callers see one opaque failure kind; retry decisions happen above.
var ErrGenerationFailed = errors.New("generation failed")

// ErrInvalidResponse indicates a structured response could not be parsed
// even after best-effort JSON extraction.
var ErrInvalidResponse = errors.New("invalid structured response")

// GenerateRequest is one free-text generation call.
type GenerateRequest struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// Generator is the capability boundary to the text generator.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	GenerateJSON(ctx context.Context, prompt, system, schema string) (string, error)
}

// Client talks to a local Ollama runtime over its chat API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		transport := c.httpClient.Transport
		c.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
}

func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

func WithRateLimit(requestsPerMinute, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		baseURL: "http://localhost:11434",
		model:   "llama3.1:8b",
		httpClient: &http.Client{
			Timeout:   15 * time.Minute,
			Transport: transport,
		},
		maxRetries: 2,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     slog.Default().With("component", "llm_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("LLM client initialized",
		"base_url", c.baseURL,
		"model", c.model,
		"max_retries", c.maxRetries,
		"rate_limit", fmt.Sprintf("%v req/s", c.limiter.Limit()))

	return c
}

// Model returns the model identifier this client sends requests with.
func (c *Client) Model() string {
	return c.model
}

// Generate performs one blocking chat completion against the runtime.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	requestID := fmt.Sprintf("gen_%d", time.Now().UnixNano())
	startTime := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	c.logger.Debug("attempting generation request",
		"request_id", requestID,
		"prompt_length", len(req.Prompt),
		"system_length", len(req.System),
		"temperature", req.Temperature,
		"max_tokens", req.MaxTokens,
		"model", c.model)

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			c.logger.Debug("retry backoff",
				"request_id", requestID,
				"attempt", attempt,
				"backoff_seconds", backoff.Seconds())

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptStart := time.Now()
		response, err := c.doChatRequest(ctx, req)
		if err == nil {
			c.logger.Info("generation request successful",
				"request_id", requestID,
				"attempt", attempt,
				"duration_ms", time.Since(attemptStart).Milliseconds(),
				"response_length", len(response),
				"total_duration_ms", time.Since(startTime).Milliseconds())
			return response, nil
		}

		lastErr = err
		c.logger.Warn("generation request failed, will retry",
			"request_id", requestID,
			"attempt", attempt,
			"duration_ms", time.Since(attemptStart).Milliseconds(),
			"error", err)
	}

	c.logger.Error("generation request failed after max retries",
		"request_id", requestID,
		"max_retries", c.maxRetries,
		"total_duration_ms", time.Since(startTime).Milliseconds(),
		"last_error", lastErr)

	return "", fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
}

// GenerateJSON appends a schema description and a JSON-only instruction, then
// performs a low-temperature completion. The raw response text is returned;
// parsing belongs to Structured.
func (c *Client) GenerateJSON(ctx context.Context, prompt, system, schema string) (string, error) {
	jsonPrompt := fmt.Sprintf("%s\n\nRespond with valid JSON matching this schema:\n%s", prompt, schema)

	const jsonOnly = "IMPORTANT: Your response must be valid JSON only, no additional text."
	fullSystem := jsonOnly
	if system != "" {
		fullSystem = system + "\n\n" + jsonOnly
	}

	return c.Generate(ctx, GenerateRequest{
		Prompt:      jsonPrompt,
		System:      fullSystem,
		Temperature: 0.3,
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (c *Client) doChatRequest(ctx context.Context, req GenerateRequest) (string, error) {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	numPredict := req.MaxTokens
	if numPredict == 0 {
		numPredict = -1
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: chatOptions{
			Temperature: req.Temperature,
			NumPredict:  numPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("runtime error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var response chatResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if response.Message.Content == "" {
		return "", fmt.Errorf("empty completion in response")
	}

	return response.Message.Content, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ResolveModel returns the served model name matching the configured one,
// exact first, then prefix. The result is returned to the caller rather than
// written back into shared state; apply it with WithModel on a new client.
func (c *Client) ResolveModel(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: runtime returned status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return "", fmt.Errorf("parsing model list: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == c.model {
			return m.Name, nil
		}
	}
	for _, m := range tags.Models {
		if strings.HasPrefix(m.Name, c.model) {
			c.logger.Debug("resolved model by prefix",
				"configured", c.model,
				"served", m.Name)
			return m.Name, nil
		}
	}

	return "", fmt.Errorf("model %q not served by runtime", c.model)
}

// IsAvailable reports whether the runtime is reachable and serves the
// configured model. Read-only; no state is adjusted on a match.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.ResolveModel(ctx)
	if err != nil {
		c.logger.Debug("runtime availability check failed", "error", err)
		return false
	}
	return true
}
