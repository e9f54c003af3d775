package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DeepSeekOCRName      = "deepseek"
	DeepSeekDefaultModel = "deepseek-ocr"
)

// DeepSeekDefaultPrompts are the DeepSeek-OCR prompts for each mode.
var DeepSeekDefaultPrompts = map[Mode]string{
	ModeFreeOCR:    "<image>\nFree OCR.",
	ModeGrounding:  "<image>\n<|grounding|>Convert the document to markdown.",
	ModeMultimodal: "<image>\nDescribe this image in detail.",
}

// DeepSeekOCRConfig holds configuration for the DeepSeek-OCR client.
type DeepSeekOCRConfig struct {
	APIKey      string
	BaseURL     string          // OpenAI-compatible root, e.g. http://host:8000/v1
	Model       string          // Served model name, "deepseek-ocr" by default
	Prompts     map[Mode]string // Per-mode prompt overrides
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   float64 // Requests per second, 0 = unlimited
	Retry       RetryPolicy
	HTTPClient  *http.Client // Optional (tests)
	Logger      *slog.Logger
}

// DeepSeekOCRClient implements OCRProvider against a vLLM/OpenAI-compatible
// chat completions endpoint serving DeepSeek-OCR.
type DeepSeekOCRClient struct {
	model       string
	prompts     map[Mode]string
	temperature float64
	maxTokens   int
	rateLimit   float64
	retry       RetryPolicy
	logger      *slog.Logger
	client      openai.Client
}

// NewDeepSeekOCRClient creates a new DeepSeek-OCR client.
func NewDeepSeekOCRClient(cfg DeepSeekOCRConfig) *DeepSeekOCRClient {
	if cfg.Model == "" {
		cfg.Model = DeepSeekDefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	prompts := make(map[Mode]string, len(DeepSeekDefaultPrompts))
	for mode, prompt := range DeepSeekDefaultPrompts {
		prompts[mode] = prompt
	}
	for mode, prompt := range cfg.Prompts {
		if strings.TrimSpace(prompt) != "" {
			prompts[mode] = prompt
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// Retries are driven by RetryPolicy so 429 handling matches the other providers.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(normalizeOpenAIBaseURL(cfg.BaseURL)))
	}

	return &DeepSeekOCRClient{
		model:       cfg.Model,
		prompts:     prompts,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		rateLimit:   cfg.RateLimit,
		retry:       cfg.Retry,
		logger:      cfg.Logger,
		client:      openai.NewClient(opts...),
	}
}

// normalizeOpenAIBaseURL accepts either the API root or the full
// /chat/completions URL and returns the root with a trailing slash.
func normalizeOpenAIBaseURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	u = strings.TrimSuffix(u, "/completions")
	return u + "/"
}

// Name returns the provider identifier.
func (c *DeepSeekOCRClient) Name() string {
	return DeepSeekOCRName
}

// RequestsPerSecond returns the rate limit.
func (c *DeepSeekOCRClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *DeepSeekOCRClient) MaxRetries() int {
	return c.retry.MaxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *DeepSeekOCRClient) RetryDelayBase() time.Duration {
	return c.retry.Delay
}

// Prompt returns the prompt used for mode.
func (c *DeepSeekOCRClient) Prompt(mode Mode) string {
	return c.prompts[mode]
}

// HealthCheck verifies the endpoint is reachable via the /models listing.
func (c *DeepSeekOCRClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("deepseek models list failed: %w", mapOpenAIError(DeepSeekOCRName, err))
	}
	if page == nil {
		return fmt.Errorf("deepseek models list returned nil response")
	}
	return nil
}

// ProcessImage extracts text from a page image.
func (c *DeepSeekOCRClient) ProcessImage(ctx context.Context, image []byte, pageNum int, mode Mode) (*OCRResult, error) {
	start := time.Now()

	prompt, ok := c.prompts[mode]
	if !ok {
		err := fmt.Errorf("deepseek: unsupported mode %q", mode)
		return failedResult(mode, start, err), err
	}
	if len(image) == 0 {
		err := fmt.Errorf("deepseek: empty image for page %d", pageNum)
		return failedResult(mode, start, err), err
	}

	dataURL := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
				openai.TextContentPart(prompt),
			}),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	}

	var resp *openai.ChatCompletion
	retries, err := c.retry.do(ctx, c.logger, DeepSeekOCRName, func() error {
		r, callErr := c.client.Chat.Completions.New(ctx, params)
		if callErr != nil {
			return mapOpenAIError(DeepSeekOCRName, callErr)
		}
		resp = r
		return nil
	})
	if err != nil {
		res := failedResult(mode, start, err)
		res.RetryCount = retries
		return res, err
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("deepseek: no response choices from model")
		res := failedResult(mode, start, err)
		res.RetryCount = retries
		return res, err
	}

	text := resp.Choices[0].Message.Content
	if mode == ModeGrounding {
		text = CleanGroundingText(text)
	}

	return &OCRResult{
		Success: true,
		Text:    text,
		Mode:    mode,
		Metadata: map[string]any{
			"model_used":        resp.Model,
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
			"finish_reason":     resp.Choices[0].FinishReason,
		},
		ExecutionTime: time.Since(start),
		RetryCount:    retries,
	}, nil
}

// mapOpenAIError converts SDK errors into APIError / RateLimitError.
func mapOpenAIError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("%s rate limited: %s", provider, apiErr.Message),
				StatusCode: apiErr.StatusCode,
				RetryAfter: retryAfter,
			}
		}
		return &APIError{Provider: provider, StatusCode: apiErr.StatusCode, Body: apiErr.Message}
	}
	return err
}

// Verify interface
var _ OCRProvider = (*DeepSeekOCRClient)(nil)
