package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	GeminiOCRName      = "gemini"
	GeminiDefaultModel = "gemini-2.5-flash"
)

// GeminiDefaultPrompts are the instructions sent with each page image.
var GeminiDefaultPrompts = map[Mode]string{
	ModeFreeOCR:    "Transcribe all text on this page exactly as written. Output plain text only.",
	ModeGrounding:  "Convert this document page to markdown. Preserve headings, lists and tables. Output only the markdown.",
	ModeMultimodal: "Describe this page in detail, including any figures, charts and tables, then transcribe its text.",
}

// GeminiOCRConfig holds configuration for the Gemini client.
type GeminiOCRConfig struct {
	APIKey    string
	BaseURL   string // Optional override of the Gemini API endpoint
	Model     string
	Prompts   map[Mode]string
	MaxTokens int
	Timeout   time.Duration
	RateLimit float64
	Retry     RetryPolicy
	Logger    *slog.Logger
}

// GeminiOCRClient implements OCRProvider using the Gemini generateContent API.
type GeminiOCRClient struct {
	model     string
	prompts   map[Mode]string
	maxTokens int
	rateLimit float64
	retry     RetryPolicy
	logger    *slog.Logger
	client    *genai.Client
}

// NewGeminiOCRClient creates a new Gemini client. Unlike the other providers the
// SDK client is constructed eagerly and may fail (e.g. missing API key).
func NewGeminiOCRClient(ctx context.Context, cfg GeminiOCRConfig) (*GeminiOCRClient, error) {
	if cfg.Model == "" {
		cfg.Model = GeminiDefaultModel
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

	prompts := make(map[Mode]string, len(GeminiDefaultPrompts))
	for mode, prompt := range GeminiDefaultPrompts {
		prompts[mode] = prompt
	}
	for mode, prompt := range cfg.Prompts {
		if strings.TrimSpace(prompt) != "" {
			prompts[mode] = prompt
		}
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiOCRClient{
		model:     cfg.Model,
		prompts:   prompts,
		maxTokens: cfg.MaxTokens,
		rateLimit: cfg.RateLimit,
		retry:     cfg.Retry,
		logger:    cfg.Logger,
		client:    client,
	}, nil
}

// Name returns the provider identifier.
func (c *GeminiOCRClient) Name() string {
	return GeminiOCRName
}

// RequestsPerSecond returns the rate limit.
func (c *GeminiOCRClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *GeminiOCRClient) MaxRetries() int {
	return c.retry.MaxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *GeminiOCRClient) RetryDelayBase() time.Duration {
	return c.retry.Delay
}

// ProcessImage extracts text from a page image.
func (c *GeminiOCRClient) ProcessImage(ctx context.Context, image []byte, pageNum int, mode Mode) (*OCRResult, error) {
	start := time.Now()

	prompt, ok := c.prompts[mode]
	if !ok {
		err := fmt.Errorf("gemini: unsupported mode %q", mode)
		return failedResult(mode, start, err), err
	}
	if len(image) == 0 {
		err := fmt.Errorf("gemini: empty image for page %d", pageNum)
		return failedResult(mode, start, err), err
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: http.DetectContentType(image), Data: image}},
		},
	}}
	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(c.maxTokens),
		Temperature:     genai.Ptr[float32](0),
	}

	var resp *genai.GenerateContentResponse
	retries, err := c.retry.do(ctx, c.logger, GeminiOCRName, func() error {
		r, callErr := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
		if callErr != nil {
			return mapGeminiError(callErr)
		}
		resp = r
		return nil
	})
	if err != nil {
		res := failedResult(mode, start, err)
		res.RetryCount = retries
		return res, err
	}

	metadata := map[string]any{"model_used": c.model}
	if resp.UsageMetadata != nil {
		metadata["prompt_tokens"] = resp.UsageMetadata.PromptTokenCount
		metadata["completion_tokens"] = resp.UsageMetadata.CandidatesTokenCount
		metadata["total_tokens"] = resp.UsageMetadata.TotalTokenCount
	}
	if len(resp.Candidates) > 0 {
		metadata["finish_reason"] = string(resp.Candidates[0].FinishReason)
	}

	return &OCRResult{
		Success:       true,
		Text:          strings.TrimSpace(resp.Text()),
		Mode:          mode,
		Metadata:      metadata,
		ExecutionTime: time.Since(start),
		RetryCount:    retries,
	}, nil
}

// HealthCheck fetches the configured model's metadata.
func (c *GeminiOCRClient) HealthCheck(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return fmt.Errorf("gemini model lookup failed: %w", mapGeminiError(err))
	}
	return nil
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var p *genai.APIError
		if !errors.As(err, &p) || p == nil {
			return err
		}
		apiErr = *p
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    fmt.Sprintf("%s rate limited: %s", GeminiOCRName, apiErr.Message),
			StatusCode: apiErr.Code,
		}
	}
	return &APIError{Provider: GeminiOCRName, StatusCode: apiErr.Code, Body: apiErr.Message}
}

// Verify interface
var _ OCRProvider = (*GeminiOCRClient)(nil)
