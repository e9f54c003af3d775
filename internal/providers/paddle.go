package providers

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
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	PaddleOCRVLName = "paddle"

	// fileType values for /layout-parsing: 0 = PDF, 1 = image.
	paddleFileTypeImage = 1
)

// paddleLayoutSchema describes the subset of the /layout-parsing response we rely on.
const paddleLayoutSchema = `{
  "type": "object",
  "required": ["result"],
  "properties": {
    "errorCode": {"type": "integer"},
    "errorMsg": {"type": "string"},
    "result": {
      "type": "object",
      "required": ["layoutParsingResults"],
      "properties": {
        "layoutParsingResults": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "prunedResult": {"type": "object"},
              "markdown": {
                "type": "object",
                "properties": {
                  "text": {"type": "string"}
                }
              }
            }
          }
        }
      }
    }
  }
}`

var (
	paddleSchemaOnce sync.Once
	paddleSchema     *jsonschema.Schema
	paddleSchemaErr  error
)

func compiledPaddleSchema() (*jsonschema.Schema, error) {
	paddleSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("paddle_layout.json", strings.NewReader(paddleLayoutSchema)); err != nil {
			paddleSchemaErr = fmt.Errorf("failed to load paddle schema: %w", err)
			return
		}
		paddleSchema, paddleSchemaErr = compiler.Compile("paddle_layout.json")
	})
	return paddleSchema, paddleSchemaErr
}

// PaddleOCRVLConfig holds configuration for a PaddleOCR-VL serving deployment.
type PaddleOCRVLConfig struct {
	APIKey    string // Optional for local deployments
	BaseURL   string // e.g. http://localhost:8080
	Visualize *bool  // Passed through only when set
	// ReturnLayoutInfo keeps each page's prunedResult (detected blocks and
	// their boxes) on OCRResult.Layout.
	ReturnLayoutInfo bool
	Timeout          time.Duration
	RateLimit float64
	Retry     RetryPolicy
	Logger    *slog.Logger
}

// PaddleOCRVLClient implements OCRProvider using the /layout-parsing endpoint.
// PaddleOCR-VL has a single parsing pipeline, so every mode issues the same request.
type PaddleOCRVLClient struct {
	apiKey    string
	baseURL   string
	visualize *bool
	layout    bool
	rateLimit float64
	retry     RetryPolicy
	logger    *slog.Logger
	client    *http.Client
}

// NewPaddleOCRVLClient creates a new PaddleOCR-VL client.
func NewPaddleOCRVLClient(cfg PaddleOCRVLConfig) *PaddleOCRVLClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PaddleOCRVLClient{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		visualize: cfg.Visualize,
		layout:    cfg.ReturnLayoutInfo,
		rateLimit: cfg.RateLimit,
		retry:     cfg.Retry,
		logger:    cfg.Logger,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *PaddleOCRVLClient) Name() string {
	return PaddleOCRVLName
}

// RequestsPerSecond returns the rate limit.
func (c *PaddleOCRVLClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *PaddleOCRVLClient) MaxRetries() int {
	return c.retry.MaxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *PaddleOCRVLClient) RetryDelayBase() time.Duration {
	return c.retry.Delay
}

// IgnoresMode reports true: every mode issues the same /layout-parsing request.
func (c *PaddleOCRVLClient) IgnoresMode() bool {
	return true
}

// ProcessImage runs layout parsing on a single page image and returns its markdown.
func (c *PaddleOCRVLClient) ProcessImage(ctx context.Context, image []byte, pageNum int, mode Mode) (*OCRResult, error) {
	start := time.Now()

	if c.baseURL == "" {
		err := fmt.Errorf("paddle: base URL is required")
		return failedResult(mode, start, err), err
	}
	if len(image) == 0 {
		err := fmt.Errorf("paddle: empty image for page %d", pageNum)
		return failedResult(mode, start, err), err
	}

	payload := paddleLayoutRequest{
		File:      base64.StdEncoding.EncodeToString(image),
		FileType:  paddleFileTypeImage,
		Visualize: c.visualize,
	}

	var parsed paddleLayoutResponse
	retries, err := c.retry.do(ctx, c.logger, PaddleOCRVLName, func() error {
		var callErr error
		parsed, callErr = c.layoutParsing(ctx, payload)
		return callErr
	})
	if err != nil {
		res := failedResult(mode, start, err)
		res.RetryCount = retries
		return res, err
	}

	var parts []string
	var layout []map[string]any
	for _, r := range parsed.Result.LayoutParsingResults {
		if t := strings.TrimSpace(r.Markdown.Text); t != "" {
			parts = append(parts, t)
		}
		if c.layout && r.PrunedResult != nil {
			layout = append(layout, r.PrunedResult)
		}
	}
	if len(parts) == 0 {
		c.logger.Warn("layout-parsing returned no markdown", "page", pageNum)
	}

	return &OCRResult{
		Success: true,
		Text:    StripDataURIImages(strings.Join(parts, "\n\n")),
		Mode:    mode,
		Metadata: map[string]any{
			"layout_results": len(parsed.Result.LayoutParsingResults),
		},
		Layout:        layout,
		ExecutionTime: time.Since(start),
		RetryCount:    retries,
	}, nil
}

// layoutParsing performs one POST /layout-parsing round trip.
func (c *PaddleOCRVLClient) layoutParsing(ctx context.Context, payload paddleLayoutRequest) (paddleLayoutResponse, error) {
	var out paddleLayoutResponse

	body, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/layout-parsing", bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, newStatusError(PaddleOCRVLName, resp, respBody)
	}

	if err := validatePaddleResponse(respBody); err != nil {
		return out, err
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.ErrorCode != 0 {
		return out, &APIError{Provider: PaddleOCRVLName, StatusCode: resp.StatusCode, Body: out.ErrorMsg}
	}
	return out, nil
}

func validatePaddleResponse(body []byte) error {
	schema, err := compiledPaddleSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to decode response for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("unexpected layout-parsing response: %w", err)
	}
	return nil
}

// HealthCheck verifies the service answers at all; PaddleOCR serving has no
// cheap probe endpoint, so any HTTP response counts as reachable.
func (c *PaddleOCRVLClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	return nil
}

type paddleLayoutRequest struct {
	File      string `json:"file"`
	FileType  int    `json:"fileType"`
	Visualize *bool  `json:"visualize,omitempty"`
}

type paddleLayoutResponse struct {
	ErrorCode int    `json:"errorCode"`
	ErrorMsg  string `json:"errorMsg"`
	Result    struct {
		LayoutParsingResults []struct {
			PrunedResult map[string]any `json:"prunedResult"`
			Markdown     struct {
				Text string `json:"text"`
			} `json:"markdown"`
		} `json:"layoutParsingResults"`
	} `json:"result"`
}

// Verify interface
var (
	_ OCRProvider  = (*PaddleOCRVLClient)(nil)
	_ ModeAgnostic = (*PaddleOCRVLClient)(nil)
)
