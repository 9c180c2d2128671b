package ocrspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"finbuddy/pkg/config"

	"go.uber.org/zap"
)

// Filetype hints accepted by the OCR API. Unknown extensions fall back to PNG.
var allowedFiletypes = map[string]string{
	"jpg":  "JPG",
	"jpeg": "JPG",
	"png":  "PNG",
	"gif":  "GIF",
	"pdf":  "PDF",
}

const fallbackFiletype = "PNG"

// FiletypeHint maps a lowercased file extension (without dot) to the hint the
// OCR API expects.
func FiletypeHint(ext string) string {
	if hint, ok := allowedFiletypes[strings.ToLower(ext)]; ok {
		return hint
	}
	return fallbackFiletype
}

// Result is the outcome of one OCR call. Success means the service reported
// exit success and returned non-empty text; anything else is a soft failure
// from the pipeline's point of view.
type Result struct {
	Text    string
	Success bool
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	language   string
	engine     string
	logger     *zap.Logger
}

func NewClient(cfg *config.OCRConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		engine:     cfg.Engine,
		logger:     logger,
	}
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	OCRExitCode           int  `json:"OCRExitCode"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
}

// ParseImage submits a signed image URL to the OCR service and returns the
// best single-result text block.
func (c *Client) ParseImage(ctx context.Context, imageURL, filetype string) (*Result, error) {
	form := url.Values{}
	form.Set("url", imageURL)
	form.Set("apikey", c.apiKey)
	form.Set("language", c.language)
	form.Set("OCREngine", c.engine)
	form.Set("filetype", filetype)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	var text string
	if len(parsed.ParsedResults) > 0 {
		text = strings.TrimSpace(parsed.ParsedResults[0].ParsedText)
	}

	success := parsed.OCRExitCode == 1 && !parsed.IsErroredOnProcessing && text != ""

	c.logger.Info("OCR call completed",
		zap.Int("exit_code", parsed.OCRExitCode),
		zap.Bool("errored", parsed.IsErroredOnProcessing),
		zap.Int("text_length", len(text)),
	)

	return &Result{Text: text, Success: success}, nil
}
