// Package executor runs generateContent calls against the Gemini API with a
// bounded retry on transient failures and returns sanitized text.
package executor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini/helpers"
	log "github.com/sirupsen/logrus"
)

// GenerationRequest is one user-initiated generation.
type GenerationRequest struct {
	// APIKey overrides the configured keys when set.
	APIKey string
	// Prompt is the decorated prompt sent verbatim.
	Prompt string
	// Model overrides the configured model when set.
	Model string
	// MaxRetries is the maximum number of attempts; zero uses the configured value.
	MaxRetries int
	// Generation overrides the configured sampling parameters when non-nil.
	Generation *gemini.GenerationConfig
}

// GenerationResult is the outcome of a successful Generate call.
type GenerationResult struct {
	RawText          string
	Text             string
	Model            string
	FinishReason     string
	PromptTokens     int64
	CompletionTokens int64
	Attempts         int
	Duration         time.Duration
}

// Option customizes a GeminiExecutor.
type Option func(*GeminiExecutor)

// WithHTTPClient replaces the timeout-bounded default client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *GeminiExecutor) {
		if client != nil {
			e.client.httpClient = client
		}
	}
}

// WithBaseURL points the executor at another endpoint root.
func WithBaseURL(baseURL string) Option {
	return func(e *GeminiExecutor) {
		if strings.TrimSpace(baseURL) != "" {
			e.client.baseURL = strings.TrimSpace(baseURL)
		}
	}
}

// GeminiExecutor is a stateless executor for the Gemini generateContent API.
type GeminiExecutor struct {
	cfg    *config.Config
	client *geminiClient
	keys   *keyRotator
}

// NewGeminiExecutor creates an executor for cfg. A nil cfg uses the defaults.
func NewGeminiExecutor(cfg *config.Config, opts ...Option) *GeminiExecutor {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &GeminiExecutor{
		cfg:    cfg,
		client: newGeminiClient(cfg),
		keys:   newKeyRotator(cfg.APIKeyList()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Identifier returns the executor identifier.
func (e *GeminiExecutor) Identifier() string { return "gemini" }

// HasAPIKey reports whether a request without an explicit key can be served.
func (e *GeminiExecutor) HasAPIKey() bool { return e.keys.count() > 0 }

// Generate sends req and retries transient failures with a fixed backoff until
// the attempt budget is spent. Permanent failures return after one attempt.
// On failure the returned result still carries the attempt count.
func (e *GeminiExecutor) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	start := time.Now()
	result := GenerationResult{Model: e.model(req)}

	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = e.keys.next()
	}
	if apiKey == "" {
		return result, &APIError{Kind: ErrPermanent, Message: "API key is not configured"}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return result, &APIError{Kind: ErrPermanent, Message: "prompt is empty"}
	}

	genCfg := e.generationConfig(req)
	body, err := gemini.BuildRequest(req.Prompt, genCfg)
	if err != nil {
		return result, &APIError{Kind: ErrPermanent, Message: err.Error(), Err: err}
	}

	maxAttempts := req.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = e.cfg.Gemini.MaxRetries
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr *APIError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt
		resp, errAttempt := e.performAttempt(ctx, apiKey, result.Model, body)
		if errAttempt == nil {
			result.RawText = resp.Text
			result.Text = helpers.CleanMarkdown(resp.Text)
			result.FinishReason = resp.FinishReason
			if resp.HasUsage {
				result.PromptTokens = resp.Usage.PromptTokens
				result.CompletionTokens = resp.Usage.CandidateTokens
			} else {
				result.PromptTokens = estimateTokens(req.Prompt)
				result.CompletionTokens = estimateTokens(resp.Text)
			}
			result.Duration = time.Since(start)
			log.WithFields(log.Fields{
				"model":    result.Model,
				"attempts": attempt,
				"elapsed":  result.Duration.Round(time.Millisecond),
				"chars":    len(result.Text),
			}).Debug("gemini executor: generation completed")
			return result, nil
		}

		lastErr = classifyError(errAttempt)
		if !lastErr.Transient() || attempt == maxAttempts {
			break
		}
		log.WithFields(log.Fields{
			"model":   result.Model,
			"attempt": attempt,
			"max":     maxAttempts,
		}).Warnf("gemini executor: transient failure, retrying: %v", lastErr)
		if errWait := e.wait(ctx); errWait != nil {
			lastErr = classifyError(errWait)
			break
		}
	}

	result.Duration = time.Since(start)
	log.WithFields(log.Fields{
		"model":    result.Model,
		"attempts": result.Attempts,
	}).Errorf("gemini executor: generation failed: %v", lastErr)
	return result, lastErr
}

func (e *GeminiExecutor) performAttempt(ctx context.Context, apiKey, model string, body []byte) (gemini.Response, error) {
	data, _, err := e.client.doRequest(ctx, apiKey, model, body)
	if err != nil {
		return gemini.Response{}, err
	}
	resp, err := gemini.ParseResponse(data)
	if err != nil {
		return gemini.Response{}, &APIError{Kind: ErrPermanent, Message: err.Error(), Err: err}
	}
	if strings.TrimSpace(resp.Text) == "" {
		msg := "no candidate text"
		switch {
		case resp.BlockReason != "":
			msg = "prompt blocked: " + resp.BlockReason
		case resp.FinishReason != "":
			msg = "no candidate text, finish reason " + resp.FinishReason
		}
		return gemini.Response{}, &APIError{Kind: ErrEmptyResponse, Message: msg}
	}
	return resp, nil
}

func (e *GeminiExecutor) wait(ctx context.Context) error {
	backoff := e.cfg.Gemini.RetryBackoff
	if backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *GeminiExecutor) model(req GenerationRequest) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	if m := strings.TrimSpace(e.cfg.Gemini.Model); m != "" {
		return m
	}
	return config.DefaultModel
}

func (e *GeminiExecutor) generationConfig(req GenerationRequest) gemini.GenerationConfig {
	if req.Generation != nil {
		return *req.Generation
	}
	g := e.cfg.Gemini
	return gemini.GenerationConfig{
		Temperature:     g.Temperature,
		MaxOutputTokens: g.MaxOutputTokens,
		TopK:            g.TopK,
		TopP:            g.TopP,
	}
}

// IsTransient reports whether err is a retryable API failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
