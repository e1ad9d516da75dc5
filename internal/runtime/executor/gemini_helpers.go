package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini"
	"github.com/tiktoken-go/tokenizer"
)

var (
	// ErrTransient marks overload and rate-limit failures that are worth retrying.
	ErrTransient = errors.New("gemini: transient api error")
	// ErrPermanent marks failures that a retry cannot fix.
	ErrPermanent = errors.New("gemini: permanent api error")
	// ErrEmptyResponse marks a successful envelope with no usable candidate text.
	ErrEmptyResponse = errors.New("gemini: empty response")
)

var transientMarkers = []string{
	"busy",
	"overloaded",
	"rate limit",
	"rate-limit",
	"429",
	"resource_exhausted",
	"resource exhausted",
	"503",
	"unavailable",
}

// APIError is the error returned by Generate. Kind is one of ErrTransient,
// ErrPermanent or ErrEmptyResponse and is reachable through errors.Is.
type APIError struct {
	Kind       error
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

// Is matches the error kind.
func (e *APIError) Is(target error) bool { return target == e.Kind }

// Unwrap exposes the underlying transport error, if any.
func (e *APIError) Unwrap() error { return e.Err }

// Transient reports whether the error is worth retrying.
func (e *APIError) Transient() bool { return e.Kind == ErrTransient }

type geminiStatusError struct {
	code int
	body []byte
}

func (e geminiStatusError) Error() string {
	if msg := gemini.ParseErrorMessage(e.body); msg != "" {
		return msg
	}
	return fmt.Sprintf("status %d", e.code)
}

func (e geminiStatusError) StatusCode() int { return e.code }

// classifyError wraps err into an APIError. Context cancellation is permanent:
// the caller gave up and retrying would ignore that.
func classifyError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	out := &APIError{Kind: ErrPermanent, Message: err.Error(), Err: err}

	var statusErr geminiStatusError
	if errors.As(err, &statusErr) {
		out.StatusCode = statusErr.StatusCode()
		out.Err = nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return out
	}
	if isTransientMessage(out.Message) || out.StatusCode == 429 || out.StatusCode == 503 {
		out.Kind = ErrTransient
	}
	return out
}

func isTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func textTokenizer() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// estimateTokens approximates the token count of text when the API reports no
// usage. It falls back to four characters per token.
func estimateTokens(text string) int64 {
	if text == "" {
		return 0
	}
	if enc, err := textTokenizer(); err == nil {
		if ids, _, errEncode := enc.Encode(text); errEncode == nil {
			return int64(len(ids))
		}
	}
	return int64(math.Ceil(float64(utf8.RuneCountInString(text)) / 4))
}
