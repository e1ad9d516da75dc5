// Package assistant connects the trigger monitor, the prompt pipeline, the
// Gemini executor and the field injector into the end-to-end flow driven by
// platform accessibility events.
package assistant

import (
	"context"
	"errors"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/inject"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/monitor"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/runtime/executor"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/store"
)

var (
	ErrRequestInFlight = errors.New("assistant: a request is already in flight for this field")
	ErrNoPrompt        = errors.New("assistant: no prompt after the trigger")
	ErrEmptyCommand    = errors.New("assistant: command has no text")
	ErrMissingAPIKey   = errors.New("assistant: API key is not configured")
	ErrNoVoiceSession  = errors.New("assistant: no voice session")
)

// Event is one text-change notification from the platform. The service takes
// ownership of the surface nodes and releases them when it no longer needs them.
type Event struct {
	Snapshot monitor.FieldSnapshot
	Surface  inject.Surface
}

// Generator produces text for a decorated prompt. *executor.GeminiExecutor
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req executor.GenerationRequest) (executor.GenerationResult, error)
	HasAPIKey() bool
}

// Overlay is the floating affordance shown next to a field holding the trigger.
// All calls happen on the main loop.
type Overlay interface {
	ShowButton(fieldID string)
	HideButton()
	SetLoading(loading bool)
	Notify(message string)
}

// HistoryRecorder stores successful generations. *store.History satisfies it.
type HistoryRecorder interface {
	Add(ctx context.Context, prompt, response, promptContext, model string) (store.HistoryItem, bool, error)
}

type nopOverlay struct{}

func (nopOverlay) ShowButton(string) {}
func (nopOverlay) HideButton()       {}
func (nopOverlay) SetLoading(bool)   {}
func (nopOverlay) Notify(string)     {}
