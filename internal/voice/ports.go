// Package voice drives a single voice-input session: recording, preview,
// editing and sending the transcript for generation.
package voice

import "context"

// Listener receives recognition callbacks. Implementations may be called from
// any goroutine.
type Listener interface {
	OnPartial(text string)
	OnFinal(text string)
	OnError(err error)
}

// Recognition is a running speech-to-text capture.
type Recognition interface {
	// Stop ends audio capture. A final result, or an error, follows on the listener.
	Stop() error
	// Close releases the recognizer. No callbacks are delivered afterwards.
	Close() error
}

// Recognizer starts speech-to-text captures.
type Recognizer interface {
	Start(ctx context.Context, l Listener) (Recognition, error)
}

// Scheduler hands work back to the goroutine that owns the controller.
// mainloop.Loop satisfies it.
type Scheduler interface {
	Post(fn func()) error
}

// Sink renders controller state. It is called on the scheduler goroutine.
type Sink interface {
	VoiceStateChanged(s Snapshot)
}

// SendFunc generates output for a transcript. It runs off the scheduler goroutine.
type SendFunc func(ctx context.Context, transcript string) (string, error)

// DeliverFunc writes generated output back to the field. It runs on the
// scheduler goroutine; an error returns the session to preview.
type DeliverFunc func(output string) error
