package voice

import "errors"

var (
	ErrNoSpeechDetected       = errors.New("voice: no speech detected")
	ErrRecognitionUnavailable = errors.New("voice: speech recognition unavailable")
	ErrInvalidTransition      = errors.New("voice: invalid state transition")
	ErrSessionClosed          = errors.New("voice: session closed")
)

// State is the phase of a voice session.
type State int

const (
	StateReady State = iota
	StateRecording
	StatePreviewing
	StateSending
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StatePreviewing:
		return "previewing"
	case StateSending:
		return "sending"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is the renderable view of a session.
type Snapshot struct {
	State State
	// Transcript is the editable buffer shown in preview.
	Transcript string
	// Partial is the live recognition text while recording.
	Partial string
	// Stopping is set between a stop request and the final result.
	Stopping bool
	// Appending is set while recording more speech onto an existing transcript.
	Appending bool
	// Output is the delivered text once the session closed after a send.
	Output string
	Err    error
}
