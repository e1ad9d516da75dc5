// Package monitor tracks the trigger token across the stream of text snapshots
// reported for the focused field and turns them into edge transitions.
package monitor

import (
	"strings"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/trigger"
)

// Edge is the transition computed for a single snapshot.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeAppeared
	EdgeDisappeared
	EdgeCommandInProgress
)

func (e Edge) String() string {
	switch e {
	case EdgeAppeared:
		return "appeared"
	case EdgeDisappeared:
		return "disappeared"
	case EdgeCommandInProgress:
		return "command-in-progress"
	default:
		return "none"
	}
}

// FieldSnapshot is the content of a field at the moment a platform event fired.
type FieldSnapshot struct {
	FieldID  string
	Text     string
	Package  string
	Editable bool
}

// TriggerState is the monitor's view of the focused field.
type TriggerState struct {
	FieldID        string
	LastText       string
	TriggerPresent bool
	// CommandLatched is set once CommandInProgress has been emitted for the
	// current voice token, so the voice flow is launched a single time.
	CommandLatched bool
}

// Options configures trigger recognition.
type Options struct {
	Trigger      string
	VoiceCommand string
	// SelfPackage is the host application's own package; snapshots from it are ignored.
	SelfPackage string
	Disabled    bool
}

// Monitor is the trigger state machine for the currently focused field.
// It is not safe for concurrent use: drive it from a single scheduling context.
type Monitor struct {
	opts  Options
	state TriggerState
}

// New returns a monitor for the given options.
func New(opts Options) *Monitor {
	m := &Monitor{}
	m.SetOptions(opts)
	return m
}

// SetOptions replaces the options and clears any tracked state.
func (m *Monitor) SetOptions(opts Options) {
	if strings.TrimSpace(opts.VoiceCommand) == "" {
		opts.VoiceCommand = trigger.DefaultVoiceCommand
	}
	m.opts = opts
	m.Reset()
}

// Options returns the active options.
func (m *Monitor) Options() Options { return m.opts }

// State returns a copy of the tracked state.
func (m *Monitor) State() TriggerState { return m.state }

// Reset forgets the tracked field.
func (m *Monitor) Reset() { m.state = TriggerState{} }

// FocusChanged starts tracking fieldID with empty last text, so a field that
// already holds the trigger reports Appeared on its next snapshot.
func (m *Monitor) FocusChanged(fieldID string) {
	m.state = TriggerState{FieldID: fieldID}
}

// Observe processes one snapshot and returns the resulting edge.
func (m *Monitor) Observe(snap FieldSnapshot) Edge {
	if !snap.Editable || m.opts.Trigger == "" {
		return EdgeNone
	}
	if m.opts.SelfPackage != "" && snap.Package == m.opts.SelfPackage {
		return EdgeNone
	}
	if m.opts.Disabled {
		wasPresent := m.state.TriggerPresent
		m.Reset()
		if wasPresent {
			return EdgeDisappeared
		}
		return EdgeNone
	}
	if snap.FieldID != m.state.FieldID {
		m.FocusChanged(snap.FieldID)
	}

	if snap.Text == "" {
		m.state = TriggerState{FieldID: snap.FieldID}
		return EdgeDisappeared
	}

	had := trigger.Contains(m.state.LastText, m.opts.Trigger)
	has := trigger.Contains(snap.Text, m.opts.Trigger)
	m.state.LastText = snap.Text
	m.state.TriggerPresent = has

	switch {
	case !had && has:
		if m.voiceTyped(snap.Text) {
			m.state.CommandLatched = true
			return EdgeCommandInProgress
		}
		return EdgeAppeared
	case had && !has:
		m.state.CommandLatched = false
		return EdgeDisappeared
	case had && has:
		if !m.voiceTyped(snap.Text) {
			m.state.CommandLatched = false
			return EdgeNone
		}
		if m.state.CommandLatched {
			return EdgeNone
		}
		m.state.CommandLatched = true
		return EdgeCommandInProgress
	default:
		return EdgeNone
	}
}

func (m *Monitor) voiceTyped(text string) bool {
	suffix, ok := trigger.Suffix(text, m.opts.Trigger)
	if !ok {
		return false
	}
	token := trigger.LeadingToken(suffix)
	return token != "" && trigger.IsVoiceCommand(token, m.opts.VoiceCommand)
}
