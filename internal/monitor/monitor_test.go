package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor() *Monitor {
	return New(Options{Trigger: "@gemini", SelfPackage: "com.geminianywhere.app"})
}

func snap(field, text string) FieldSnapshot {
	return FieldSnapshot{FieldID: field, Text: text, Package: "com.whatsapp", Editable: true}
}

func feed(m *Monitor, field string, texts ...string) []Edge {
	edges := make([]Edge, 0, len(texts))
	for _, text := range texts {
		edges = append(edges, m.Observe(snap(field, text)))
	}
	return edges
}

func TestObserveAppearedAndDisappeared(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	edges := feed(m, "f1", "hi", "hi @gemin", "hi @gemini", "hi @gemini write", "hi @gemin", "")
	assert.Equal(t, []Edge{EdgeNone, EdgeNone, EdgeAppeared, EdgeNone, EdgeDisappeared, EdgeDisappeared}, edges)
	assert.False(t, m.State().TriggerPresent)
}

func TestObserveNeverAppearsForPrefixMatch(t *testing.T) {
	t.Parallel()
	m := New(Options{Trigger: "@g"})
	edges := feed(m, "f1", "@", "@g", "@go", "@govind", "@govind says hi")
	assert.Equal(t, EdgeAppeared, edges[1])
	assert.Equal(t, EdgeDisappeared, edges[2])
	for _, e := range edges[3:] {
		assert.NotEqual(t, EdgeAppeared, e)
	}
}

func TestObserveRepeatedSnapshotDoesNotReAppear(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	edges := feed(m, "f1", "@gemini", "@gemini", "@gemini ")
	assert.Equal(t, []Edge{EdgeAppeared, EdgeNone, EdgeNone}, edges)
}

func TestObserveVoiceCommandFiresOnce(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	edges := feed(m, "f1", "@gemini ", "@gemini /v", "@gemini /voic", "@gemini /voice", "@gemini /voice ", "@gemini /voicemail", "@gemini /VOICE")
	assert.Equal(t, []Edge{
		EdgeAppeared,
		EdgeNone,
		EdgeNone,
		EdgeCommandInProgress,
		EdgeNone,
		EdgeNone,
		EdgeCommandInProgress,
	}, edges)
}

func TestObservePastedVoiceCommand(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	require.Equal(t, EdgeCommandInProgress, m.Observe(snap("f1", "note @gemini voice")))
	assert.True(t, m.State().CommandLatched)
}

func TestObserveSelfPackageSuppressed(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	s := snap("settings", "@gemini")
	s.Package = "com.geminianywhere.app"
	assert.Equal(t, EdgeNone, m.Observe(s))
	assert.Equal(t, TriggerState{}, m.State())
}

func TestObserveIgnoresNonEditable(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	s := snap("label", "@gemini")
	s.Editable = false
	assert.Equal(t, EdgeNone, m.Observe(s))
}

func TestObserveDisabledHidesAffordance(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	require.Equal(t, EdgeAppeared, m.Observe(snap("f1", "@gemini")))

	opts := m.Options()
	opts.Disabled = true
	m.opts = opts
	assert.Equal(t, EdgeDisappeared, m.Observe(snap("f1", "@gemini more")))
	assert.Equal(t, EdgeNone, m.Observe(snap("f1", "@gemini more")))
}

// A field that already holds the trigger reports Appeared again after focus
// moves away and back.
func TestObserveRefocusReEmitsAppeared(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	require.Equal(t, EdgeAppeared, m.Observe(snap("a", "@gemini hello")))
	require.Equal(t, EdgeNone, m.Observe(snap("b", "plain")))
	assert.Equal(t, EdgeAppeared, m.Observe(snap("a", "@gemini hello")))
}

func TestFocusChangedResetsLastText(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	require.Equal(t, EdgeAppeared, m.Observe(snap("a", "@gemini hello")))
	m.FocusChanged("a")
	assert.Equal(t, "", m.State().LastText)
	assert.Equal(t, EdgeAppeared, m.Observe(snap("a", "@gemini hello")))
}

func TestSetOptionsClearsState(t *testing.T) {
	t.Parallel()
	m := newTestMonitor()
	m.Observe(snap("a", "@gemini hello"))
	m.SetOptions(Options{Trigger: "@ai"})
	assert.Equal(t, TriggerState{}, m.State())
	assert.Equal(t, "/voice", m.Options().VoiceCommand)
	assert.Equal(t, EdgeAppeared, m.Observe(snap("a", "@ai")))
}
