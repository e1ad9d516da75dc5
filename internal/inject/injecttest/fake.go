// Package injecttest provides an in-memory accessibility node for tests.
package injecttest

import (
	"sync"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/inject"
)

// Node is a scriptable inject.Node.
type Node struct {
	NodeID     string
	Info       inject.FieldInfo
	IsEditable bool
	// RejectWrites makes the next n SetText calls fail.
	RejectWrites int
	Kids         []*Node

	mu         sync.Mutex
	attempts   int
	writes     []string
	selections [][2]int
	focuses    int
	releases   int
}

// EditTextClass is the class name given to nodes built by Field.
const EditTextClass = "android.widget.EditText"

// Field returns an editable text input with the given text.
func Field(id, text string) *Node {
	return &Node{NodeID: id, Info: inject.FieldInfo{Text: text, ClassName: EditTextClass}, IsEditable: true}
}

// Container returns a non-editable node holding children.
func Container(id string, kids ...*Node) *Node {
	return &Node{NodeID: id, Kids: kids}
}

func (n *Node) ID() string { return n.NodeID }

func (n *Node) Text() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Info.Text
}

func (n *Node) Hint() string        { return n.Info.Hint }
func (n *Node) Description() string { return n.Info.Description }
func (n *Node) ViewID() string      { return n.Info.ViewID }
func (n *Node) ClassName() string   { return n.Info.ClassName }
func (n *Node) Editable() bool      { return n.IsEditable }

func (n *Node) SetText(text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts++
	if n.RejectWrites > 0 {
		n.RejectWrites--
		return false
	}
	n.Info.Text = text
	n.writes = append(n.writes, text)
	return true
}

func (n *Node) SetSelection(start, end int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.selections = append(n.selections, [2]int{start, end})
	return true
}

func (n *Node) Focus() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.focuses++
	return true
}

func (n *Node) Children() []inject.Node {
	out := make([]inject.Node, 0, len(n.Kids))
	for _, k := range n.Kids {
		out = append(out, k)
	}
	return out
}

func (n *Node) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.releases++
}

// Writes returns the accepted SetText values in order.
func (n *Node) Writes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.writes...)
}

// Attempts counts SetText calls, accepted or not.
func (n *Node) Attempts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attempts
}

// Selections returns every SetSelection call.
func (n *Node) Selections() [][2]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][2]int(nil), n.selections...)
}

// Focuses counts Focus calls.
func (n *Node) Focuses() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focuses
}

// Releases counts Release calls.
func (n *Node) Releases() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.releases
}
