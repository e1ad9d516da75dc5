// Package inject writes generated text back into the platform's text fields,
// routing subject and body into the right fields of multi-field composers.
package inject

import "strings"

// Node is an accessibility node exposed by the platform.
type Node interface {
	ID() string
	Text() string
	Hint() string
	Description() string
	ViewID() string
	ClassName() string
	Editable() bool
	// SetText replaces the node content and reports whether the platform accepted it.
	SetText(text string) bool
	SetSelection(start, end int) bool
	Focus() bool
	// Children returns the direct children. The caller releases each one.
	Children() []Node
	Release()
}

// Surface is the target of a write: the field that held the trigger, the root
// of the active window and the package that owns it.
type Surface struct {
	Package string
	Current Node
	Root    Node
}

// FieldInfo is the metadata used to classify a composer field.
type FieldInfo struct {
	Hint        string
	Description string
	ViewID      string
	ClassName   string
	Text        string
}

func infoOf(n Node) FieldInfo {
	return FieldInfo{
		Hint:        n.Hint(),
		Description: n.Description(),
		ViewID:      n.ViewID(),
		ClassName:   n.ClassName(),
		Text:        n.Text(),
	}
}

// editTextClass marks text-input widgets, including composer subclasses.
const editTextClass = "EditText"

func isTextInput(n Node) bool {
	return n.Editable() && strings.Contains(n.ClassName(), editTextClass)
}

// collectEditable walks the tree under root depth first. It returns the
// editable text inputs and every visited descendant, which the caller must release.
func collectEditable(root Node) (editable []Node, visited []Node) {
	var walk func(n Node)
	walk = func(n Node) {
		for _, child := range n.Children() {
			if child == nil {
				continue
			}
			visited = append(visited, child)
			if isTextInput(child) {
				editable = append(editable, child)
			}
			walk(child)
		}
	}
	if root != nil {
		if isTextInput(root) {
			editable = append(editable, root)
		}
		walk(root)
	}
	return editable, visited
}
