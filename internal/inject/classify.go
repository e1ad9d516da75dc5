package inject

import (
	"strings"
	"unicode/utf8"
)

const (
	subjectLabel = "subject:"
	bodyLabel    = "body:"
	// longTextThreshold is the length above which an unlabelled field is assumed to be the body.
	longTextThreshold = 50
	composeEditorType = "ComposeEditText"
)

// Classification holds the indexes of the subject and body fields, or -1.
type Classification struct {
	Subject int
	Body    int
}

// Found reports whether any field was identified.
func (c Classification) Found() bool { return c.Subject >= 0 || c.Body >= 0 }

const (
	bodyScoreNone = iota
	bodyScoreLength
	bodyScoreClass
	bodyScoreLabel
)

// ClassifyFields picks the subject and body fields of a composer. The first
// field with a subject-like hint, description or view id is the subject. The
// body is the field with the strongest signal: compose/body metadata, then the
// compose editor class, then text longer than the threshold. Ties go to the
// earlier field.
func ClassifyFields(fields []FieldInfo) Classification {
	out := Classification{Subject: -1, Body: -1}
	best := bodyScoreNone
	for i, f := range fields {
		if isSubjectField(f) {
			if out.Subject < 0 {
				out.Subject = i
			}
			continue
		}
		if score := bodyScore(f); score > best {
			best = score
			out.Body = i
		}
	}
	return out
}

func isSubjectField(f FieldInfo) bool {
	return containsFold(f.Hint, "subject") ||
		containsFold(f.Description, "subject") ||
		containsFold(f.ViewID, "subject")
}

func bodyScore(f FieldInfo) int {
	switch {
	case containsFold(f.Hint, "compose"),
		containsFold(f.Description, "compose"),
		containsFold(f.ViewID, "body"),
		containsFold(f.ViewID, "composearea"):
		return bodyScoreLabel
	case containsFold(f.ClassName, composeEditorType):
		return bodyScoreClass
	case utf8.RuneCountInString(f.Text) > longTextThreshold:
		return bodyScoreLength
	default:
		return bodyScoreNone
	}
}

// ParseEmailContent splits generated text into subject and body. A leading
// "Subject:" line gives the subject and the remaining lines the body, with an
// optional "Body:" label removed. Unlabelled text of two or more lines uses the
// first line as subject. A single line is all body.
func ParseEmailContent(text string) (subject, body string) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return "", ""
	}
	lines := strings.Split(text, "\n")
	first := strings.TrimSpace(lines[0])

	if hasPrefixFold(first, subjectLabel) {
		subject = strings.TrimSpace(first[len(subjectLabel):])
		rest := strings.TrimSpace(strings.Join(lines[1:], "\n"))
		if hasPrefixFold(rest, bodyLabel) {
			rest = strings.TrimSpace(rest[len(bodyLabel):])
		}
		return subject, rest
	}
	if len(lines) >= 2 {
		return first, strings.TrimSpace(strings.Join(lines[1:], "\n"))
	}
	return "", text
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
