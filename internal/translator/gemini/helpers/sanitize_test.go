package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanMarkdownInlineMarkers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "bold and ital and code", CleanMarkdown("**bold** and _ital_ and `code`"))
}

func TestCleanMarkdownDocument(t *testing.T) {
	t.Parallel()
	input := "# Title\n\n**Bold** text with *emphasis*.\n\n- item one\n- item two\n\n1. first\n2. second\n\n> quoted line\n\n```go\nfmt.Println(1)\n```\n\n\n\nEnd"
	want := "Title\n\nBold text with emphasis.\n\nitem one\nitem two\n\nfirst\nsecond\n\nquoted line\n\nfmt.Println(1)\n\nEnd"
	assert.Equal(t, want, CleanMarkdown(input))
}

func TestCleanMarkdownDoubleMarkersAreNotItalic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Under and both", CleanMarkdown("__Under__ and **both**"))
}

func TestCleanMarkdownCollapsesBlankLines(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a\n\nb", CleanMarkdown("\n\na\r\n\r\n\r\n\r\nb\n\n"))
}

func TestCleanMarkdownIdempotent(t *testing.T) {
	t.Parallel()
	fixtures := []string{
		"**bold** and _ital_ and `code`",
		"# Title\n\n**Bold** text with *emphasis*.\n\n- item one\n- item two",
		"## Plan\n1. Gather data\n2. Review\n\n\n\n> Remember the deadline",
		"```\nplain block\n```",
		"Plain text with no markdown at all.",
		"Subject: Hello\n\nDear team,\n\n**Thanks** for the *quick* reply.",
		"> - item one\n> - item two",
		"1. # Title",
		"> # Quote heading",
	}
	for _, fixture := range fixtures {
		once := CleanMarkdown(fixture)
		require.Equal(t, once, CleanMarkdown(once), "fixture %q", fixture)
	}
}

func TestCleanMarkdownNestedLinePrefixes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "item one\nitem two", CleanMarkdown("> - item one\n> - item two"))
	assert.Equal(t, "Title", CleanMarkdown("1. # Title"))
	assert.Equal(t, "Quote heading", CleanMarkdown("> # Quote heading"))
}

func TestStripControl(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a\tb\nc d", StripControl("a\tb\r\nc\vd\x00\x1b"))
}

func TestPreview(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "one two", Preview("one\ntwo", 0))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "h...", Preview("hé", 2))
}
