// Package helpers holds text cleanup shared by the Gemini translator and executor.
package helpers

import (
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

type rewrite struct {
	re   *regexp2.Regexp
	repl string
}

func mustRewrite(pattern, repl string) rewrite {
	return rewrite{re: regexp2.MustCompile(pattern, regexp2.None), repl: repl}
}

// markdownRewrites run in order; later steps assume earlier ones already ran.
var markdownRewrites = []rewrite{
	mustRewrite(`\*\*(.+?)\*\*`, "$1"),
	mustRewrite(`__(.+?)__`, "$1"),
	mustRewrite(`(?<!\*)\*(?!\*)(.+?)(?<!\*)\*(?!\*)`, "$1"),
	mustRewrite(`(?<!_)_(?!_)(.+?)(?<!_)_(?!_)`, "$1"),
	mustRewrite("`(.+?)`", "$1"),
	mustRewrite(`(?m)^#{1,6}[ \t]+`, ""),
	mustRewrite(`(?m)^[\-\*•][ \t]+`, ""),
	mustRewrite(`(?m)^\d+\.[ \t]+`, ""),
	mustRewrite(`(?m)^>[ \t]+`, ""),
	mustRewrite("```[a-zA-Z0-9_+-]*\\n", ""),
	mustRewrite("```", ""),
	mustRewrite(`\n{3,}`, "\n\n"),
}

// CleanMarkdown strips markdown decoration from model output while keeping the
// text it decorates. It is a heuristic, not a parser: asterisks or underscores
// that pair up across a line are treated as emphasis.
//
// The pipeline is repeated until the text stops changing, so prefixes exposed
// by a later step ("> - item") are removed too. Every rewrite only deletes
// characters, which bounds the number of passes.
func CleanMarkdown(text string) string {
	cleaned := strings.TrimSpace(StripControl(text))
	for {
		next := strings.TrimSpace(rewriteMarkdown(cleaned))
		if next == cleaned {
			return cleaned
		}
		cleaned = next
	}
}

func rewriteMarkdown(text string) string {
	for _, rw := range markdownRewrites {
		out, err := rw.re.Replace(text, rw.repl, -1, -1)
		if err != nil {
			continue
		}
		text = out
	}
	return text
}

// StripControl removes carriage returns and control characters other than
// newline and tab. Vertical tabs become spaces.
func StripControl(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n', r == '\t':
			builder.WriteRune(r)
		case r == '\v':
			builder.WriteByte(' ')
		case r == '\r':
			continue
		case unicode.IsControl(r):
			continue
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// Preview shortens text for debug logs and flattens newlines.
func Preview(text string, limit int) string {
	text = strings.ReplaceAll(StripControl(text), "\n", " ")
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
