package inject

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini/helpers"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/trigger"
	log "github.com/sirupsen/logrus"
)

var (
	ErrFieldNotEditable = errors.New("inject: field is not editable")
	ErrFieldNotFound    = errors.New("inject: target field not found")
	ErrWriteFailed      = errors.New("inject: platform rejected the text")
	ErrTriggerNotFound  = errors.New("inject: trigger no longer present in field")
)

// DefaultRetryDelay is the pause between focusing a field and retrying a rejected write.
const DefaultRetryDelay = 100 * time.Millisecond

// Options configures an Injector.
type Options struct {
	// ComposerPackages are package-name fragments of multi-field composers.
	ComposerPackages []string
	RetryDelay       time.Duration
}

// Injector writes text into platform fields.
type Injector struct {
	composers  []string
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// New returns an Injector.
func New(opts Options) *Injector {
	in := &Injector{retryDelay: opts.RetryDelay, sleep: time.Sleep}
	if in.retryDelay <= 0 {
		in.retryDelay = DefaultRetryDelay
	}
	in.SetComposerPackages(opts.ComposerPackages)
	return in
}

// SetComposerPackages replaces the composer package fragments.
func (in *Injector) SetComposerPackages(pkgs []string) {
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	in.composers = out
}

// IsComposer reports whether pkg belongs to a multi-field composer.
func (in *Injector) IsComposer(pkg string) bool {
	lower := strings.ToLower(pkg)
	for _, c := range in.composers {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// Inject writes text into the surface. Composer surfaces get subject and body
// routed into their fields; every other surface gets text in the current field.
func (in *Injector) Inject(text string, s Surface) error {
	if s.Current == nil {
		return ErrFieldNotFound
	}
	if !s.Current.Editable() {
		return ErrFieldNotEditable
	}
	if in.IsComposer(s.Package) && s.Root != nil {
		return in.injectComposer(text, s)
	}
	return in.write(s.Current, text)
}

func (in *Injector) injectComposer(text string, s Surface) error {
	subject, body := ParseEmailContent(text)

	fields, visited := collectEditable(s.Root)
	defer releaseAll(visited, s.Current)

	infos := make([]FieldInfo, len(fields))
	for i, f := range fields {
		infos[i] = infoOf(f)
	}
	cls := ClassifyFields(infos)

	log.WithFields(log.Fields{
		"fields":  len(fields),
		"subject": cls.Subject,
		"body":    cls.Body,
	}).Debug("inject: composer fields classified")

	if !cls.Found() {
		return in.write(s.Current, text)
	}

	// Body goes first: a rejected body leaves the composer untouched.
	if body != "" {
		target := s.Current
		if cls.Body >= 0 {
			target = fields[cls.Body]
		}
		if err := in.write(target, body); err != nil {
			return fmt.Errorf("body: %w", err)
		}
	}
	if subject != "" && cls.Subject >= 0 {
		if err := in.write(fields[cls.Subject], subject); err != nil {
			return fmt.Errorf("subject: %w", err)
		}
	}
	return nil
}

// ReplaceVoiceTrigger replaces the trigger, the voice command and anything
// typed after them in the current field with aiOutput. Text before the
// trigger is kept.
func (in *Injector) ReplaceVoiceTrigger(aiOutput string, current Node, triggerPattern string) error {
	if current == nil {
		return ErrFieldNotFound
	}
	if !current.Editable() {
		return ErrFieldNotEditable
	}
	text := current.Text()
	idx := trigger.Find(text, triggerPattern)
	if idx < 0 {
		return ErrTriggerNotFound
	}
	return in.write(current, text[:idx]+aiOutput)
}

// write sets the text, then places the cursor at the end and focuses the
// field. A rejected write is retried once after focusing the field.
func (in *Injector) write(n Node, text string) error {
	if !n.Editable() {
		return ErrFieldNotEditable
	}
	if !n.SetText(text) {
		log.WithField("chars", len(text)).Debug("inject: set text rejected, focusing and retrying")
		n.Focus()
		in.sleep(in.retryDelay)
		if !n.SetText(text) {
			return fmt.Errorf("%w (field %s, text %q)", ErrWriteFailed, n.ID(), helpers.Preview(text, 40))
		}
	}
	end := utf16Len(text)
	n.SetSelection(end, end)
	n.Focus()
	return nil
}

// utf16Len counts text in UTF-16 code units, the unit of platform selection offsets.
func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

// releaseAll releases every traversed node except the caller-owned keep handle.
func releaseAll(nodes []Node, keep Node) {
	for _, n := range nodes {
		if n == keep {
			continue
		}
		n.Release()
	}
}
