package trigger

import "strings"

const (
	// CommandMarker is the leading character of every canonical command key.
	CommandMarker = "/"
	// Placeholder is replaced with the user's text inside a command template.
	Placeholder = "{text}"
	// DefaultVoiceCommand is the reserved command that starts the voice flow.
	DefaultVoiceCommand = "/voice"
)

// Kind tags the variant carried by an Intent.
type Kind int

const (
	// KindNone means no trigger could be resolved in the text.
	KindNone Kind = iota
	// KindRegularPrompt carries the free text following the trigger.
	KindRegularPrompt
	// KindCommandPrompt carries a command template with the user text substituted.
	KindCommandPrompt
	// KindEmptyContent marks a known command typed without any text after it.
	KindEmptyContent
	// KindVoiceInput marks the reserved voice command.
	KindVoiceInput
)

func (k Kind) String() string {
	switch k {
	case KindRegularPrompt:
		return "regular-prompt"
	case KindCommandPrompt:
		return "command-prompt"
	case KindEmptyContent:
		return "empty-content"
	case KindVoiceInput:
		return "voice-input"
	default:
		return "none"
	}
}

// Intent is the result of extracting a prompt from field text.
type Intent struct {
	Kind Kind
	// Text is the regular prompt or the resolved command prompt.
	Text string
	// Command is the canonical command key for command and empty-content intents.
	Command string
}

// CommandLookup resolves a canonical command key to its prompt template.
type CommandLookup interface {
	Lookup(name string) (string, bool)
}

// CommandMap is the simplest CommandLookup.
type CommandMap map[string]string

// Lookup implements CommandLookup.
func (m CommandMap) Lookup(name string) (string, bool) {
	tmpl, ok := m[name]
	return tmpl, ok
}

// CanonicalCommand returns token in canonical key form: trimmed and carrying
// exactly one leading marker. Blank input yields an empty string.
func CanonicalCommand(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, CommandMarker) {
		return token
	}
	return CommandMarker + token
}

// IsVoiceCommand reports whether token names the reserved voice command. The
// comparison is case-insensitive but whole-token: "/voicemail" is not a match.
func IsVoiceCommand(token, voiceCommand string) bool {
	key := CanonicalCommand(token)
	if key == "" {
		return false
	}
	if voiceCommand == "" {
		voiceCommand = DefaultVoiceCommand
	}
	return strings.EqualFold(key, CanonicalCommand(voiceCommand))
}

// LeadingToken returns the first whitespace-delimited token of the trimmed text.
func LeadingToken(text string) string {
	first, _ := splitFirstToken(strings.TrimSpace(text))
	return first
}

// Extractor turns the text after a trigger into an Intent.
type Extractor struct {
	VoiceCommand string
	Commands     CommandLookup
}

// Extract resolves the intent for fullText given the trigger position, using
// the default voice command.
func Extract(fullText string, triggerIndex, triggerLen int, commands CommandLookup) Intent {
	return Extractor{Commands: commands}.Extract(fullText, triggerIndex, triggerLen)
}

// ExtractFromText locates the trigger in text and resolves its intent.
func (x Extractor) ExtractFromText(text, trigger string) Intent {
	idx := Find(text, trigger)
	if idx < 0 {
		return Intent{Kind: KindNone}
	}
	return x.Extract(text, idx, len(trigger))
}

// Extract resolves the intent for fullText given the trigger position.
// Invalid positions degrade to KindNone.
func (x Extractor) Extract(fullText string, triggerIndex, triggerLen int) Intent {
	if triggerIndex < 0 || triggerLen < 0 || triggerIndex+triggerLen > len(fullText) {
		return Intent{Kind: KindNone}
	}

	suffix := strings.TrimSpace(fullText[triggerIndex+triggerLen:])
	first, rest := splitFirstToken(suffix)
	key := CanonicalCommand(first)

	if key != "" && IsVoiceCommand(key, x.VoiceCommand) {
		return Intent{Kind: KindVoiceInput, Command: key}
	}

	if key != "" && x.Commands != nil {
		if tmpl, ok := x.Commands.Lookup(key); ok {
			userText := strings.TrimSpace(rest)
			if userText == "" {
				return Intent{Kind: KindEmptyContent, Command: key}
			}
			return Intent{
				Kind:    KindCommandPrompt,
				Text:    strings.ReplaceAll(tmpl, Placeholder, userText),
				Command: key,
			}
		}
	}

	return Intent{Kind: KindRegularPrompt, Text: suffix}
}
