package gemini

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContext(t *testing.T) {
	t.Parallel()
	cases := map[string]Context{
		"com.whatsapp":                       ContextWhatsApp,
		"org.telegram.messenger":             ContextMessaging,
		"com.google.android.gm.Gmail":        ContextEmail,
		"com.microsoft.office.outlook":       ContextEmail,
		"com.linkedin.android":               ContextLinkedIn,
		"com.instagram.android":              ContextSocial,
		"com.Slack":                          ContextProfessional,
		"com.microsoft.teams":                ContextProfessional,
		"com.android.chrome":                 ContextGeneral,
		"":                                   ContextGeneral,
		"com.facebook.orca.messenger.mail":   ContextMessaging,
	}
	for pkg, want := range cases {
		assert.Equal(t, want, DetectContext(pkg), "package %q", pkg)
	}
}

func TestBuildContextualPrompt(t *testing.T) {
	t.Parallel()
	got := BuildContextualPrompt(ContextMessaging, "say hi")
	assert.True(t, strings.HasPrefix(got, "You're helping compose a casual message. Be friendly and concise.  User request: say hi\n\nCRITICAL OUTPUT RULES:\n"))
	assert.True(t, strings.HasSuffix(got, "without any explanation or meta-commentary."))

	email := BuildContextualPrompt(ContextEmail, "ask for leave")
	assert.Contains(t, email, "Subject: [concise subject line]")
	assert.Contains(t, email, "User request: ask for leave")

	unknown := BuildContextualPrompt(Context("spaceship"), "x")
	assert.True(t, strings.HasPrefix(unknown, "You're helping with text composition."))
}

func TestBuildVoicePrompt(t *testing.T) {
	t.Parallel()
	got := BuildVoicePrompt("book a table")
	assert.Contains(t, got, "User voice instruction:\n\"book a table\"")
	assert.True(t, strings.HasSuffix(got, "Keep it natural and conversational."))
}

func TestWithLanguage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hi", WithLanguage("hi", "Spanish", false))
	assert.Equal(t, "hi", WithLanguage("hi", "english", true))
	assert.Equal(t, "hi", WithLanguage("hi", " ", true))
	assert.Equal(t, "hi\n\n[Important: Please respond in Hindi language]", WithLanguage("hi", "Hindi", true))
}
