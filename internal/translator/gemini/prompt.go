package gemini

import "strings"

// Context is the kind of surface the prompt is written for.
type Context string

const (
	ContextWhatsApp     Context = "whatsapp"
	ContextMessaging    Context = "messaging"
	ContextEmail        Context = "email"
	ContextLinkedIn     Context = "linkedin"
	ContextSocial       Context = "social"
	ContextProfessional Context = "professional"
	ContextGeneral      Context = "general"
)

// DefaultLanguage needs no extra instruction.
const DefaultLanguage = "English"

var contextRules = []struct {
	ctx     Context
	needles []string
}{
	{ContextWhatsApp, []string{"whatsapp"}},
	{ContextMessaging, []string{"telegram", "messenger", "messages"}},
	{ContextEmail, []string{"gmail", "outlook", "mail"}},
	{ContextLinkedIn, []string{"linkedin"}},
	{ContextSocial, []string{"twitter", "facebook", "instagram"}},
	{ContextProfessional, []string{"slack", "teams"}},
}

// DetectContext maps an application package name to a prompt context.
// Rules are checked in order; the first match wins.
func DetectContext(packageName string) Context {
	lower := strings.ToLower(packageName)
	for _, rule := range contextRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.ctx
			}
		}
	}
	return ContextGeneral
}

var contextPrefixes = map[Context]string{
	ContextWhatsApp: `You're helping compose a WhatsApp message. Be very brief, casual, and conversational.
Keep it under 2-3 sentences. Use natural, friendly language.

Example:
Hey! Sure, I can do that. What time works for you?
`,
	ContextMessaging: "You're helping compose a casual message. Be friendly and concise. ",
	ContextEmail: `You're helping write a professional email. Be formal and well-structured.

IMPORTANT: Format your response EXACTLY like this:
Subject: [concise subject line]

[email body with proper greeting and closing]

Example:
Subject: Meeting Follow-up

Dear John,

Thank you for taking the time to meet with me today. I wanted to follow up on our discussion about the project timeline.

Best regards
`,
	ContextLinkedIn: `You're helping create a LinkedIn post. Use the Hook-Body-CTA structure.

IMPORTANT: Format your response EXACTLY like this:
[Attention-grabbing hook - 1 sentence]

[Body - 2-3 paragraphs with value/insights]

[Call-to-action - question or engagement prompt]

Example:
Just closed the biggest deal of my career, and here's what I learned.

When I started this journey 3 months ago, I had no idea it would teach me so much about persistence and relationship building. The key wasn't just about the product, it was about understanding the client's real pain points.

What's been your biggest career lesson this year? Share in the comments.
`,
	ContextSocial:       "You're helping create a social media post. Be engaging and creative. ",
	ContextProfessional: "You're helping with professional communication. Be clear and respectful. ",
	ContextGeneral:      "You're helping with text composition. Be helpful and clear. ",
}

const outputRules = `CRITICAL OUTPUT RULES:
Return output as plain text only.
Do NOT use markdown, emojis, bullets, headings, or special formatting.
Do NOT use *, **, #, -, or backticks.
Provide only the text to be inserted, without any explanation or meta-commentary.`

// BuildContextualPrompt decorates prompt with the template for ctx followed by
// the plain-text output rules. Unknown contexts use the general template.
func BuildContextualPrompt(ctx Context, prompt string) string {
	prefix, ok := contextPrefixes[ctx]
	if !ok {
		prefix = contextPrefixes[ContextGeneral]
	}
	var b strings.Builder
	b.Grow(len(prefix) + len(prompt) + len(outputRules) + 32)
	b.WriteString(prefix)
	b.WriteString(" User request: ")
	b.WriteString(prompt)
	b.WriteString("\n\n")
	b.WriteString(outputRules)
	return b.String()
}

// BuildVoicePrompt wraps a spoken instruction. The result is sent through
// BuildContextualPrompt with ContextGeneral like any typed prompt.
func BuildVoicePrompt(transcript string) string {
	return "You are an inline AI assistant responding to voice commands.\n\n" +
		"User voice instruction:\n\"" + transcript + "\"\n\n" +
		outputRules + "\nKeep it natural and conversational."
}

// WithLanguage appends a response-language instruction when auto translation
// is on and language is not the default.
func WithLanguage(prompt, language string, autoTranslate bool) string {
	language = strings.TrimSpace(language)
	if !autoTranslate || language == "" || strings.EqualFold(language, DefaultLanguage) {
		return prompt
	}
	return prompt + "\n\n[Important: Please respond in " + language + " language]"
}
