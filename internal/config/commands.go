package config

import (
	"fmt"
	"strings"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/trigger"
)

// Command is a single command-table entry. Name is stored in canonical form
// with its leading marker; Template holds the {text} placeholder.
type Command struct {
	Name     string `yaml:"name" json:"name"`
	Template string `yaml:"template" json:"template"`
}

func (c *Command) normalize() {
	if c == nil {
		return
	}
	c.Name = trigger.CanonicalCommand(c.Name)
	c.Template = strings.TrimSpace(c.Template)
}

// DefaultCommands returns the built-in command table.
func DefaultCommands() []Command {
	return []Command{
		{Name: "/reply", Template: "You are an assistant replying to the following message. Reply in a polite and professional tone.\n\nMessage:\n{text}\n\nYour reply:"},
		{Name: "/rewrite", Template: "Rewrite the following text to be more clear, professional, and well-structured:\n\n{text}"},
		{Name: "/summarize", Template: "Summarize the following text in a concise way, highlighting the key points:\n\n{text}"},
		{Name: "/fix", Template: "Fix any grammar, spelling, or punctuation errors in the following text:\n\n{text}"},
		{Name: "/expand", Template: "Expand the following text with more details and context:\n\n{text}"},
		{Name: "/shorten", Template: "Make the following text more concise and to the point:\n\n{text}"},
		{Name: "/professional", Template: "Rewrite the following text in a professional business tone:\n\n{text}"},
		{Name: "/casual", Template: "Rewrite the following text in a friendly, casual tone:\n\n{text}"},
	}
}

// NormalizeCommands canonicalizes command names, drops entries with a blank
// name or template and keeps the first definition of each name.
func (cfg *Config) NormalizeCommands() {
	if cfg == nil || len(cfg.Commands) == 0 {
		return
	}
	unique := make(map[string]struct{}, len(cfg.Commands))
	out := cfg.Commands[:0]
	for i := range cfg.Commands {
		entry := cfg.Commands[i]
		entry.normalize()
		if entry.Name == "" || entry.Name == trigger.CommandMarker || entry.Template == "" {
			continue
		}
		if _, exists := unique[entry.Name]; exists {
			continue
		}
		unique[entry.Name] = struct{}{}
		out = append(out, entry)
	}
	cfg.Commands = out
}

// CommandTable returns the command table as a lookup keyed by canonical name.
func (cfg *Config) CommandTable() trigger.CommandMap {
	table := make(trigger.CommandMap, len(cfg.Commands))
	for _, c := range cfg.Commands {
		table[c.Name] = c.Template
	}
	return table
}

func (cfg *Config) commandWarnings() []string {
	var out []string
	for _, c := range cfg.Commands {
		if trigger.IsVoiceCommand(c.Name, cfg.Trigger.VoiceCommand) {
			out = append(out, fmt.Sprintf("command %s is shadowed by the voice command", c.Name))
			continue
		}
		if !strings.Contains(c.Template, trigger.Placeholder) {
			out = append(out, fmt.Sprintf("command %s template has no %s placeholder; the typed text will be ignored", c.Name, trigger.Placeholder))
		}
	}
	return out
}
