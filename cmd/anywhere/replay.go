package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/monitor"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini/helpers"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/trigger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// replayScript is a recorded sequence of field events.
//
//	package: com.whatsapp
//	events:
//	  - field: chat-input
//	    text: "@gemini say hi"
//	  - focus: other-field
type replayScript struct {
	Package string        `yaml:"package"`
	Events  []replayEvent `yaml:"events"`
}

type replayEvent struct {
	Field    string `yaml:"field"`
	Text     string `yaml:"text"`
	Package  string `yaml:"package"`
	Editable *bool  `yaml:"editable"`
	// Focus moves focus to the named field instead of reporting text.
	Focus string `yaml:"focus"`
}

func newReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [script.yaml]",
		Short: "Feed a script of field events through the trigger monitor",
		Long:  "Replay prints the edge computed for every event and, while the trigger is present, the intent a send would resolve.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			script, err := parseReplayScript(data)
			if err != nil {
				return err
			}
			return runReplay(cmd.OutOrStdout(), a.cfg, script)
		},
	}
}

func parseReplayScript(data []byte) (replayScript, error) {
	var script replayScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return replayScript{}, fmt.Errorf("parse script: %w", err)
	}
	if len(script.Events) == 0 {
		return replayScript{}, fmt.Errorf("parse script: no events")
	}
	return script, nil
}

func runReplay(w io.Writer, cfg *config.Config, script replayScript) error {
	mon := monitor.New(monitor.Options{
		Trigger:      cfg.Trigger.Pattern,
		VoiceCommand: cfg.Trigger.VoiceCommand,
		SelfPackage:  cfg.Trigger.SelfPackage,
		Disabled:     !cfg.Trigger.Enabled,
	})
	x := trigger.Extractor{VoiceCommand: cfg.Trigger.VoiceCommand, Commands: cfg.CommandTable()}

	for i, ev := range script.Events {
		n := i + 1
		if ev.Focus != "" {
			mon.FocusChanged(ev.Focus)
			fmt.Fprintf(w, "%d\tfocus\t%s\n", n, ev.Focus)
			continue
		}
		snap := monitor.FieldSnapshot{
			FieldID:  ev.Field,
			Text:     ev.Text,
			Package:  firstNonEmpty(ev.Package, script.Package),
			Editable: ev.Editable == nil || *ev.Editable,
		}
		edge := mon.Observe(snap)
		fmt.Fprintf(w, "%d\t%s\t%s", n, ev.Field, edge)
		if mon.State().TriggerPresent {
			intent := x.ExtractFromText(ev.Text, cfg.Trigger.Pattern)
			fmt.Fprintf(w, "\t%s", intent.Kind)
			if intent.Command != "" {
				fmt.Fprintf(w, " %s", intent.Command)
			}
			if intent.Text != "" {
				fmt.Fprintf(w, " %s", strconv.Quote(helpers.Preview(intent.Text, 60)))
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
