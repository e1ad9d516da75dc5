package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/runtime/executor"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/trigger"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	pkg     string
	model   string
	record  bool
	showRaw bool
}

func newGenerateCmd(a *app) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [text...]",
		Short: "Generate a reply for typed field text",
		Long: `Generate runs the same path as the overlay send button: the text is
scanned for the trigger, commands are resolved, the prompt is decorated for
the surface named by --package and the cleaned reply is printed.

Text without the trigger is sent as a regular prompt. Use "-" to read stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), a, opts, text)
		},
	}
	cmd.Flags().StringVarP(&opts.pkg, "package", "p", "", "package name of the originating app, used to pick the prompt template")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "override the configured model")
	cmd.Flags().BoolVar(&opts.record, "record", true, "append the result to the history log")
	cmd.Flags().BoolVar(&opts.showRaw, "raw", false, "print the unsanitized model output as well")
	return cmd
}

func runGenerate(ctx context.Context, w io.Writer, a *app, opts *generateOptions, text string) error {
	prompt, err := resolvePrompt(a.cfg, text)
	if err != nil {
		return err
	}
	promptCtx := gemini.DetectContext(opts.pkg)
	decorated := gemini.BuildContextualPrompt(promptCtx,
		gemini.WithLanguage(prompt, a.cfg.Language.Preferred, a.cfg.Language.AutoTranslate))

	exec := executor.NewGeminiExecutor(a.cfg)
	if !exec.HasAPIKey() {
		return fmt.Errorf("no Gemini API key configured (set %s or gemini.api-key)", config.EnvAPIKey)
	}
	result, err := exec.Generate(ctx, executor.GenerationRequest{Prompt: decorated, Model: opts.model})
	if err != nil {
		return err
	}

	if opts.showRaw {
		fmt.Fprintf(w, "--- raw ---\n%s\n--- clean ---\n", result.RawText)
	}
	fmt.Fprintln(w, result.Text)
	log.WithFields(log.Fields{
		"context":    promptCtx,
		"model":      result.Model,
		"attempts":   result.Attempts,
		"prompt_tok": result.PromptTokens,
		"reply_tok":  result.CompletionTokens,
	}).Debug("generate: done")

	if !opts.record {
		return nil
	}
	db, err := a.openStore()
	if err != nil {
		log.Warnf("generate: history not recorded: %v", err)
		return nil
	}
	defer db.Close()
	if _, _, err := a.history(db).Add(ctx, prompt, result.Text, string(promptCtx), result.Model); err != nil {
		log.Warnf("generate: history not recorded: %v", err)
	}
	return nil
}

// resolvePrompt extracts the prompt the way the overlay does. Text without a
// trigger is used whole.
func resolvePrompt(cfg *config.Config, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("nothing to generate: text is empty")
	}
	if !trigger.Contains(text, cfg.Trigger.Pattern) {
		return text, nil
	}
	x := trigger.Extractor{VoiceCommand: cfg.Trigger.VoiceCommand, Commands: cfg.CommandTable()}
	intent := x.ExtractFromText(text, cfg.Trigger.Pattern)
	switch intent.Kind {
	case trigger.KindRegularPrompt, trigger.KindCommandPrompt:
		if strings.TrimSpace(intent.Text) == "" {
			return "", fmt.Errorf("nothing to generate after %s", cfg.Trigger.Pattern)
		}
		return intent.Text, nil
	case trigger.KindEmptyContent:
		return "", fmt.Errorf("add your text after %s", intent.Command)
	case trigger.KindVoiceInput:
		return "", fmt.Errorf("%s needs a microphone; use the overlay", intent.Command)
	default:
		return "", fmt.Errorf("no prompt found after %s", cfg.Trigger.Pattern)
	}
}
