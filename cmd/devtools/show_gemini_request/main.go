// Command show_gemini_request prints the generateContent body the assistant
// would send for a piece of field text.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/trigger"
	"github.com/tidwall/gjson"
)

func main() {
	cfgPath := flag.String("config", "", "optional config file")
	pkg := flag.String("package", "", "package name of the originating app")
	voice := flag.Bool("voice", false, "treat the text as a voice transcript")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: show_gemini_request [-config file] [-package name] [-voice] <text>")
		os.Exit(2)
	}

	cfg, err := config.LoadConfigOptional(*cfgPath, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	text := strings.Join(flag.Args(), " ")
	promptCtx := gemini.DetectContext(*pkg)
	var prompt string
	if *voice {
		promptCtx = gemini.ContextGeneral
		prompt = gemini.BuildVoicePrompt(text)
	} else {
		x := trigger.Extractor{VoiceCommand: cfg.Trigger.VoiceCommand, Commands: cfg.CommandTable()}
		intent := x.ExtractFromText(text, cfg.Trigger.Pattern)
		fmt.Fprintf(os.Stderr, "intent: %s %s\n", intent.Kind, intent.Command)
		prompt = text
		if intent.Kind == trigger.KindRegularPrompt || intent.Kind == trigger.KindCommandPrompt {
			prompt = intent.Text
		}
	}
	prompt = gemini.WithLanguage(prompt, cfg.Language.Preferred, cfg.Language.AutoTranslate)
	fmt.Fprintf(os.Stderr, "context: %s\nmodel: %s\n", promptCtx, cfg.Gemini.Model)

	body, err := gemini.BuildRequest(gemini.BuildContextualPrompt(promptCtx, prompt), gemini.GenerationConfig{
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		TopK:            cfg.Gemini.TopK,
		TopP:            cfg.Gemini.TopP,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(gjson.GetBytes(body, "@pretty").Raw)
}
