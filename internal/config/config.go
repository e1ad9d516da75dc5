// Package config loads and validates the assistant configuration: the Gemini
// client settings, trigger recognition, command table, history and voice.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = 500 * time.Millisecond
	DefaultConnectTimeout  = 8 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 8 * time.Second
	DefaultTrigger         = "@gemini"
	DefaultVoiceCommand    = "/voice"
	DefaultSelfPackage     = "com.geminianywhere.app"
	DefaultLanguage        = "English"
	DefaultHistoryMax      = 50
	DefaultDedupeWindow    = time.Hour
	DefaultStopTimeout     = 2 * time.Second
	DefaultMinSpeechLength = 3
	DefaultDeepgramURL     = "wss://api.deepgram.com/v1/listen"
	DefaultDeepgramModel   = "nova-2"
)

// Environment variables that override file values.
const (
	EnvAPIKey         = "GEMINI_API_KEY"
	EnvModel          = "GEMINI_MODEL"
	EnvBaseURL        = "GEMINI_BASE_URL"
	EnvTrigger        = "ANYWHERE_TRIGGER"
	EnvDeepgramAPIKey = "DEEPGRAM_API_KEY"
)

// Config is the root configuration document.
type Config struct {
	Debug         bool           `yaml:"debug" json:"debug"`
	LoggingToFile bool           `yaml:"logging-to-file" json:"logging-to-file"`
	LogDir        string         `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`
	Gemini        GeminiConfig   `yaml:"gemini" json:"gemini"`
	Trigger       TriggerConfig  `yaml:"trigger" json:"trigger"`
	Language      LanguageConfig `yaml:"language" json:"language"`
	Commands      []Command      `yaml:"commands" json:"commands"`
	History       HistoryConfig  `yaml:"history" json:"history"`
	Voice         VoiceConfig    `yaml:"voice" json:"voice"`
}

// GeminiConfig configures the generateContent client.
type GeminiConfig struct {
	BaseURL         string        `yaml:"base-url,omitempty" json:"base-url,omitempty"`
	APIKey          string        `yaml:"api-key,omitempty" json:"-"`
	APIKeys         []string      `yaml:"api-keys,omitempty" json:"-"`
	Model           string        `yaml:"model" json:"model"`
	MaxRetries      int           `yaml:"max-retries" json:"max-retries"`
	RetryBackoff    time.Duration `yaml:"retry-backoff" json:"retry-backoff"`
	ConnectTimeout  time.Duration `yaml:"connect-timeout" json:"connect-timeout"`
	ReadTimeout     time.Duration `yaml:"read-timeout" json:"read-timeout"`
	WriteTimeout    time.Duration `yaml:"write-timeout" json:"write-timeout"`
	Temperature     float64       `yaml:"temperature" json:"temperature"`
	MaxOutputTokens int           `yaml:"max-output-tokens" json:"max-output-tokens"`
	TopK            int           `yaml:"top-k" json:"top-k"`
	TopP            float64       `yaml:"top-p" json:"top-p"`
}

// TriggerConfig configures trigger recognition.
type TriggerConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	Pattern          string   `yaml:"pattern" json:"pattern"`
	VoiceCommand     string   `yaml:"voice-command" json:"voice-command"`
	SelfPackage      string   `yaml:"self-package" json:"self-package"`
	ComposerPackages []string `yaml:"composer-packages" json:"composer-packages"`
}

// LanguageConfig selects the response language.
type LanguageConfig struct {
	Preferred     string `yaml:"preferred" json:"preferred"`
	AutoTranslate bool   `yaml:"auto-translate" json:"auto-translate"`
}

// HistoryConfig configures the generation history log.
type HistoryConfig struct {
	Path         string        `yaml:"path,omitempty" json:"path,omitempty"`
	MaxItems     int           `yaml:"max-items" json:"max-items"`
	DedupeWindow time.Duration `yaml:"dedupe-window" json:"dedupe-window"`
}

// VoiceConfig configures the voice flow and its recognizer.
type VoiceConfig struct {
	StopTimeout     time.Duration  `yaml:"stop-timeout" json:"stop-timeout"`
	MinSpeechLength int            `yaml:"min-speech-length" json:"min-speech-length"`
	Deepgram        DeepgramConfig `yaml:"deepgram" json:"deepgram"`
}

// DeepgramConfig configures the streaming speech recognizer.
type DeepgramConfig struct {
	APIKey   string `yaml:"api-key,omitempty" json:"-"`
	BaseURL  string `yaml:"base-url,omitempty" json:"base-url,omitempty"`
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`
	Language string `yaml:"language,omitempty" json:"language,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		LogDir: "~/.gemini-anywhere/logs",
		Gemini: GeminiConfig{
			BaseURL:         DefaultBaseURL,
			Model:           DefaultModel,
			MaxRetries:      DefaultMaxRetries,
			RetryBackoff:    DefaultRetryBackoff,
			ConnectTimeout:  DefaultConnectTimeout,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			Temperature:     0.7,
			MaxOutputTokens: 300,
			TopK:            40,
			TopP:            0.95,
		},
		Trigger: TriggerConfig{
			Enabled:          true,
			Pattern:          DefaultTrigger,
			VoiceCommand:     DefaultVoiceCommand,
			SelfPackage:      DefaultSelfPackage,
			ComposerPackages: []string{"gmail"},
		},
		Language: LanguageConfig{Preferred: DefaultLanguage},
		Commands: DefaultCommands(),
		History: HistoryConfig{
			Path:         "~/.gemini-anywhere/history.db",
			MaxItems:     DefaultHistoryMax,
			DedupeWindow: DefaultDedupeWindow,
		},
		Voice: VoiceConfig{
			StopTimeout:     DefaultStopTimeout,
			MinSpeechLength: DefaultMinSpeechLength,
			Deepgram: DeepgramConfig{
				BaseURL:  DefaultDeepgramURL,
				Model:    DefaultDeepgramModel,
				Language: "en-US",
			},
		},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, applies .env
// files and environment overrides, then normalizes and validates the result.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOptional(path, false)
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing file when
// optional is true.
func LoadConfigOptional(path string, optional bool) (*Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path != "" {
		resolved, err := expandUserPath(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(resolved)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", resolved, err)
			}
		case optional && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", resolved, err)
		}
		loadDotEnv(filepath.Join(filepath.Dir(resolved), ".env"))
	}
	loadDotEnv(".env")
	cfg.ApplyEnvOverrides()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}
	_ = godotenv.Load(path)
}

// ApplyEnvOverrides copies non-empty environment overrides into cfg.
func (cfg *Config) ApplyEnvOverrides() {
	if cfg == nil {
		return
	}
	override := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	override(EnvAPIKey, &cfg.Gemini.APIKey)
	override(EnvModel, &cfg.Gemini.Model)
	override(EnvBaseURL, &cfg.Gemini.BaseURL)
	override(EnvTrigger, &cfg.Trigger.Pattern)
	override(EnvDeepgramAPIKey, &cfg.Voice.Deepgram.APIKey)
}

// Normalize trims values and fills zero values with defaults.
func (cfg *Config) Normalize() {
	if cfg == nil {
		return
	}
	def := Default()
	cfg.LogDir = strings.TrimSpace(cfg.LogDir)

	g := &cfg.Gemini
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.BaseURL == "" {
		g.BaseURL = def.Gemini.BaseURL
	}
	g.APIKey = strings.TrimSpace(g.APIKey)
	g.APIKeys = uniqueNonBlank(g.APIKeys)
	g.Model = strings.TrimSpace(g.Model)
	if g.Model == "" {
		g.Model = def.Gemini.Model
	}
	if g.MaxRetries == 0 {
		g.MaxRetries = def.Gemini.MaxRetries
	}
	if g.RetryBackoff == 0 {
		g.RetryBackoff = def.Gemini.RetryBackoff
	}
	if g.ConnectTimeout == 0 {
		g.ConnectTimeout = def.Gemini.ConnectTimeout
	}
	if g.ReadTimeout == 0 {
		g.ReadTimeout = def.Gemini.ReadTimeout
	}
	if g.WriteTimeout == 0 {
		g.WriteTimeout = def.Gemini.WriteTimeout
	}
	if g.MaxOutputTokens == 0 {
		g.MaxOutputTokens = def.Gemini.MaxOutputTokens
	}
	if g.TopK == 0 {
		g.TopK = def.Gemini.TopK
	}
	if g.TopP == 0 {
		g.TopP = def.Gemini.TopP
	}

	t := &cfg.Trigger
	t.Pattern = strings.TrimSpace(t.Pattern)
	t.VoiceCommand = strings.TrimSpace(t.VoiceCommand)
	if t.VoiceCommand == "" {
		t.VoiceCommand = def.Trigger.VoiceCommand
	}
	t.SelfPackage = strings.TrimSpace(t.SelfPackage)
	t.ComposerPackages = uniqueNonBlank(t.ComposerPackages)

	cfg.Language.Preferred = strings.TrimSpace(cfg.Language.Preferred)
	if cfg.Language.Preferred == "" {
		cfg.Language.Preferred = def.Language.Preferred
	}

	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
	if cfg.History.MaxItems == 0 {
		cfg.History.MaxItems = def.History.MaxItems
	}
	if cfg.History.DedupeWindow == 0 {
		cfg.History.DedupeWindow = def.History.DedupeWindow
	}

	v := &cfg.Voice
	if v.StopTimeout == 0 {
		v.StopTimeout = def.Voice.StopTimeout
	}
	if v.MinSpeechLength == 0 {
		v.MinSpeechLength = def.Voice.MinSpeechLength
	}
	v.Deepgram.APIKey = strings.TrimSpace(v.Deepgram.APIKey)
	if strings.TrimSpace(v.Deepgram.BaseURL) == "" {
		v.Deepgram.BaseURL = def.Voice.Deepgram.BaseURL
	}
	if strings.TrimSpace(v.Deepgram.Model) == "" {
		v.Deepgram.Model = def.Voice.Deepgram.Model
	}

	cfg.NormalizeCommands()
}

// Validate reports settings that cannot work.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Trigger.Pattern == "" {
		return fmt.Errorf("trigger.pattern is required")
	}
	if strings.IndexFunc(cfg.Trigger.Pattern, unicode.IsSpace) >= 0 {
		return fmt.Errorf("trigger.pattern %q must not contain whitespace", cfg.Trigger.Pattern)
	}
	if strings.IndexFunc(cfg.Trigger.VoiceCommand, unicode.IsSpace) >= 0 {
		return fmt.Errorf("trigger.voice-command %q must not contain whitespace", cfg.Trigger.VoiceCommand)
	}
	g := cfg.Gemini
	if g.MaxRetries < 1 {
		return fmt.Errorf("gemini.max-retries must be at least 1, got %d", g.MaxRetries)
	}
	for name, d := range map[string]time.Duration{
		"gemini.retry-backoff":   g.RetryBackoff,
		"gemini.connect-timeout": g.ConnectTimeout,
		"gemini.read-timeout":    g.ReadTimeout,
		"gemini.write-timeout":   g.WriteTimeout,
		"voice.stop-timeout":     cfg.Voice.StopTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if g.MaxOutputTokens < 0 || g.TopK < 0 || g.TopP < 0 || g.Temperature < 0 {
		return fmt.Errorf("gemini generation settings must not be negative")
	}
	if u, err := url.Parse(g.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gemini.base-url %q is not an absolute URL", g.BaseURL)
	}
	if cfg.History.MaxItems < 0 {
		return fmt.Errorf("history.max-items must not be negative")
	}
	if cfg.Voice.MinSpeechLength < 0 {
		return fmt.Errorf("voice.min-speech-length must not be negative")
	}
	return nil
}

// Warnings lists settings that work but are probably not what the user wants.
func (cfg *Config) Warnings() []string {
	if cfg == nil {
		return nil
	}
	var out []string
	if len(cfg.APIKeyList()) == 0 {
		out = append(out, fmt.Sprintf("no Gemini API key configured; set gemini.api-key or %s", EnvAPIKey))
	}
	out = append(out, cfg.commandWarnings()...)
	return out
}

// APIKeyList returns the configured keys, the single key first, without duplicates.
func (cfg *Config) APIKeyList() []string {
	if cfg == nil {
		return nil
	}
	return uniqueNonBlank(append([]string{cfg.Gemini.APIKey}, cfg.Gemini.APIKeys...))
}

// ResolvedHistoryPath returns the history database path with ~ expanded.
func (cfg *Config) ResolvedHistoryPath() (string, error) {
	return expandUserPath(cfg.History.Path)
}

// ResolvedLogDir returns the log directory with ~ expanded.
func (cfg *Config) ResolvedLogDir() (string, error) {
	return expandUserPath(cfg.LogDir)
}

func uniqueNonBlank(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func expandUserPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] != '~' {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return filepath.Clean(home), nil
	}
	remainder := strings.TrimLeft(path[1:], "/\\")
	if remainder == "" {
		return filepath.Clean(home), nil
	}
	return filepath.Clean(filepath.Join(home, remainder)), nil
}
