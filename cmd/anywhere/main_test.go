package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestResolvePrompt(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr string
	}{
		{name: "plain text", text: "  write a haiku ", want: "write a haiku"},
		{name: "regular prompt", text: "draft @gemini say thanks", want: "say thanks"},
		{name: "command", text: "@gemini /shorten a very long sentence", want: "Make the following text more concise and to the point:\n\na very long sentence"},
		{name: "empty command", text: "@gemini /fix", wantErr: "add your text after /fix"},
		{name: "voice", text: "@gemini /voice", wantErr: "microphone"},
		{name: "trigger only", text: "@gemini", wantErr: "nothing to generate"},
		{name: "blank", text: "   ", wantErr: "text is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePrompt(cfg, tt.text)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const replayYAML = `
package: com.whatsapp
events:
  - field: f1
    text: "hi"
  - field: f1
    text: "hi @gemini"
  - field: f1
    text: "hi @gemini /fix teh cat"
  - field: f1
    text: "hi @gemini /voice"
  - field: f1
    text: "hi"
  - focus: f2
  - field: f2
    text: "@gemini hello"
    editable: false
  - field: f2
    text: "@gemini hello"
    package: com.geminianywhere.app
  - field: f2
    text: "@geminis hello"
`

func TestRunReplay(t *testing.T) {
	t.Parallel()
	script, err := parseReplayScript([]byte(replayYAML))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runReplay(&out, config.Default(), script))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "1\tf1\tnone", lines[0])
	assert.Equal(t, "2\tf1\tappeared\tregular-prompt", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "3\tf1\tnone\tcommand-prompt /fix \"Fix any grammar"), lines[2])
	assert.Equal(t, "4\tf1\tcommand-in-progress\tvoice-input /voice", lines[3])
	assert.Equal(t, "5\tf1\tdisappeared", lines[4])
	assert.Equal(t, "6\tfocus\tf2", lines[5])
	assert.Equal(t, "7\tf2\tnone", lines[6])
	assert.Equal(t, "8\tf2\tnone", lines[7])
	assert.Equal(t, "9\tf2\tnone", lines[8])
}

func TestRunReplayDisabledTrigger(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Trigger.Enabled = false
	script, err := parseReplayScript([]byte("events:\n  - field: f\n    text: \"@gemini hi\"\n"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runReplay(&out, cfg, script))
	assert.Equal(t, "1\tf\tnone\n", out.String())
}

func TestParseReplayScriptRejectsEmpty(t *testing.T) {
	t.Parallel()
	_, err := parseReplayScript([]byte("package: x\n"))
	require.Error(t, err)
}

func TestRunGenerateRecordsHistory(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"**Thanks** so much!"}]},"finishReason":"STOP"}]}`)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Gemini.BaseURL = srv.URL
	cfg.Gemini.APIKey = "test-key"
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	a := &app{cfg: cfg}

	var out bytes.Buffer
	opts := &generateOptions{pkg: "com.whatsapp", record: true}
	require.NoError(t, runGenerate(context.Background(), &out, a, opts, "ok @gemini say thanks"))
	assert.Equal(t, "Thanks so much!\n", out.String())

	sent := gjson.Get(body, "contents.0.parts.0.text").String()
	assert.Contains(t, sent, "WhatsApp")
	assert.Contains(t, sent, "User request: say thanks")

	db, err := store.Open(cfg.History.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	items, err := db.History(store.HistoryOptions{}).All(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "say thanks", items[0].Prompt)
	assert.Equal(t, "Thanks so much!", items[0].Response)
	assert.Equal(t, "whatsapp", items[0].Context)
}

func TestRunGenerateWithoutKey(t *testing.T) {
	cfg := config.Default()
	a := &app{cfg: cfg}
	err := runGenerate(context.Background(), io.Discard, a, &generateOptions{}, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvAPIKey)
}

func TestPrintConfigMasksSecrets(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Gemini.APIKey = "AIzaSyVerySecretValue1234"
	cfg.Gemini.APIKeys = []string{"another-secret-key-5678"}

	var out bytes.Buffer
	require.NoError(t, printConfig(&out, cfg))
	assert.NotContains(t, out.String(), "VerySecret")
	assert.NotContains(t, out.String(), "another-secret")
	assert.Contains(t, out.String(), "AIza")
	assert.Equal(t, "AIzaSyVerySecretValue1234", cfg.Gemini.APIKey)
}
