package deepgram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/voice"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeSource struct {
	r *io.PipeReader
}

func (p pipeSource) Open(context.Context) (io.ReadCloser, error) { return p.r, nil }

type listener struct {
	partials chan string
	finals   chan string
	errs     chan error
}

func newListener() *listener {
	return &listener{
		partials: make(chan string, 16),
		finals:   make(chan string, 1),
		errs:     make(chan error, 1),
	}
}

func (l *listener) OnPartial(text string) { l.partials <- text }
func (l *listener) OnFinal(text string)   { l.finals <- text }
func (l *listener) OnError(err error)     { l.errs <- err }

func result(text string, final bool) string {
	return `{"type":"Results","is_final":` + strconv.FormatBool(final) +
		`,"channel":{"alternatives":[{"transcript":"` + text + `"}]}}`
}

func newServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitString(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestStreamingSessionDeliversPartialsAndFinal(t *testing.T) {
	t.Parallel()
	type request struct {
		auth, model, encoding string
	}
	seen := make(chan request, 1)
	srv := newServer(t, func(conn *websocket.Conn, r *http.Request) {
		seen <- request{
			auth:     r.Header.Get("Authorization"),
			model:    r.URL.Query().Get("model"),
			encoding: r.URL.Query().Get("encoding"),
		}
		if mt, _, err := conn.ReadMessage(); err != nil || mt != websocket.BinaryMessage {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(result("hello", false)))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(result("hello world", true)))
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && strings.Contains(string(payload), "CloseStream") {
				break
			}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(result("again", true)))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	pr, pw := io.Pipe()
	rec := New(Config{APIKey: "secret", ListenURL: srv.URL + "/v1/listen"}, pipeSource{r: pr})
	l := newListener()
	recognition, err := rec.Start(context.Background(), l)
	require.NoError(t, err)
	defer recognition.Close()

	go func() { _, _ = pw.Write([]byte("pcm-frames")) }()

	waitString(t, l.partials, "hello world")
	require.NoError(t, recognition.Stop())

	select {
	case final := <-l.finals:
		assert.Equal(t, "hello world again", final)
	case err := <-l.errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no final result")
	}

	got := <-seen
	assert.Equal(t, "Token secret", got.auth)
	assert.Equal(t, "nova-2", got.model)
	assert.Equal(t, "linear16", got.encoding)
}

func TestStreamingSessionReportsProviderError(t *testing.T) {
	t.Parallel()
	srv := newServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","message":"bad model"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	pr, _ := io.Pipe()
	rec := New(Config{APIKey: "k", ListenURL: srv.URL}, pipeSource{r: pr})
	l := newListener()
	recognition, err := rec.Start(context.Background(), l)
	require.NoError(t, err)
	defer recognition.Close()

	select {
	case err := <-l.errs:
		assert.ErrorIs(t, err, voice.ErrRecognitionUnavailable)
		assert.Contains(t, err.Error(), "bad model")
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestCloseSuppressesCallbacks(t *testing.T) {
	t.Parallel()
	srv := newServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	pr, _ := io.Pipe()
	rec := New(Config{APIKey: "k", ListenURL: srv.URL}, pipeSource{r: pr})
	l := newListener()
	recognition, err := rec.Start(context.Background(), l)
	require.NoError(t, err)
	require.NoError(t, recognition.Close())

	assert.Empty(t, l.finals)
	assert.Empty(t, l.errs)
}

func TestStartWithoutAPIKey(t *testing.T) {
	t.Parallel()
	pr, _ := io.Pipe()
	_, err := New(Config{}, pipeSource{r: pr}).Start(context.Background(), newListener())
	assert.ErrorIs(t, err, voice.ErrRecognitionUnavailable)

	_, err = New(Config{APIKey: "k"}, nil).Start(context.Background(), newListener())
	assert.ErrorIs(t, err, voice.ErrRecognitionUnavailable)
}

func TestBuildListenURL(t *testing.T) {
	t.Parallel()
	cfg := New(Config{ListenURL: "https://api.deepgram.com/v1/listen/", Language: "en-US"}, nil).cfg
	got, err := buildListenURL(cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "wss://api.deepgram.com/v1/listen?"), got)
	for _, part := range []string{"model=nova-2", "encoding=linear16", "sample_rate=16000", "channels=1", "interim_results=true", "language=en-US"} {
		assert.Contains(t, got, part)
	}
}

func TestNewFromConfigCarriesSettings(t *testing.T) {
	t.Parallel()
	r := NewFromConfig(config.DeepgramConfig{
		APIKey:   "dg-key",
		BaseURL:  "http://localhost:8080/v1/listen",
		Model:    "nova-3",
		Language: "de",
	}, nil)
	assert.Equal(t, "dg-key", r.cfg.APIKey)

	got, err := buildListenURL(r.cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "ws://localhost:8080/v1/listen?"), got)
	for _, part := range []string{"model=nova-3", "language=de", "smart_format=true", "encoding=linear16"} {
		assert.Contains(t, got, part)
	}

	defaults := NewFromConfig(config.Default().Voice.Deepgram, nil)
	got, err = buildListenURL(defaults.cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, config.DefaultDeepgramURL+"?"), got)
	assert.Contains(t, got, "model="+config.DefaultDeepgramModel)
	assert.Contains(t, got, "language=en-US")
}

func TestAggregator(t *testing.T) {
	t.Parallel()
	var a aggregator
	a.setInterim("hel")
	assert.Equal(t, "hel", a.text())
	assert.Equal(t, "hel", a.final())

	a.addFinal("hello")
	a.setInterim("wor")
	assert.Equal(t, "hello wor", a.text())
	assert.Equal(t, "hello", a.final())
}
