// Package deepgram implements voice.Recognizer over Deepgram's streaming
// websocket API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/misc"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/voice"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	defaultListenURL  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-2"
	defaultEncoding   = "linear16"
	defaultSampleRate = 16000
	defaultChunkSize  = 4096
	closeStreamFrame  = `{"type":"CloseStream"}`
)

// Config controls the websocket session.
type Config struct {
	APIKey      string
	ListenURL   string
	Model       string
	Language    string
	Encoding    string
	SampleRate  int
	Channels    int
	SmartFormat bool
	ChunkSize   int
}

// AudioSource opens the microphone stream. Closing the returned reader must
// unblock any pending Read.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Recognizer starts Deepgram streaming sessions.
type Recognizer struct {
	cfg    Config
	audio  AudioSource
	dialer *websocket.Dialer
}

// New returns a recognizer reading PCM audio from audio.
func New(cfg Config, audio AudioSource) *Recognizer {
	if strings.TrimSpace(cfg.ListenURL) == "" {
		cfg.ListenURL = defaultListenURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Encoding == "" {
		cfg.Encoding = defaultEncoding
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &Recognizer{cfg: cfg, audio: audio, dialer: websocket.DefaultDialer}
}

// NewFromConfig returns a recognizer for the voice.deepgram configuration
// block. Audio format settings keep their defaults.
func NewFromConfig(cfg config.DeepgramConfig, audio AudioSource) *Recognizer {
	return New(Config{
		APIKey:      cfg.APIKey,
		ListenURL:   cfg.BaseURL,
		Model:       cfg.Model,
		Language:    cfg.Language,
		SmartFormat: true,
	}, audio)
}

// Start dials Deepgram and begins streaming audio. Callbacks are delivered on
// the session's own goroutines.
func (r *Recognizer) Start(ctx context.Context, l voice.Listener) (voice.Recognition, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: deepgram api key is not configured", voice.ErrRecognitionUnavailable)
	}
	if r.audio == nil {
		return nil, fmt.Errorf("%w: no audio source", voice.ErrRecognitionUnavailable)
	}

	wsURL, err := buildListenURL(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", voice.ErrRecognitionUnavailable, err)
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := r.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: connect deepgram: %w", voice.ErrRecognitionUnavailable, err)
	}
	audio, err := r.audio.Open(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open audio: %w", voice.ErrRecognitionUnavailable, err)
	}
	log.WithFields(log.Fields{
		"model": r.cfg.Model,
		"key":   misc.MaskSecret(r.cfg.APIKey),
	}).Debug("deepgram: session started")

	s := &session{
		conn:      conn,
		audio:     audio,
		listener:  l,
		chunkSize: r.cfg.ChunkSize,
		done:      make(chan struct{}),
	}
	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		s.finish()
		_ = conn.Close()
		close(s.done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

type session struct {
	conn      *websocket.Conn
	audio     io.ReadCloser
	listener  voice.Listener
	chunkSize int
	agg       aggregator

	wg   sync.WaitGroup
	done chan struct{}

	stopping atomic.Bool
	closed   atomic.Bool
	stopOnce sync.Once

	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// Stop stops reading audio and asks Deepgram to flush its final results.
func (s *session) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		_ = s.audio.Close()
	})
	return nil
}

// Close tears the session down without delivering further callbacks.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		_ = s.Stop()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *session) writeLoop() {
	defer s.wg.Done()

	buf := make([]byte, s.chunkSize)
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			if werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				s.setErr(fmt.Errorf("send audio: %w", werr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.stopping.Load() {
				s.setErr(fmt.Errorf("read audio: %w", err))
			}
			break
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(closeStreamFrame)); err != nil {
		s.setErr(fmt.Errorf("close stream: %w", err))
	}
}

func (s *session) readLoop() {
	defer s.wg.Done()
	// Nothing more can be transcribed once the read side is gone.
	defer func() { _ = s.Stop() }()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.setErr(fmt.Errorf("read provider event: %w", err))
			}
			return
		}
		if !gjson.ValidBytes(payload) {
			continue
		}
		msg := gjson.ParseBytes(payload)

		if strings.EqualFold(msg.Get("type").String(), "Error") {
			text := strings.TrimSpace(msg.Get("message").String())
			if text == "" {
				text = strings.TrimSpace(msg.Get("description").String())
			}
			if text == "" {
				text = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(text))
			return
		}

		transcript := extractTranscript(msg)
		if transcript == "" {
			continue
		}
		if msg.Get("is_final").Bool() || msg.Get("speech_final").Bool() {
			s.agg.addFinal(transcript)
		} else {
			s.agg.setInterim(transcript)
		}
		if !s.closed.Load() {
			s.listener.OnPartial(s.agg.text())
		}
	}
}

// finish reports the outcome once both loops have exited.
func (s *session) finish() {
	if s.closed.Load() {
		return
	}
	text := s.agg.final()
	err := s.waitErr()
	if text == "" && err != nil {
		s.listener.OnError(fmt.Errorf("%w: %w", voice.ErrRecognitionUnavailable, err))
		return
	}
	if err != nil {
		log.WithError(err).Debug("deepgram: stream ended with error after transcript")
	}
	s.listener.OnFinal(text)
}

func (s *session) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	if benignClose(err, s.stopping.Load()) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// benignClose reports whether err is an expected end of the socket. Deepgram
// closes the connection once a stopped stream is flushed.
func benignClose(err error, stopping bool) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	case websocket.CloseAbnormalClosure:
		return stopping
	default:
		return false
	}
}

func extractTranscript(msg gjson.Result) string {
	if text := strings.TrimSpace(msg.Get("channel.alternatives.0.transcript").String()); text != "" {
		return text
	}
	return strings.TrimSpace(msg.Get("results.channels.0.alternatives.0.transcript").String())
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.ListenURL)
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	listenURL, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid deepgram listen url: %w", err)
	}
	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", cfg.Encoding)
	query.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	query.Set("channels", strconv.Itoa(cfg.Channels))
	query.Set("interim_results", "true")
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
