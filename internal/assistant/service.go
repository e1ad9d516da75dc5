package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/inject"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/monitor"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/providers/deepgram"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/runtime/executor"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/runtime/mainloop"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini/helpers"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/trigger"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/voice"
	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"
)

const (
	minInflightTTL = time.Minute
	historyTimeout = 5 * time.Second
)

// Options wires a Service. Only Config and Loop are required.
type Options struct {
	Config *config.Config
	Loop   *mainloop.Loop
	// Generator defaults to a Gemini executor built from Config and rebuilt on ApplyConfig.
	Generator  Generator
	Injector   *inject.Injector
	Overlay    Overlay
	History    HistoryRecorder
	Recognizer voice.Recognizer
	// Audio, when set without a Recognizer, backs a Deepgram recognizer built
	// from Config.Voice.Deepgram and rebuilt on ApplyConfig.
	Audio      deepgram.AudioSource
	VoiceSink  voice.Sink
}

// Service is the accessibility-event orchestrator. Its state is owned by the
// main loop; the exported methods hand work to it.
type Service struct {
	loop       *mainloop.Loop
	overlay    Overlay
	history    HistoryRecorder
	recognizer voice.Recognizer
	voiceSink  voice.Sink
	audio      deepgram.AudioSource
	ownsGen    bool
	ownsRec    bool

	cfg       *config.Config
	monitor   *monitor.Monitor
	extractor trigger.Extractor
	gen       Generator
	injector  *inject.Injector

	// inflight holds the keys of pending generations. Entries expire so a lost
	// completion cannot block a field forever.
	inflight *ttlcache.Cache[string, struct{}]

	target      *inject.Surface
	voice       *voice.Controller
	voiceTarget *inject.Surface
	voiceErr    error

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New returns a service bound to opts.Loop. The loop must be running for
// events to be processed.
func New(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errors.New("assistant: config is required")
	}
	if opts.Loop == nil {
		return nil, errors.New("assistant: main loop is required")
	}
	s := &Service{
		loop:       opts.Loop,
		overlay:    opts.Overlay,
		history:    opts.History,
		recognizer: opts.Recognizer,
		voiceSink:  opts.VoiceSink,
		audio:      opts.Audio,
		gen:        opts.Generator,
		injector:   opts.Injector,
	}
	if s.overlay == nil {
		s.overlay = nopOverlay{}
	}
	if s.gen == nil {
		s.ownsGen = true
	}
	if s.recognizer == nil && s.audio != nil {
		s.ownsRec = true
	}
	if s.injector == nil {
		s.injector = inject.New(inject.Options{})
	}
	s.monitor = monitor.New(monitor.Options{})
	s.applyConfig(opts.Config)

	s.inflight = ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](inflightTTL(opts.Config)),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go s.inflight.Start()

	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// inflightTTL is twice the worst case of a full retry run.
func inflightTTL(cfg *config.Config) time.Duration {
	g := cfg.Gemini
	retries := g.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	ttl := 2 * (g.ConnectTimeout + g.ReadTimeout + g.WriteTimeout) * time.Duration(retries)
	if ttl < minInflightTTL {
		ttl = minInflightTTL
	}
	return ttl
}

// HandleEvent queues a text-change notification. Events are processed in
// arrival order.
func (s *Service) HandleEvent(ev Event) error {
	return s.loop.Post(func() { s.handleEvent(ev) })
}

// FocusChanged queues a focus change to fieldID.
func (s *Service) FocusChanged(fieldID string) error {
	return s.loop.Post(func() {
		s.monitor.FocusChanged(fieldID)
		s.overlay.HideButton()
		s.clearTarget()
	})
}

// Send runs the generation for the field currently holding the trigger. It
// returns once the request is started; the result is injected later on the
// main loop.
func (s *Service) Send(ctx context.Context) error {
	var err error
	if errDo := s.loop.Do(ctx, func() { err = s.send() }); errDo != nil {
		return errDo
	}
	return err
}

// StartVoice opens a voice session for the field currently holding the trigger.
func (s *Service) StartVoice(ctx context.Context) error {
	var err error
	if errDo := s.loop.Do(ctx, func() { err = s.startVoice() }); errDo != nil {
		return errDo
	}
	return err
}

// Voice runs fn against the active voice session on the main loop.
func (s *Service) Voice(ctx context.Context, fn func(c *voice.Controller) error) error {
	var err error
	errDo := s.loop.Do(ctx, func() {
		if s.voice == nil {
			err = ErrNoVoiceSession
			return
		}
		err = fn(s.voice)
	})
	if errDo != nil {
		return errDo
	}
	return err
}

// ApplyConfig queues a configuration change.
func (s *Service) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	return s.loop.Post(func() { s.applyConfig(cfg) })
}

// Stop abandons pending work and releases every held node.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.inflight.Stop()
		_ = s.loop.Post(func() {
			if s.voice != nil {
				s.voice.Close()
			}
			s.clearTarget()
		})
	})
}

func (s *Service) applyConfig(cfg *config.Config) {
	s.cfg = cfg
	s.monitor.SetOptions(monitor.Options{
		Trigger:      cfg.Trigger.Pattern,
		VoiceCommand: cfg.Trigger.VoiceCommand,
		SelfPackage:  cfg.Trigger.SelfPackage,
		Disabled:     !cfg.Trigger.Enabled,
	})
	s.extractor = trigger.Extractor{VoiceCommand: cfg.Trigger.VoiceCommand, Commands: cfg.CommandTable()}
	s.injector.SetComposerPackages(cfg.Trigger.ComposerPackages)
	if s.ownsGen {
		s.gen = executor.NewGeminiExecutor(cfg)
	}
	if s.ownsRec {
		s.recognizer = deepgram.NewFromConfig(cfg.Voice.Deepgram, s.audio)
	}
	log.WithFields(log.Fields{
		"trigger":  cfg.Trigger.Pattern,
		"enabled":  cfg.Trigger.Enabled,
		"commands": len(cfg.Commands),
	}).Debug("assistant: configuration applied")
}

func (s *Service) handleEvent(ev Event) {
	snap := ev.Snapshot
	edge := s.monitor.Observe(snap)
	state := s.monitor.State()
	accepted := snap.Editable && snap.Package != s.cfg.Trigger.SelfPackage

	if accepted && state.TriggerPresent && state.FieldID == snap.FieldID {
		s.setTarget(ev.Surface)
	} else {
		s.releaseSurface(ev.Surface)
		// The focused field no longer holds the trigger, or focus moved to a
		// field without it: the affordance must not point at the old field.
		if accepted && edge != monitor.EdgeDisappeared && s.target != nil {
			s.overlay.HideButton()
			s.clearTarget()
		}
	}

	switch edge {
	case monitor.EdgeAppeared:
		log.WithField("field", snap.FieldID).Debug("assistant: trigger appeared")
		s.overlay.ShowButton(snap.FieldID)
	case monitor.EdgeDisappeared:
		s.overlay.HideButton()
		s.clearTarget()
	case monitor.EdgeCommandInProgress:
		if err := s.startVoice(); err != nil {
			log.WithError(err).Debug("assistant: voice command not started")
		}
	}
}

func (s *Service) send() error {
	if s.target == nil || s.target.Current == nil {
		return ErrNoPrompt
	}
	surface := *s.target
	fieldID := surface.Current.ID()
	if s.inflight.Get(fieldID) != nil {
		return ErrRequestInFlight
	}

	// The user may have kept typing since the trigger appeared.
	intent := s.extractor.ExtractFromText(surface.Current.Text(), s.cfg.Trigger.Pattern)
	switch intent.Kind {
	case trigger.KindNone:
		return ErrNoPrompt
	case trigger.KindEmptyContent:
		s.overlay.Notify(fmt.Sprintf("Add your text after %s", intent.Command))
		return fmt.Errorf("%w: %s", ErrEmptyCommand, intent.Command)
	case trigger.KindVoiceInput:
		return s.startVoice()
	}
	if strings.TrimSpace(intent.Text) == "" {
		s.overlay.Notify("Type a prompt after " + s.cfg.Trigger.Pattern)
		return ErrNoPrompt
	}
	if !s.gen.HasAPIKey() {
		s.overlay.Notify("Set your Gemini API key first")
		return ErrMissingAPIKey
	}

	promptCtx := gemini.DetectContext(surface.Package)
	userPrompt := gemini.WithLanguage(intent.Text, s.cfg.Language.Preferred, s.cfg.Language.AutoTranslate)
	req := executor.GenerationRequest{Prompt: gemini.BuildContextualPrompt(promptCtx, userPrompt)}

	s.inflight.Set(fieldID, struct{}{}, ttlcache.DefaultTTL)
	s.overlay.SetLoading(true)
	log.WithFields(log.Fields{
		"field":   fieldID,
		"kind":    intent.Kind,
		"context": promptCtx,
		"chars":   len(intent.Text),
	}).Debug("assistant: generation started")

	gen := s.gen
	go func() {
		res, err := gen.Generate(s.ctx, req)
		if errPost := s.loop.Post(func() { s.finishSend(fieldID, intent.Text, promptCtx, res, err) }); errPost != nil {
			log.WithError(errPost).Debug("assistant: generation result dropped")
		}
	}()
	return nil
}

func (s *Service) finishSend(fieldID, prompt string, promptCtx gemini.Context, res executor.GenerationResult, err error) {
	s.inflight.Delete(fieldID)
	s.overlay.SetLoading(false)
	if err != nil {
		s.overlay.Notify(userMessage(err))
		return
	}
	if s.target == nil || s.target.Current == nil || s.target.Current.ID() != fieldID {
		log.WithField("field", fieldID).Warn("assistant: field changed before the response arrived, discarding")
		s.overlay.Notify("The field changed, response discarded")
		return
	}
	if err := s.injector.Inject(res.Text, *s.target); err != nil {
		log.WithError(err).Warn("assistant: inject failed")
		s.overlay.Notify(userMessage(err))
		return
	}
	s.overlay.HideButton()
	s.record(prompt, res, promptCtx)
	log.WithFields(log.Fields{
		"field":    fieldID,
		"attempts": res.Attempts,
		"preview":  helpers.Preview(res.Text, 40),
	}).Debug("assistant: response injected")
}

func (s *Service) startVoice() error {
	if s.voice != nil {
		return ErrRequestInFlight
	}
	if s.target == nil || s.target.Current == nil {
		return ErrNoPrompt
	}
	if s.recognizer == nil {
		s.overlay.Notify("Speech recognition not available")
		return voice.ErrRecognitionUnavailable
	}
	if !s.gen.HasAPIKey() {
		s.overlay.Notify("Set your Gemini API key first")
		return ErrMissingAPIKey
	}

	surface := *s.target
	s.voiceTarget = &surface
	pattern := s.cfg.Trigger.Pattern
	ctrl := voice.NewController(voice.Options{
		Recognizer:      s.recognizer,
		Scheduler:       s.loop,
		Sink:            voiceSink{s: s},
		Send:            s.voiceSender(),
		Deliver:         func(out string) error { return s.injector.ReplaceVoiceTrigger(out, surface.Current, pattern) },
		StopTimeout:     s.cfg.Voice.StopTimeout,
		MinSpeechLength: s.cfg.Voice.MinSpeechLength,
	})
	s.voice = ctrl
	s.overlay.HideButton()
	if err := ctrl.Start(s.ctx); err != nil {
		ctrl.Close()
		return err
	}
	return nil
}

// voiceSender snapshots the settings the voice flow needs off the main loop.
func (s *Service) voiceSender() voice.SendFunc {
	gen := s.gen
	lang, auto := s.cfg.Language.Preferred, s.cfg.Language.AutoTranslate
	return func(ctx context.Context, transcript string) (string, error) {
		prompt := gemini.WithLanguage(gemini.BuildVoicePrompt(transcript), lang, auto)
		req := executor.GenerationRequest{Prompt: gemini.BuildContextualPrompt(gemini.ContextGeneral, prompt)}
		res, err := gen.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		if errPost := s.loop.Post(func() { s.record(transcript, res, gemini.ContextGeneral) }); errPost != nil {
			log.WithError(errPost).Debug("assistant: history entry dropped")
		}
		return res.Text, nil
	}
}

func (s *Service) record(prompt string, res executor.GenerationResult, promptCtx gemini.Context) {
	if s.history == nil {
		return
	}
	history := s.history
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if _, _, err := history.Add(ctx, prompt, res.Text, string(promptCtx), res.Model); err != nil {
			log.WithError(err).Warn("assistant: history entry not saved")
		}
	}()
}

func (s *Service) voiceClosed() {
	if s.voiceTarget != nil {
		held := *s.voiceTarget
		s.voiceTarget = nil
		s.releaseUnlessHeld(held, s.target)
	}
	s.voice = nil
	s.voiceErr = nil
}

type voiceSink struct{ s *Service }

func (v voiceSink) VoiceStateChanged(snap voice.Snapshot) {
	if v.s.voiceSink != nil {
		v.s.voiceSink.VoiceStateChanged(snap)
	}
	if snap.Err != nil && snap.Err != v.s.voiceErr {
		v.s.overlay.Notify(userMessage(snap.Err))
	}
	v.s.voiceErr = snap.Err
	if snap.State == voice.StateClosed {
		v.s.voiceClosed()
	}
}

// setTarget keeps surface as the trigger field, releasing the previous handles.
func (s *Service) setTarget(surface inject.Surface) {
	if s.target != nil {
		s.releaseUnlessHeld(*s.target, &surface)
	}
	s.target = &surface
}

func (s *Service) clearTarget() {
	if s.target == nil {
		return
	}
	old := *s.target
	s.target = nil
	s.releaseSurface(old)
}

// releaseSurface releases the nodes of surface that neither the target nor
// the voice session holds.
func (s *Service) releaseSurface(surface inject.Surface) {
	s.releaseUnlessHeld(surface, s.target)
}

func (s *Service) releaseUnlessHeld(surface inject.Surface, keep *inject.Surface) {
	for _, n := range []inject.Node{surface.Current, surface.Root} {
		if n == nil || s.holds(keep, n) || s.holds(s.voiceTarget, n) {
			continue
		}
		n.Release()
	}
}

func (s *Service) holds(surface *inject.Surface, n inject.Node) bool {
	return surface != nil && (surface.Current == n || surface.Root == n)
}

// userMessage turns an error into the short text shown to the user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, executor.ErrTransient):
		return "Gemini is busy, try again in a moment"
	case errors.Is(err, executor.ErrEmptyResponse):
		return "Gemini returned an empty response"
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	case errors.Is(err, executor.ErrPermanent):
		var apiErr *executor.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return "Request failed: " + helpers.Preview(apiErr.Message, 80)
		}
		return "Request failed"
	case errors.Is(err, inject.ErrFieldNotEditable), errors.Is(err, inject.ErrFieldNotFound),
		errors.Is(err, inject.ErrWriteFailed), errors.Is(err, inject.ErrTriggerNotFound):
		return "Couldn't insert the text into the field"
	case errors.Is(err, voice.ErrNoSpeechDetected):
		return "No speech detected, try again"
	case errors.Is(err, voice.ErrRecognitionUnavailable):
		return "Speech recognition not available"
	default:
		return "Something went wrong"
	}
}
