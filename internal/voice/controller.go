package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultStopTimeout bounds the wait for a final result after Stop.
	DefaultStopTimeout = 2 * time.Second
	// DefaultMinSpeechLength is the shortest partial accepted as a transcript.
	DefaultMinSpeechLength = 3
)

var errNoSender = errors.New("voice: no sender configured")

// Options wires a Controller to its collaborators.
type Options struct {
	Recognizer      Recognizer
	Scheduler       Scheduler
	Sink            Sink
	Send            SendFunc
	Deliver         DeliverFunc
	StopTimeout     time.Duration
	MinSpeechLength int
}

// Controller is the voice session state machine:
//
//	Ready -> Recording -> Previewing -> Sending -> Closed
//
// Previewing may re-enter Recording to append more speech, and a failed send
// returns to Previewing with the transcript intact. Close is valid from every
// state. All methods must be called on the scheduler goroutine; recognizer and
// sender results are posted back to it.
type Controller struct {
	opts Options

	state      State
	transcript string
	partial    string
	stopping   bool
	appending  bool
	output     string
	err        error

	// token identifies the current recognition or send. Callbacks carrying an
	// older token are ignored.
	token       uint64
	recognition Recognition
	cancelRec   context.CancelFunc
	stopTimer   *time.Timer
	cancelSend  context.CancelFunc
}

// NewController returns a controller in the Ready state.
func NewController(opts Options) *Controller {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.MinSpeechLength <= 0 {
		opts.MinSpeechLength = DefaultMinSpeechLength
	}
	return &Controller{opts: opts}
}

// State returns the current phase.
func (c *Controller) State() State { return c.state }

// Snapshot returns the renderable session state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		State:      c.state,
		Transcript: c.transcript,
		Partial:    c.partial,
		Stopping:   c.stopping,
		Appending:  c.appending,
		Output:     c.output,
		Err:        c.err,
	}
}

// Start begins recording from Ready.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.expect(StateReady, "start"); err != nil {
		return err
	}
	return c.record(ctx, false)
}

// AddMore records more speech from Previewing and appends it to the transcript.
func (c *Controller) AddMore(ctx context.Context) error {
	if err := c.expect(StatePreviewing, "add more"); err != nil {
		return err
	}
	return c.record(ctx, true)
}

// Stop ends audio capture. The session moves to Previewing when the final
// result arrives, or when the stop timeout fires with a usable partial.
func (c *Controller) Stop() error {
	if err := c.expect(StateRecording, "stop"); err != nil {
		return err
	}
	if c.stopping {
		return nil
	}
	c.stopping = true
	token := c.token
	c.stopTimer = time.AfterFunc(c.opts.StopTimeout, func() {
		c.post(func() { c.handleStopTimeout(token) })
	})
	if err := c.recognition.Stop(); err != nil {
		log.WithError(err).Warn("voice: recognizer stop failed, using last partial")
		c.finishRecording(fallbackPartial(c.partial, c.opts.MinSpeechLength))
		return nil
	}
	c.publish()
	return nil
}

// Edit replaces the transcript while previewing.
func (c *Controller) Edit(text string) error {
	if err := c.expect(StatePreviewing, "edit"); err != nil {
		return err
	}
	c.transcript = text
	c.publish()
	return nil
}

// Send submits the edited transcript. On success the output is delivered and
// the session closes; on failure the session returns to Previewing.
func (c *Controller) Send(ctx context.Context, edited string) error {
	if err := c.expect(StatePreviewing, "send"); err != nil {
		return err
	}
	if c.opts.Send == nil {
		return errNoSender
	}
	transcript := strings.TrimSpace(edited)
	if transcript == "" {
		c.err = ErrNoSpeechDetected
		c.publish()
		return ErrNoSpeechDetected
	}

	c.transcript = transcript
	c.state = StateSending
	c.err = nil
	c.token++
	token := c.token
	sendCtx, cancel := context.WithCancel(ctx)
	c.cancelSend = cancel
	c.publish()

	send := c.opts.Send
	go func() {
		out, err := send(sendCtx, transcript)
		c.post(func() { c.handleSendResult(token, out, err) })
	}()
	return nil
}

// Close ends the session from any state, stopping recording and abandoning
// any in-flight send.
func (c *Controller) Close() {
	if c.state == StateClosed {
		return
	}
	c.releaseRecognition()
	if c.cancelSend != nil {
		c.cancelSend()
		c.cancelSend = nil
	}
	c.token++
	c.state = StateClosed
	c.stopping = false
	c.appending = false
	c.publish()
}

func (c *Controller) expect(want State, op string) error {
	if c.state == StateClosed {
		return ErrSessionClosed
	}
	if c.state != want {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, c.state)
	}
	return nil
}

func (c *Controller) record(ctx context.Context, appending bool) error {
	if c.opts.Recognizer == nil {
		c.err = ErrRecognitionUnavailable
		c.publish()
		return ErrRecognitionUnavailable
	}
	c.token++
	recCtx, cancel := context.WithCancel(ctx)
	rec, err := c.opts.Recognizer.Start(recCtx, &sessionListener{c: c, token: c.token})
	if err != nil {
		cancel()
		if !errors.Is(err, ErrRecognitionUnavailable) {
			err = fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
		}
		c.err = err
		c.publish()
		return err
	}

	c.recognition = rec
	c.cancelRec = cancel
	c.state = StateRecording
	c.partial = ""
	c.stopping = false
	c.appending = appending
	c.err = nil
	c.publish()
	return nil
}

func (c *Controller) handlePartial(token uint64, text string) {
	if token != c.token || c.state != StateRecording {
		return
	}
	if text = strings.TrimSpace(text); text == "" {
		return
	}
	c.partial = text
	c.publish()
}

func (c *Controller) handleFinal(token uint64, text string) {
	if token != c.token || c.state != StateRecording {
		return
	}
	c.finishRecording(resolveFinal(text, c.partial, c.opts.MinSpeechLength))
}

func (c *Controller) handleError(token uint64, err error) {
	if token != c.token || c.state != StateRecording {
		return
	}
	if !errors.Is(err, ErrNoSpeechDetected) && !errors.Is(err, ErrRecognitionUnavailable) {
		err = fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
	}
	c.finishRecording("", err)
}

func (c *Controller) handleStopTimeout(token uint64) {
	if token != c.token || c.state != StateRecording || !c.stopping {
		return
	}
	log.WithField("partial_chars", len(c.partial)).Warn("voice: no final result before timeout, using last partial")
	c.finishRecording(fallbackPartial(c.partial, c.opts.MinSpeechLength))
}

func (c *Controller) finishRecording(text string, err error) {
	c.releaseRecognition()
	appending := c.appending
	c.stopping = false
	c.appending = false
	c.partial = ""

	if err != nil {
		c.err = err
		if appending {
			c.state = StatePreviewing
		} else {
			c.state = StateReady
		}
		c.publish()
		return
	}

	if appending {
		c.transcript = appendTranscript(c.transcript, text)
	} else {
		c.transcript = text
	}
	c.err = nil
	c.state = StatePreviewing
	c.publish()
}

func (c *Controller) handleSendResult(token uint64, out string, err error) {
	if token != c.token || c.state != StateSending {
		return
	}
	if c.cancelSend != nil {
		c.cancelSend()
		c.cancelSend = nil
	}
	if err == nil && c.opts.Deliver != nil {
		err = c.opts.Deliver(out)
	}
	if err != nil {
		log.WithError(err).Debug("voice: send failed, back to preview")
		c.err = err
		c.state = StatePreviewing
		c.publish()
		return
	}
	c.output = out
	c.err = nil
	c.state = StateClosed
	c.token++
	c.publish()
}

// releaseRecognition stops the timeout and frees the recognizer. Later
// callbacks from it are dropped by the token bump.
func (c *Controller) releaseRecognition() {
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	if c.cancelRec != nil {
		c.cancelRec()
		c.cancelRec = nil
	}
	if c.recognition != nil {
		if err := c.recognition.Close(); err != nil {
			log.WithError(err).Debug("voice: recognizer close")
		}
		c.recognition = nil
	}
	c.token++
}

func (c *Controller) post(fn func()) {
	if c.opts.Scheduler == nil {
		return
	}
	if err := c.opts.Scheduler.Post(fn); err != nil {
		log.WithError(err).Debug("voice: dropping callback")
	}
}

func (c *Controller) publish() {
	if c.opts.Sink != nil {
		c.opts.Sink.VoiceStateChanged(c.Snapshot())
	}
}

type sessionListener struct {
	c     *Controller
	token uint64
}

func (l *sessionListener) OnPartial(text string) {
	l.c.post(func() { l.c.handlePartial(l.token, text) })
}

func (l *sessionListener) OnFinal(text string) {
	l.c.post(func() { l.c.handleFinal(l.token, text) })
}

func (l *sessionListener) OnError(err error) {
	l.c.post(func() { l.c.handleError(l.token, err) })
}
