// Package speech coordinates optional voice input and output for a chat
// view. Platform synthesis and recognition are behind small driver
// interfaces; a missing capability degrades to a no-op rather than an error
// at speak time, and the bridge enforces the single-utterance and
// single-recognition rules so drivers never see overlapping work.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrRecognitionUnavailable is returned by StartListening when no recognizer
// driver is configured. Callers should hide or disable the voice-input
// affordance when CanListen reports false.
var ErrRecognitionUnavailable = errors.New("speech recognition unavailable")

// UtteranceEvents carries the callbacks a Synthesizer fires for one
// utterance. Exactly one of OnEnd or OnError fires for an utterance that is
// not cancelled; a cancelled utterance fires no further events.
type UtteranceEvents struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Synthesizer is a voice-output driver. Implementations queue at most one
// utterance; Cancel stops the current one, after which its events must not
// fire.
type Synthesizer interface {
	Speak(ctx context.Context, text string, ev UtteranceEvents) error
	Cancel()
}

// RecognitionEvents carries the callbacks a Recognizer fires for one
// single-result listening attempt.
type RecognitionEvents struct {
	OnResult func(transcript string)
	OnError  func(error)
	OnEnd    func()
}

// Recognizer is a voice-input driver for single-result recognition. Stop
// releases the capture resource; after Stop no further events fire.
type Recognizer interface {
	Start(ctx context.Context, ev RecognitionEvents) error
	Stop()
}

// Bridge owns the speaking and listening state for one chat view. At most
// one utterance and one recognition may be active at a time; starting a new
// utterance cancels the previous one first. Bridge is safe for concurrent
// use and implements chat.Speaker.
type Bridge struct {
	synth        Synthesizer
	rec          Recognizer
	log          *slog.Logger
	onTranscript func(string)
	onNotice     func(error)

	mu        sync.Mutex
	enabled   bool
	speaking  bool
	listening bool
	gen       int64
	closed    bool
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithLogger sets the bridge's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithTranscriptFunc registers the callback receiving recognized
// transcripts. The bridge stops listening before delivering a transcript.
func WithTranscriptFunc(fn func(string)) BridgeOption {
	return func(b *Bridge) { b.onTranscript = fn }
}

// WithNoticeFunc registers the callback for transient recognition-error
// notices. Synthesis errors are not surfaced here; they only stop the
// speaking indicator.
func WithNoticeFunc(fn func(error)) BridgeOption {
	return func(b *Bridge) { b.onNotice = fn }
}

// WithVoiceOutput sets the initial voice-output toggle. Defaults to enabled.
func WithVoiceOutput(enabled bool) BridgeOption {
	return func(b *Bridge) { b.enabled = enabled }
}

// NewBridge builds a bridge over the given drivers. Either driver may be
// nil, in which case the corresponding capability is absent.
func NewBridge(synth Synthesizer, rec Recognizer, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		synth:   synth,
		rec:     rec,
		log:     slog.Default(),
		enabled: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CanSpeak reports whether a synthesizer driver is available.
func (b *Bridge) CanSpeak() bool { return b.synth != nil }

// CanListen reports whether a recognizer driver is available.
func (b *Bridge) CanListen() bool { return b.rec != nil }

// SetVoiceOutput toggles voice output. Disabling while an utterance is in
// flight cancels it.
func (b *Bridge) SetVoiceOutput(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
	if !enabled {
		b.Stop()
	}
}

// VoiceOutput reports the current voice-output toggle.
func (b *Bridge) VoiceOutput() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Speaking reports whether an utterance is currently audible.
func (b *Bridge) Speaking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speaking
}

// Listening reports whether a recognition attempt is active.
func (b *Bridge) Listening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listening
}

// Speak sanitizes text and hands it to the synthesizer, cancelling any
// utterance already in flight so audio never overlaps. It is a no-op when
// voice output is disabled, no driver is present, or nothing speakable
// remains after sanitization.
func (b *Bridge) Speak(ctx context.Context, text string) error {
	b.mu.Lock()
	if b.closed || b.synth == nil || !b.enabled {
		b.mu.Unlock()
		return nil
	}
	clean := Sanitize(text)
	if clean == "" {
		b.mu.Unlock()
		return nil
	}
	b.gen++
	gen := b.gen
	b.speaking = false
	b.mu.Unlock()

	// Cancel before starting: a queued-but-not-yet-audible utterance must
	// also die here.
	b.synth.Cancel()

	ev := UtteranceEvents{
		OnStart: func() {
			b.mu.Lock()
			if gen == b.gen && !b.closed {
				b.speaking = true
			}
			b.mu.Unlock()
		},
		OnEnd: func() {
			b.mu.Lock()
			if gen == b.gen {
				b.speaking = false
			}
			b.mu.Unlock()
		},
		OnError: func(err error) {
			b.mu.Lock()
			if gen == b.gen {
				b.speaking = false
			}
			b.mu.Unlock()
			// Synthesis failures are non-critical: stop the indicator, stay
			// silent otherwise.
			b.log.Debug("speech.synthesis.fail", slog.String("err", err.Error()))
		},
	}
	if err := b.synth.Speak(ctx, clean, ev); err != nil {
		b.mu.Lock()
		if gen == b.gen {
			b.speaking = false
		}
		b.mu.Unlock()
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// Stop cancels the current utterance, if any, and clears the speaking state.
func (b *Bridge) Stop() {
	b.mu.Lock()
	b.gen++
	b.speaking = false
	synth := b.synth
	b.mu.Unlock()
	if synth != nil {
		synth.Cancel()
	}
}

// StartListening begins a single-result recognition attempt. Starting while
// already listening is a no-op. The listening state is cleared before any
// outcome is delivered, so the indicator can never stick after a result or
// an error.
func (b *Bridge) StartListening(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	if b.rec == nil {
		b.mu.Unlock()
		return ErrRecognitionUnavailable
	}
	if b.listening {
		b.mu.Unlock()
		return nil
	}
	b.listening = true
	b.mu.Unlock()

	ev := RecognitionEvents{
		OnResult: func(transcript string) {
			b.mu.Lock()
			b.listening = false
			cb := b.onTranscript
			b.mu.Unlock()
			b.rec.Stop()
			if cb != nil {
				cb(transcript)
			}
		},
		OnError: func(err error) {
			b.mu.Lock()
			b.listening = false
			notice := b.onNotice
			b.mu.Unlock()
			b.rec.Stop()
			b.log.Debug("speech.recognition.fail", slog.String("err", err.Error()))
			if notice != nil {
				notice(err)
			}
		},
		OnEnd: func() {
			b.mu.Lock()
			b.listening = false
			b.mu.Unlock()
		},
	}
	if err := b.rec.Start(ctx, ev); err != nil {
		b.mu.Lock()
		b.listening = false
		b.mu.Unlock()
		return fmt.Errorf("start listening: %w", err)
	}
	return nil
}

// StopListening abandons the current recognition attempt, if any.
func (b *Bridge) StopListening() {
	b.mu.Lock()
	b.listening = false
	rec := b.rec
	b.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}

// Close releases both directions. It is idempotent; after Close every
// operation is a no-op.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.gen++
	b.speaking = false
	b.listening = false
	synth, rec := b.synth, b.rec
	b.mu.Unlock()

	if synth != nil {
		synth.Cancel()
	}
	if rec != nil {
		rec.Stop()
	}
	return nil
}
