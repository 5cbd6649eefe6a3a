package speech

import (
	"context"
	"sync"
	"time"
)

// Clip is a synthesized audio clip: a URL to fetch it from plus its
// playback duration.
type Clip struct {
	AudioURL string
	Duration time.Duration
}

// SynthesisService produces an audio clip for a piece of text. The BrainMate
// voice endpoint (via backend.Client) is the canonical implementation.
type SynthesisService interface {
	Synthesize(ctx context.Context, text, voice string) (*Clip, error)
}

// Player renders a clip to the audio device, returning when playback
// finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
}

// WaitPlayer is a headless Player: it waits out the clip's duration without
// producing audio. Useful for terminals without an audio device and for
// tests.
type WaitPlayer struct{}

func (WaitPlayer) Play(ctx context.Context, clip *Clip) error {
	t := time.NewTimer(clip.Duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RemoteSynthesizer is a Synthesizer backed by a synthesis service and a
// player. Each Speak cancels the previous utterance; a cancelled utterance
// fires no further events.
type RemoteSynthesizer struct {
	svc    SynthesisService
	player Player
	voice  string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewRemoteSynthesizer builds a synthesizer over svc and player. A nil
// player defaults to WaitPlayer.
func NewRemoteSynthesizer(svc SynthesisService, player Player, voice string) *RemoteSynthesizer {
	if player == nil {
		player = WaitPlayer{}
	}
	return &RemoteSynthesizer{svc: svc, player: player, voice: voice}
}

// Speak starts synthesizing and playing text. The utterance runs detached
// from ctx so it can outlive the call; Cancel stops it.
func (r *RemoteSynthesizer) Speak(ctx context.Context, text string, ev UtteranceEvents) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(runCtx, text, ev)
	return nil
}

func (r *RemoteSynthesizer) run(ctx context.Context, text string, ev UtteranceEvents) {
	clip, err := r.svc.Synthesize(ctx, text, r.voice)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if ev.OnError != nil {
			ev.OnError(err)
		}
		return
	}
	if ev.OnStart != nil {
		ev.OnStart()
	}
	if err := r.player.Play(ctx, clip); err != nil {
		if ctx.Err() != nil {
			return
		}
		if ev.OnError != nil {
			ev.OnError(err)
		}
		return
	}
	if ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// Cancel stops the current utterance, if any.
func (r *RemoteSynthesizer) Cancel() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}
