// Package responder defines how the reference backend produces assistant
// replies and content-task results. The real BrainMate generation services
// sit behind these interfaces; Static implementations ship for development
// and tests.
package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brainmate-ai/tutorchat/chat"
	"github.com/brainmate-ai/tutorchat/tutorhost"
	"github.com/brainmate-ai/tutorchat/tutors"
	"github.com/google/uuid"
)

// Responder generates one assistant reply for a student message, given the
// tutor and the conversation so far.
type Responder interface {
	Reply(ctx context.Context, tutor *tutors.Tutor, history []tutorhost.StoredMessage, content string, mode chat.Mode, language string) (string, error)
}

// ContentService handles the opaque content/voice task endpoints.
type ContentService interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
	Synthesize(ctx context.Context, text, voice string) (audioURL string, duration time.Duration, err error)
}

// Static is a deterministic Responder for development: replies are shaped
// by mode and reference the tutor's subject, with no external calls.
type Static struct{}

var _ Responder = Static{}

func (Static) Reply(ctx context.Context, tutor *tutors.Tutor, history []tutorhost.StoredMessage, content string, mode chat.Mode, language string) (string, error) {
	subject := tutor.Subject
	if subject == "" {
		subject = "this topic"
	}
	topic := strings.TrimSpace(content)
	switch mode {
	case chat.ModeLecture:
		return fmt.Sprintf("Let's take a structured look at %q. In %s, the key ideas are best built up step by step, starting from first principles.", topic, subject), nil
	case chat.ModeQuiz:
		return fmt.Sprintf("Quiz time. Based on %q: can you state the main concept in your own words, and give one example from %s?", topic, subject), nil
	case chat.ModeExamples:
		return fmt.Sprintf("Here are worked examples for %q, drawn from everyday %s.", topic, subject), nil
	default:
		return fmt.Sprintf("Good question about %q. In %s, the short answer is that it depends on the definitions we started from; let's unpack it together.", topic, subject), nil
	}
}

// StaticContent is a deterministic ContentService for development:
// translation is the identity and synthesis fabricates a clip whose
// duration is proportional to the text length.
type StaticContent struct {
	// BaseURL prefixes fabricated clip URLs. Defaults to a local placeholder.
	BaseURL string
}

var _ ContentService = StaticContent{}

func (s StaticContent) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	return text, nil
}

func (s StaticContent) Synthesize(ctx context.Context, text, voice string) (string, time.Duration, error) {
	base := s.BaseURL
	if base == "" {
		base = "https://voice.brainmate.local/clips"
	}
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	// Rough speaking rate of 180 words per minute.
	duration := time.Duration(words) * time.Minute / 180
	return fmt.Sprintf("%s/%s.mp3", strings.TrimRight(base, "/"), uuid.NewString()), duration, nil
}
