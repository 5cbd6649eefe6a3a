package chat

import (
	"log/slog"
	"time"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger sets the slog logger used by the client. Defaults to
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithPollInterval sets the resync poll interval. Defaults to 5 seconds.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithStudentID attaches an optional student identity to session creation.
func WithStudentID(id string) Option {
	return func(c *Client) { c.studentID = id }
}

// WithLanguage sets the language/locale preference carried on every send.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithSpeaker enables voice output for confirmed assistant replies.
func WithSpeaker(s Speaker) Option {
	return func(c *Client) { c.speaker = s }
}

// WithNotify registers a callback for user-visible notices (failed sends,
// failed session creation). The callback runs on the goroutine that observed
// the condition and must not block.
func WithNotify(fn func(Notice)) Option {
	return func(c *Client) { c.notify = fn }
}
