package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Errors returned by the client for rejected operations.
var (
	ErrAlreadyStarted      = errors.New("client already started")
	ErrNegotiationInFlight = errors.New("session negotiation in flight")
	ErrPasswordNotExpected = errors.New("no password expected")
	ErrNotActive           = errors.New("session not active")
	ErrEmptyMessage        = errors.New("empty message")
	ErrSendInFlight        = errors.New("send already in flight")
)

// Speaker is the voice-output capability the client hands confirmed
// assistant replies to. speech.Bridge implements it; a nil Speaker disables
// playback entirely.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// Client owns the lifecycle of one negotiated chat session: the negotiation
// state machine, the single-flight send coordinator, the local message store
// and the background resync poller. It is safe for concurrent use.
type Client struct {
	backend      Backend
	tutorID      string
	studentID    string
	language     string
	pollInterval time.Duration
	log          *slog.Logger
	speaker      Speaker
	notify       func(Notice)

	store *Store

	mu          sync.Mutex
	state       SessionState
	tutor       *TutorDetails
	token       string
	negotiating bool
	sending     bool
	tempSeq     int64
	closed      bool
	pollCancel  context.CancelFunc
	pollDone    chan struct{}
}

// New constructs a client for a single tutor session. The session is not
// negotiated until Start is called.
func New(backend Backend, tutorID string, opts ...Option) *Client {
	c := &Client{
		backend:      backend,
		tutorID:      tutorID,
		pollInterval: 5 * time.Second,
		log:          slog.Default(),
		store:        &Store{},
		state:        StateUninitialized,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tutor returns the loaded tutor details, or nil before Start resolves them.
func (c *Client) Tutor() *TutorDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tutor == nil {
		return nil
	}
	t := *c.tutor
	return &t
}

// Token returns the negotiated session token, empty until StateActive.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Messages returns a snapshot of the conversation timeline.
func (c *Client) Messages() []Message { return c.store.Snapshot() }

// PendingSends returns the number of unresolved optimistic entries.
func (c *Client) PendingSends() int { return c.store.PendingCount() }

// Start drives the negotiator from StateUninitialized. If the tutor is
// password-gated the client parks in StateAwaitingPassword and the caller
// must follow up with SubmitPassword; otherwise Start negotiates the session
// and leaves the client in StateActive with the resync poller running.
//
// An unknown tutor moves the client to the terminal StateUnavailable. A
// transport failure leaves the state at StateUninitialized so the caller can
// retry manually; the client never retries on its own.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, st)
	}
	if c.negotiating {
		c.mu.Unlock()
		return ErrNegotiationInFlight
	}
	c.negotiating = true
	c.mu.Unlock()

	tutor, err := c.backend.Tutor(ctx, c.tutorID)

	c.mu.Lock()
	c.negotiating = false
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		if errors.Is(err, ErrTutorNotFound) {
			c.state = StateUnavailable
			c.mu.Unlock()
			c.log.Warn("tutor.lookup.miss", slog.String("tutor_id", c.tutorID))
			return err
		}
		c.mu.Unlock()
		c.log.Error("tutor.lookup.fail", slog.String("tutor_id", c.tutorID), slog.String("err", err.Error()))
		return fmt.Errorf("load tutor: %w", err)
	}
	c.tutor = tutor
	if tutor.RequiresPassword {
		c.state = StateAwaitingPassword
		c.mu.Unlock()
		c.log.Info("session.password.required", slog.String("tutor_id", c.tutorID))
		return nil
	}
	c.mu.Unlock()
	return c.negotiate(ctx, StateUninitialized)
}

// SubmitPassword verifies a password candidate for a gated tutor. A wrong
// password returns ErrInvalidPassword and keeps the client in
// StateAwaitingPassword for another attempt; success proceeds straight into
// session negotiation.
func (c *Client) SubmitPassword(ctx context.Context, candidate string) error {
	c.mu.Lock()
	if c.state != StateAwaitingPassword {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrPasswordNotExpected, st)
	}
	if c.negotiating {
		c.mu.Unlock()
		return ErrNegotiationInFlight
	}
	c.negotiating = true
	c.mu.Unlock()

	tutor, err := c.backend.VerifyPassword(ctx, c.tutorID, candidate)

	c.mu.Lock()
	c.negotiating = false
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, ErrInvalidPassword) {
			c.log.Info("session.password.rejected", slog.String("tutor_id", c.tutorID))
			return err
		}
		c.log.Error("session.password.fail", slog.String("err", err.Error()))
		return fmt.Errorf("verify password: %w", err)
	}
	c.tutor = tutor
	c.mu.Unlock()
	return c.negotiate(ctx, StateAwaitingPassword)
}

// negotiate performs the single guarded CreateSession call. fallback is the
// state restored when session creation fails, so a manual retry re-enters
// the machine where it left off.
func (c *Client) negotiate(ctx context.Context, fallback SessionState) error {
	c.mu.Lock()
	if c.negotiating {
		c.mu.Unlock()
		return ErrNegotiationInFlight
	}
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.negotiating = true
	c.state = StateNegotiating
	c.mu.Unlock()

	token, err := c.backend.CreateSession(ctx, c.tutorID, c.studentID)

	c.mu.Lock()
	c.negotiating = false
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = fallback
		c.mu.Unlock()
		c.log.Error("session.create.fail", slog.String("tutor_id", c.tutorID), slog.String("err", err.Error()))
		c.sendNotice(Notice{Kind: NoticeSessionFailed, Err: err})
		return fmt.Errorf("create session: %w", err)
	}
	c.token = token
	c.state = StateActive
	c.startPollerLocked()
	c.mu.Unlock()
	c.log.Info("session.negotiate.ok", slog.String("tutor_id", c.tutorID))
	return nil
}

// Send submits a student message. The optimistic entry is appended before
// the request is issued; on success it is replaced by the echoed user
// message and the assistant reply, on any failure it is removed and the
// error returned. Only one send may be outstanding at a time; a second
// attempt while one is pending returns ErrSendInFlight without touching the
// store or the network.
func (c *Client) Send(ctx context.Context, content string, mode Mode) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if mode == "" {
		mode = ModeChat
	}

	c.mu.Lock()
	if c.state != StateActive {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotActive, st)
	}
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	c.tempSeq++
	localID := fmt.Sprintf("temp-%d", c.tempSeq)
	token := c.token
	c.mu.Unlock()

	// The optimistic insert is observably ordered before the request so the
	// caller's view reflects the send immediately.
	c.store.Append(Message{LocalID: localID, Role: RoleUser, Content: trimmed, Optimistic: true})

	res, err := c.backend.Send(ctx, token, trimmed, mode, c.language)

	c.mu.Lock()
	c.sending = false
	closed := c.closed
	c.mu.Unlock()

	if closed {
		// The view was torn down mid-flight; drop the outcome quietly.
		c.store.RemoveOptimistic(localID)
		return nil
	}
	if err != nil {
		c.store.RemoveOptimistic(localID)
		c.log.Warn("send.fail", slog.String("err", err.Error()))
		c.sendNotice(Notice{Kind: NoticeSendFailed, Err: err})
		return fmt.Errorf("send message: %w", err)
	}

	c.store.ReplaceOptimistic(localID, res.UserMessage, res.AssistantMessage)
	c.log.Debug("send.ok",
		slog.Int64("user_msg_id", res.UserMessage.ID),
		slog.Int64("assistant_msg_id", res.AssistantMessage.ID))

	if c.speaker != nil && res.AssistantMessage.Content != "" {
		// Playback strictly follows reconciliation: content that could still
		// roll back is never spoken.
		if err := c.speaker.Speak(ctx, res.AssistantMessage.Content); err != nil {
			c.log.Debug("speak.fail", slog.String("err", err.Error()))
		}
	}
	return nil
}

// Close terminates the session view: stops the resync poller, cancels any
// in-flight speech and moves the client to StateTerminated. It is idempotent
// and never blocks on in-flight sends; their results are dropped when they
// resolve.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateTerminated
	cancel := c.pollCancel
	done := c.pollDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if c.speaker != nil {
		c.speaker.Stop()
	}
	c.log.Debug("session.terminated", slog.String("tutor_id", c.tutorID))
	return nil
}

// startPollerLocked launches the resync loop for the active session. The
// caller holds c.mu and has already set the token.
func (c *Client) startPollerLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.pollCancel = cancel
	done := make(chan struct{})
	c.pollDone = done
	go c.pollLoop(ctx, c.token, done)
}

// pollLoop re-fetches the server's message list on a fixed interval and
// merges it into the store. Individual poll failures are logged and ignored:
// resync is a background healing mechanism and self-corrects on the next
// tick.
func (c *Client) pollLoop(ctx context.Context, token string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		msgs, err := c.backend.Messages(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Debug("resync.fail", slog.String("err", err.Error()))
			continue
		}
		c.store.MergeFromServer(msgs)
	}
}

func (c *Client) sendNotice(n Notice) {
	if c.notify != nil {
		c.notify(n)
	}
}
