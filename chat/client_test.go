package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeBackend is a scripted Backend for driving the client state machine.
type fakeBackend struct {
	tutorFn   func(ctx context.Context, tutorID string) (*TutorDetails, error)
	verifyFn  func(ctx context.Context, tutorID, password string) (*TutorDetails, error)
	createFn  func(ctx context.Context, tutorID, studentID string) (string, error)
	listFn    func(ctx context.Context, token string) ([]Message, error)
	sendFn    func(ctx context.Context, token, content string, mode Mode, language string) (*SendResult, error)
	sendCalls atomic.Int32
	listCalls atomic.Int32
}

func (f *fakeBackend) Tutor(ctx context.Context, tutorID string) (*TutorDetails, error) {
	if f.tutorFn == nil {
		return &TutorDetails{ID: tutorID, Name: "Test Tutor"}, nil
	}
	return f.tutorFn(ctx, tutorID)
}

func (f *fakeBackend) VerifyPassword(ctx context.Context, tutorID, password string) (*TutorDetails, error) {
	if f.verifyFn == nil {
		return nil, errors.New("verify not scripted")
	}
	return f.verifyFn(ctx, tutorID, password)
}

func (f *fakeBackend) CreateSession(ctx context.Context, tutorID, studentID string) (string, error) {
	if f.createFn == nil {
		return "tok-1", nil
	}
	return f.createFn(ctx, tutorID, studentID)
}

func (f *fakeBackend) Messages(ctx context.Context, token string) ([]Message, error) {
	f.listCalls.Add(1)
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, token)
}

func (f *fakeBackend) Send(ctx context.Context, token, content string, mode Mode, language string) (*SendResult, error) {
	f.sendCalls.Add(1)
	if f.sendFn == nil {
		return nil, errors.New("send not scripted")
	}
	return f.sendFn(ctx, token, content, mode, language)
}

// fakeSpeaker records spoken text.
type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	stops  int
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeSpeaker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSpeaker) spokenCopy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func TestStartNegotiatesOpenTutor(t *testing.T) {
	c := New(&fakeBackend{}, "tut-1", WithPollInterval(time.Hour))
	defer c.Close()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("state = %s, want %s", got, StateActive)
	}
	if got := c.Token(); got != "tok-1" {
		t.Fatalf("token = %q, want %q", got, "tok-1")
	}
}

func TestStartUnknownTutorIsTerminal(t *testing.T) {
	b := &fakeBackend{
		tutorFn: func(ctx context.Context, tutorID string) (*TutorDetails, error) {
			return nil, ErrTutorNotFound
		},
	}
	c := New(b, "missing")
	defer c.Close()

	if err := c.Start(context.Background()); !errors.Is(err, ErrTutorNotFound) {
		t.Fatalf("Start error = %v, want ErrTutorNotFound", err)
	}
	if got := c.State(); got != StateUnavailable {
		t.Fatalf("state = %s, want %s", got, StateUnavailable)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartSessionCreateFailureAllowsManualRetry(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	b := &fakeBackend{
		createFn: func(ctx context.Context, tutorID, studentID string) (string, error) {
			if fail.Load() {
				return "", errors.New("boom")
			}
			return "tok-2", nil
		},
	}
	var notices []Notice
	var noticeMu sync.Mutex
	c := New(b, "tut-1",
		WithPollInterval(time.Hour),
		WithNotify(func(n Notice) {
			noticeMu.Lock()
			notices = append(notices, n)
			noticeMu.Unlock()
		}))
	defer c.Close()

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded despite session-creation failure")
	}
	if got := c.State(); got != StateUninitialized {
		t.Fatalf("state = %s after failure, want %s", got, StateUninitialized)
	}
	noticeMu.Lock()
	if len(notices) != 1 || notices[0].Kind != NoticeSessionFailed {
		t.Fatalf("notices = %+v, want one NoticeSessionFailed", notices)
	}
	noticeMu.Unlock()

	fail.Store(false)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("state = %s after retry, want %s", got, StateActive)
	}
}

func TestPasswordLoop(t *testing.T) {
	b := &fakeBackend{
		tutorFn: func(ctx context.Context, tutorID string) (*TutorDetails, error) {
			return &TutorDetails{ID: tutorID, RequiresPassword: true}, nil
		},
		verifyFn: func(ctx context.Context, tutorID, password string) (*TutorDetails, error) {
			if password != "right" {
				return nil, ErrInvalidPassword
			}
			return &TutorDetails{ID: tutorID, RequiresPassword: true}, nil
		},
	}
	c := New(b, "tut-1", WithPollInterval(time.Hour))
	defer c.Close()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.State(); got != StateAwaitingPassword {
		t.Fatalf("state = %s, want %s", got, StateAwaitingPassword)
	}

	if err := c.SubmitPassword(context.Background(), "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("SubmitPassword(wrong) = %v, want ErrInvalidPassword", err)
	}
	if got := c.State(); got != StateAwaitingPassword {
		t.Fatalf("state = %s after wrong password, want %s", got, StateAwaitingPassword)
	}

	if err := c.SubmitPassword(context.Background(), "right"); err != nil {
		t.Fatalf("SubmitPassword(right): %v", err)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("state = %s after correct password, want %s", got, StateActive)
	}
}

func TestSendHappyPathReconcilesAndSpeaks(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := &fakeBackend{
		sendFn: func(ctx context.Context, token, content string, mode Mode, language string) (*SendResult, error) {
			return &SendResult{
				UserMessage:      Message{ID: 10, Role: RoleUser, Content: content, CreatedAt: at},
				AssistantMessage: Message{ID: 11, Role: RoleAssistant, Content: "Gravity is...", CreatedAt: at.Add(time.Second)},
			}, nil
		},
	}
	speaker := &fakeSpeaker{}
	c := New(b, "tut-1", WithPollInterval(time.Hour), WithSpeaker(speaker))
	defer c.Close()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Send(context.Background(), "What is gravity?", ModeChat); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := c.Messages()
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(got), got)
	}
	if got[0].ID != 10 || got[1].ID != 11 {
		t.Errorf("message IDs = %d, %d; want 10, 11", got[0].ID, got[1].ID)
	}
	if n := c.PendingSends(); n != 0 {
		t.Errorf("pending sends = %d after resolution, want 0", n)
	}
	if spoken := speaker.spokenCopy(); len(spoken) != 1 || spoken[0] != "Gravity is..." {
		t.Errorf("spoken = %q, want the confirmed assistant reply", spoken)
	}
}

func TestSendFailureRollsBackOptimisticEntry(t *testing.T) {
	b := &fakeBackend{
		sendFn: func(ctx context.Context, token, content string, mode Mode, language string) (*SendResult, error) {
			return nil, errors.New("status 500")
		},
	}
	var notices []Notice
	var noticeMu sync.Mutex
	c := New(b, "tut-1",
		WithPollInterval(time.Hour),
		WithNotify(func(n Notice) {
			noticeMu.Lock()
			notices = append(notices, n)
			noticeMu.Unlock()
		}))
	defer c.Close()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Send(context.Background(), "What is gravity?", ModeChat); err == nil {
		t.Fatal("Send succeeded despite backend failure")
	}

	for _, msg := range c.Messages() {
		if msg.Content == "What is gravity?" {
			t.Fatalf("ghost message survived failed send: %+v", msg)
		}
	}
	if n := c.PendingSends(); n != 0 {
		t.Errorf("pending sends = %d after failure, want 0", n)
	}
	noticeMu.Lock()
	if len(notices) != 1 || notices[0].Kind != NoticeSendFailed {
		t.Fatalf("notices = %+v, want one NoticeSendFailed", notices)
	}
	noticeMu.Unlock()
}

func TestSendRejectsEmptyAndInactive(t *testing.T) {
	c := New(&fakeBackend{}, "tut-1", WithPollInterval(time.Hour))
	defer c.Close()

	if err := c.Send(context.Background(), "hello", ModeChat); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Send before Start = %v, want ErrNotActive", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Send(context.Background(), "   \t\n", ModeChat); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Send(whitespace) = %v, want ErrEmptyMessage", err)
	}
}

func TestSendSingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := &fakeBackend{
		sendFn: func(ctx context.Context, token, content string, mode Mode, language string) (*SendResult, error) {
			close(entered)
			<-release
			return &SendResult{
				UserMessage:      Message{ID: 1, Role: RoleUser, Content: content, CreatedAt: at},
				AssistantMessage: Message{ID: 2, Role: RoleAssistant, Content: "ok", CreatedAt: at.Add(time.Second)},
			}, nil
		},
	}
	c := New(b, "tut-1", WithPollInterval(time.Hour))
	defer c.Close()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Send(context.Background(), "first", ModeChat) }()
	<-entered

	if n := c.PendingSends(); n != 1 {
		t.Fatalf("pending sends = %d while in flight, want 1", n)
	}
	if err := c.Send(context.Background(), "second", ModeChat); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("second Send = %v, want ErrSendInFlight", err)
	}
	if n := c.PendingSends(); n != 1 {
		t.Fatalf("pending sends = %d after rejected send, want 1", n)
	}
	if n := b.sendCalls.Load(); n != 1 {
		t.Fatalf("backend send calls = %d, want 1", n)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if n := c.PendingSends(); n != 0 {
		t.Fatalf("pending sends = %d after resolution, want 0", n)
	}
}

func TestResyncMergesWithoutClobberingPendingSend(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	release := make(chan struct{})
	entered := make(chan struct{})
	b := &fakeBackend{
		listFn: func(ctx context.Context, token string) ([]Message, error) {
			return []Message{{ID: 1, Role: RoleSystem, Content: "welcome", CreatedAt: at}}, nil
		},
		sendFn: func(ctx context.Context, token, content string, mode Mode, language string) (*SendResult, error) {
			close(entered)
			<-release
			return &SendResult{
				UserMessage:      Message{ID: 2, Role: RoleUser, Content: content, CreatedAt: at.Add(time.Second)},
				AssistantMessage: Message{ID: 3, Role: RoleAssistant, Content: "reply", CreatedAt: at.Add(2 * time.Second)},
			}, nil
		},
	}
	c := New(b, "tut-1", WithPollInterval(10*time.Millisecond))
	defer c.Close()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sendDone := make(chan error, 1)
	go func() { sendDone <- c.Send(context.Background(), "pending question", ModeChat) }()
	<-entered

	// Let several resync ticks land while the send is in flight.
	start := b.listCalls.Load()
	deadline := time.After(2 * time.Second)
	for b.listCalls.Load() < start+3 {
		select {
		case <-deadline:
			t.Fatal("resync poller did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := c.Messages()
	last := got[len(got)-1]
	if !last.Optimistic || last.Content != "pending question" {
		t.Fatalf("resync clobbered the pending optimistic entry: %+v", got)
	}
	foundWelcome := false
	for _, msg := range got {
		if msg.ID == 1 {
			foundWelcome = true
		}
	}
	if !foundWelcome {
		t.Fatalf("server messages not merged: %+v", got)
	}

	close(release)
	if err := <-sendDone; err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestCloseStopsPollerAndDropsLateSend(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	b := &fakeBackend{
		sendFn: func(ctx context.Context, token, content string, mode Mode, language string) (*SendResult, error) {
			close(entered)
			<-release
			return nil, errors.New("too late anyway")
		},
	}
	speaker := &fakeSpeaker{}
	c := New(b, "tut-1", WithPollInterval(10*time.Millisecond), WithSpeaker(speaker))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sendDone := make(chan error, 1)
	go func() { sendDone <- c.Send(context.Background(), "doomed", ModeChat) }()
	<-entered

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := c.State(); got != StateTerminated {
		t.Fatalf("state = %s after Close, want %s", got, StateTerminated)
	}

	// A send resolving after teardown is dropped without error.
	close(release)
	if err := <-sendDone; err != nil {
		t.Fatalf("late send not dropped quietly: %v", err)
	}
	if n := c.PendingSends(); n != 0 {
		t.Fatalf("pending sends = %d after teardown, want 0", n)
	}

	// The poller must stop ticking once closed.
	settled := b.listCalls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := b.listCalls.Load(); got != settled {
		t.Fatalf("poller still ticking after Close: %d -> %d", settled, got)
	}

	speaker.mu.Lock()
	stops := speaker.stops
	speaker.mu.Unlock()
	if stops == 0 {
		t.Fatal("Close did not stop the speaker")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
