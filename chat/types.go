package chat

import "time"

// SessionState is the lifecycle state of a chat session.
//
// Transitions:
//
//	uninitialized -> negotiating -> active -> terminated
//	uninitialized -> awaiting_password -> negotiating -> active -> terminated
//	uninitialized -> unavailable (tutor not found; terminal)
//
// A failed password verification loops back to awaiting_password. A failed
// session creation returns to the state preceding negotiation so the caller
// can retry manually.
type SessionState string

const (
	StateUninitialized    SessionState = "uninitialized"
	StateAwaitingPassword SessionState = "awaiting_password"
	StateNegotiating      SessionState = "negotiating"
	StateActive           SessionState = "active"
	StateTerminated       SessionState = "terminated"
	StateUnavailable      SessionState = "unavailable"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Mode selects what kind of response the tutor backend is asked to produce.
// It does not affect reconciliation; every mode shares the same send pipeline.
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeLecture  Mode = "lecture"
	ModeQuiz     Mode = "quiz"
	ModeExamples Mode = "examples"
)

// Resource is an external reference attached to an assistant message.
type Resource struct {
	Title string
	URL   string
}

// Metadata carries optional assistant-message embellishments.
type Metadata struct {
	// Suggestions are follow-up prompts the student may pick from.
	Suggestions []string
	// NeedsClarification marks a reply that asks the student to rephrase.
	NeedsClarification bool
	// Resources are linked external materials.
	Resources []Resource
}

// Message is one entry in the conversation timeline.
//
// A message is either server-confirmed (ID > 0, CreatedAt set, Optimistic
// false) or a local optimistic placeholder (ID == 0, LocalID set, CreatedAt
// zero, Optimistic true). LocalID values live in a "temp-" prefixed string
// space and can never collide with server-assigned integer IDs.
type Message struct {
	ID         int64
	LocalID    string
	Role       Role
	Content    string
	CreatedAt  time.Time
	Optimistic bool
	Metadata   *Metadata
}

// Confirmed reports whether the message carries a server-assigned identity.
func (m Message) Confirmed() bool { return !m.Optimistic && m.ID > 0 }

// TutorDetails describes the tutor a session is negotiated against.
type TutorDetails struct {
	ID               string
	Name             string
	Subject          string
	WelcomeMessage   string
	Language         string
	RequiresPassword bool
}

// NoticeKind classifies a user-facing notice emitted by the client.
type NoticeKind string

const (
	// NoticeSendFailed is emitted when a send rolls back. The compose input
	// should keep its content so the student can retry.
	NoticeSendFailed NoticeKind = "send_failed"
	// NoticeSessionFailed is emitted when session creation fails.
	NoticeSessionFailed NoticeKind = "session_failed"
)

// Notice is a non-fatal, user-visible condition surfaced by the client.
type Notice struct {
	Kind NoticeKind
	Err  error
}
