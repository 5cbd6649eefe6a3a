package chat

import (
	"context"
	"errors"
)

// Sentinel errors the Backend contract distinguishes. Everything else is an
// undifferentiated transport or server failure.
var (
	// ErrTutorNotFound means the tutor does not exist. Terminal for the
	// negotiator.
	ErrTutorNotFound = errors.New("tutor not found")
	// ErrInvalidPassword means the password candidate was rejected. The
	// negotiator stays in StateAwaitingPassword.
	ErrInvalidPassword = errors.New("invalid tutor password")
	// ErrBadShape means a response decoded but was missing required fields.
	// The send coordinator treats it exactly like a transport failure.
	ErrBadShape = errors.New("malformed response shape")
)

// Backend is the transport the client engine drives. The canonical
// implementation is backend.Client; tests substitute scripted fakes.
//
// Implementations must translate wire-level conditions into the sentinel
// errors above where applicable and must never return a partially populated
// success (a SendResult missing either message is ErrBadShape, not a result).
type Backend interface {
	// Tutor fetches the public details for a tutor, including whether a
	// password gate applies.
	Tutor(ctx context.Context, tutorID string) (*TutorDetails, error)

	// VerifyPassword checks a password candidate against a gated tutor and
	// returns the full tutor details on success.
	VerifyPassword(ctx context.Context, tutorID, password string) (*TutorDetails, error)

	// CreateSession negotiates a new session and returns its opaque token.
	CreateSession(ctx context.Context, tutorID, studentID string) (token string, err error)

	// Messages fetches the server's full ordered message list for a session.
	Messages(ctx context.Context, token string) ([]Message, error)

	// Send submits a student message and returns the echoed stored user
	// message plus the generated assistant reply.
	Send(ctx context.Context, token, content string, mode Mode, language string) (*SendResult, error)
}

// SendResult is the validated response to a send: both halves are always
// present and server-confirmed.
type SendResult struct {
	UserMessage      Message
	AssistantMessage Message
}
