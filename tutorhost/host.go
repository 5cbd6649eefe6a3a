// Package tutorhost defines the persistence contract the reference backend
// stores chat sessions and their message logs behind. Implementations exist
// for in-memory single-process use (memoryhost) and Redis-backed horizontal
// scale (redishost).
package tutorhost

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is one stored chat session.
type Session struct {
	ID        string    `json:"id"`
	TutorID   string    `json:"tutorId"`
	StudentID string    `json:"studentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoredMessage is one persisted timeline entry. IDs are assigned by the
// host, strictly increasing within a session, and never reused.
type StoredMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Host persists sessions and their ordered message logs. Implementations
// must be safe for concurrent use.
type Host interface {
	// CreateSession allocates a new session for the tutor.
	CreateSession(ctx context.Context, tutorID, studentID string) (*Session, error)

	// GetSession returns the session or ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// DeleteSession removes the session and its messages. Deleting an
	// unknown session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// AppendMessage appends one entry to the session's log, assigning its
	// ID and timestamp, and returns the stored form.
	AppendMessage(ctx context.Context, sessionID, role, content string) (*StoredMessage, error)

	// ListMessages returns the session's full log in append order.
	ListMessages(ctx context.Context, sessionID string) ([]StoredMessage, error)

	// Close releases backend resources.
	Close() error
}
