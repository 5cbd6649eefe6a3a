// Package memoryhost is the in-memory tutorhost.Host implementation, meant
// for development and tests on a single process.
package memoryhost

import (
	"context"
	"sync"
	"time"

	"github.com/brainmate-ai/tutorchat/tutorhost"
	"github.com/google/uuid"
)

// Host is an in-memory implementation of tutorhost.Host.
type Host struct {
	mu       sync.RWMutex
	sessions map[string]*sessionData
	now      func() time.Time
}

type sessionData struct {
	session  tutorhost.Session
	messages []tutorhost.StoredMessage
	seq      int64
}

var _ tutorhost.Host = (*Host)(nil)

// New returns an empty host.
func New() *Host {
	return &Host{
		sessions: make(map[string]*sessionData),
		now:      time.Now,
	}
}

func (h *Host) CreateSession(ctx context.Context, tutorID, studentID string) (*tutorhost.Session, error) {
	now := h.now().UTC()
	sess := tutorhost.Session{
		ID:        uuid.NewString(),
		TutorID:   tutorID,
		StudentID: studentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	h.mu.Lock()
	h.sessions[sess.ID] = &sessionData{session: sess}
	h.mu.Unlock()
	return &sess, nil
}

func (h *Host) GetSession(ctx context.Context, sessionID string) (*tutorhost.Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sd, ok := h.sessions[sessionID]
	if !ok {
		return nil, tutorhost.ErrSessionNotFound
	}
	sess := sd.session
	return &sess, nil
}

func (h *Host) DeleteSession(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	return nil
}

func (h *Host) AppendMessage(ctx context.Context, sessionID, role, content string) (*tutorhost.StoredMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sd, ok := h.sessions[sessionID]
	if !ok {
		return nil, tutorhost.ErrSessionNotFound
	}
	sd.seq++
	msg := tutorhost.StoredMessage{
		ID:        sd.seq,
		Role:      role,
		Content:   content,
		CreatedAt: h.now().UTC(),
	}
	sd.messages = append(sd.messages, msg)
	sd.session.UpdatedAt = msg.CreatedAt
	return &msg, nil
}

func (h *Host) ListMessages(ctx context.Context, sessionID string) ([]tutorhost.StoredMessage, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sd, ok := h.sessions[sessionID]
	if !ok {
		return nil, tutorhost.ErrSessionNotFound
	}
	out := make([]tutorhost.StoredMessage, len(sd.messages))
	copy(out, sd.messages)
	return out, nil
}

func (h *Host) Close() error { return nil }
