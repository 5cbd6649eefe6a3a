// Package hosttest provides a reusable conformance suite for
// tutorhost.Host implementations.
package hosttest

import (
	"context"
	"errors"
	"testing"

	"github.com/brainmate-ai/tutorchat/tutorhost"
)

// Factory builds a fresh Host for one subtest.
type Factory func(t *testing.T) tutorhost.Host

// RunHostTests exercises the tutorhost.Host contract against the factory's
// implementation.
func RunHostTests(t *testing.T, factory Factory) {
	t.Run("SessionLifecycle", func(t *testing.T) {
		h := factory(t)
		defer h.Close()
		ctx := context.Background()

		sess, err := h.CreateSession(ctx, "tut-1", "stu-1")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if sess.ID == "" || sess.TutorID != "tut-1" || sess.StudentID != "stu-1" {
			t.Fatalf("session = %+v", sess)
		}
		if sess.CreatedAt.IsZero() {
			t.Fatal("CreatedAt not assigned")
		}

		got, err := h.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if got.ID != sess.ID || got.TutorID != sess.TutorID {
			t.Fatalf("got %+v, want %+v", got, sess)
		}

		if err := h.DeleteSession(ctx, sess.ID); err != nil {
			t.Fatalf("DeleteSession: %v", err)
		}
		if _, err := h.GetSession(ctx, sess.ID); !errors.Is(err, tutorhost.ErrSessionNotFound) {
			t.Fatalf("GetSession after delete = %v, want ErrSessionNotFound", err)
		}
		if err := h.DeleteSession(ctx, sess.ID); err != nil {
			t.Fatalf("DeleteSession should be idempotent: %v", err)
		}
	})

	t.Run("MessageIDsIncrease", func(t *testing.T) {
		h := factory(t)
		defer h.Close()
		ctx := context.Background()

		sess, err := h.CreateSession(ctx, "tut-1", "")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		var lastID int64
		for _, content := range []string{"welcome", "first question", "first answer"} {
			msg, err := h.AppendMessage(ctx, sess.ID, "user", content)
			if err != nil {
				t.Fatalf("AppendMessage(%q): %v", content, err)
			}
			if msg.ID <= lastID {
				t.Fatalf("message ID %d not greater than %d", msg.ID, lastID)
			}
			if msg.CreatedAt.IsZero() {
				t.Fatalf("message %d missing timestamp", msg.ID)
			}
			lastID = msg.ID
		}

		msgs, err := h.ListMessages(ctx, sess.ID)
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		if len(msgs) != 3 {
			t.Fatalf("got %d messages, want 3", len(msgs))
		}
		for i := 1; i < len(msgs); i++ {
			if msgs[i].ID <= msgs[i-1].ID {
				t.Fatalf("log not in append order: %+v", msgs)
			}
		}
	})

	t.Run("SessionsIsolated", func(t *testing.T) {
		h := factory(t)
		defer h.Close()
		ctx := context.Background()

		a, err := h.CreateSession(ctx, "tut-1", "")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		b, err := h.CreateSession(ctx, "tut-1", "")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if _, err := h.AppendMessage(ctx, a.ID, "user", "for a"); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		if _, err := h.AppendMessage(ctx, b.ID, "user", "for b"); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}

		msgsA, err := h.ListMessages(ctx, a.ID)
		if err != nil {
			t.Fatalf("ListMessages(a): %v", err)
		}
		if len(msgsA) != 1 || msgsA[0].Content != "for a" {
			t.Fatalf("session a messages = %+v", msgsA)
		}
	})

	t.Run("UnknownSession", func(t *testing.T) {
		h := factory(t)
		defer h.Close()
		ctx := context.Background()

		if _, err := h.AppendMessage(ctx, "missing", "user", "x"); !errors.Is(err, tutorhost.ErrSessionNotFound) {
			t.Fatalf("AppendMessage = %v, want ErrSessionNotFound", err)
		}
		if _, err := h.ListMessages(ctx, "missing"); !errors.Is(err, tutorhost.ErrSessionNotFound) {
			t.Fatalf("ListMessages = %v, want ErrSessionNotFound", err)
		}
	})
}
