package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brainmate-ai/tutorchat/chat"
)

func TestSendDecodesBothMessages(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/message" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["sessionToken"] != "tok-1" || req["mode"] != "chat" {
			t.Errorf("request payload = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"userMessage": map[string]any{
				"id": 10, "role": "user", "content": "What is gravity?", "createdAt": at,
			},
			"assistantMessage": map[string]any{
				"id": 11, "role": "assistant", "content": "Gravity is...", "createdAt": at.Add(time.Second),
				"metadata": map[string]any{"suggestions": []string{"Tell me more"}},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Send(context.Background(), "tok-1", "What is gravity?", chat.ModeChat, "en")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.UserMessage.ID != 10 || res.AssistantMessage.ID != 11 {
		t.Errorf("IDs = %d, %d; want 10, 11", res.UserMessage.ID, res.AssistantMessage.ID)
	}
	if res.AssistantMessage.Metadata == nil || len(res.AssistantMessage.Metadata.Suggestions) != 1 {
		t.Errorf("metadata not decoded: %+v", res.AssistantMessage.Metadata)
	}
}

func TestSendMissingMessageIsBadShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"userMessage": map[string]any{"id": 10, "role": "user", "content": "x", "createdAt": time.Now()},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Send(context.Background(), "tok-1", "x", chat.ModeChat, ""); !errors.Is(err, chat.ErrBadShape) {
		t.Fatalf("Send = %v, want ErrBadShape", err)
	}
}

func TestSendServerErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Send(context.Background(), "tok-1", "x", chat.ModeChat, ""); err == nil {
		t.Fatal("Send succeeded despite 500")
	}
}

func TestTutorNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown tutor"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Tutor(context.Background(), "nope"); !errors.Is(err, chat.ErrTutorNotFound) {
		t.Fatalf("Tutor = %v, want ErrTutorNotFound", err)
	}
}

func TestVerifyPasswordRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid password"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.VerifyPassword(context.Background(), "tut-1", "wrong"); !errors.Is(err, chat.ErrInvalidPassword) {
		t.Fatalf("VerifyPassword = %v, want ErrInvalidPassword", err)
	}
}

func TestCreateSessionRequiresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.CreateSession(context.Background(), "tut-1", ""); !errors.Is(err, chat.ErrBadShape) {
		t.Fatalf("CreateSession = %v, want ErrBadShape", err)
	}
}

func TestMessagesDecodesList(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/tok-1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "role": "system", "content": "welcome", "createdAt": at},
			{"id": 2, "role": "user", "content": "hi", "createdAt": at.Add(time.Second)},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	msgs, err := c.Messages(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != chat.RoleSystem || msgs[1].ID != 2 {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestSynthesizeClip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"audioUrl": "https://cdn/clip.mp3", "durationMs": 1500})
	}))
	defer srv.Close()

	c := New(srv.URL)
	clip, err := c.Synthesize(context.Background(), "hello", "en-US")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.AudioURL != "https://cdn/clip.mp3" || clip.Duration != 1500*time.Millisecond {
		t.Fatalf("clip = %+v", clip)
	}
}
