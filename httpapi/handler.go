// Package httpapi serves the BrainMate tutoring REST surface: tutor
// lookup, password verification, session negotiation, the message pipeline
// and the opaque content/voice task endpoints. It is the server-side
// counterpart of the backend package's client.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/brainmate-ai/tutorchat/chat"
	"github.com/brainmate-ai/tutorchat/internal/logctx"
	"github.com/brainmate-ai/tutorchat/internal/tokens"
	"github.com/brainmate-ai/tutorchat/responder"
	"github.com/brainmate-ai/tutorchat/tutorhost"
	"github.com/brainmate-ai/tutorchat/tutors"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// Wire payloads. These mirror the shapes the backend package's client
// decodes.

type tutorPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Subject          string `json:"subject"`
	WelcomeMessage   string `json:"welcomeMessage,omitempty"`
	Language         string `json:"language,omitempty"`
	RequiresPassword bool   `json:"requiresPassword"`
}

func tutorToPayload(t *tutors.Tutor) tutorPayload {
	return tutorPayload{
		ID:               t.ID,
		Name:             t.Name,
		Subject:          t.Subject,
		WelcomeMessage:   t.WelcomeMessage,
		Language:         t.Language,
		RequiresPassword: t.RequiresPassword(),
	}
}

type messagePayload struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func messageToPayload(m *tutorhost.StoredMessage) messagePayload {
	return messagePayload{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

type verifyPasswordPayload struct {
	Password string `json:"password"`
}

type createSessionPayload struct {
	TutorID   string `json:"tutorId"`
	StudentID string `json:"studentId"`
}

type sendPayload struct {
	SessionToken string `json:"sessionToken"`
	Content      string `json:"content"`
	Mode         string `json:"mode"`
	Language     string `json:"language"`
}

type translatePayload struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
}

type voicePayload struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Handler serves the tutoring API. Build one with New and mount it as a
// plain http.Handler.
type Handler struct {
	registry *tutors.Registry
	host     tutorhost.Host
	issuer   *tokens.Issuer
	resp     responder.Responder
	content  responder.ContentService
	log      *slog.Logger
	mux      *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger. Request and session attributes are
// attached automatically. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithContentService substitutes the content/voice task implementation.
// Defaults to responder.StaticContent.
func WithContentService(svc responder.ContentService) Option {
	return func(h *Handler) {
		if svc != nil {
			h.content = svc
		}
	}
}

// New builds the handler over the given registry, host, token issuer and
// responder.
func New(registry *tutors.Registry, host tutorhost.Host, issuer *tokens.Issuer, resp responder.Responder, opts ...Option) *Handler {
	h := &Handler{
		registry: registry,
		host:     host,
		issuer:   issuer,
		resp:     resp,
		content:  responder.StaticContent{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = slog.New(logctx.Handler{Handler: h.log.Handler()})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tutors/{id}", h.handleGetTutor)
	mux.HandleFunc("POST /tutors/{id}/verify-password", h.handleVerifyPassword)
	mux.HandleFunc("POST /sessions", h.handleCreateSession)
	mux.HandleFunc("GET /sessions/{token}/messages", h.handleListMessages)
	mux.HandleFunc("POST /message", h.handleSendMessage)
	mux.HandleFunc("POST /translate", h.handleTranslate)
	mux.HandleFunc("POST /voice", h.handleVoice)
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
	})
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody enforces the JSON media type and decodes the request body into
// dst, answering the request itself on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(r.Context(), "content_type.unsupported")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		h.log.WarnContext(r.Context(), "json.decode.fail", slog.String("err", err.Error()))
		return false
	}
	return true
}

func (h *Handler) handleGetTutor(w http.ResponseWriter, r *http.Request) {
	tutor, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "tutor not found")
		h.log.InfoContext(r.Context(), "tutor.lookup.miss", slog.String("tutor_id", r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, tutorToPayload(tutor))
}

func (h *Handler) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	tutor, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "tutor not found")
		return
	}
	var p verifyPasswordPayload
	if !h.decodeBody(w, r, &p) {
		return
	}
	if !tutor.CheckPassword(p.Password) {
		writeError(w, http.StatusUnauthorized, "invalid password")
		h.log.InfoContext(r.Context(), "tutor.password.rejected", slog.String("tutor_id", tutor.ID))
		return
	}
	h.log.InfoContext(r.Context(), "tutor.password.ok", slog.String("tutor_id", tutor.ID))
	writeJSON(w, http.StatusOK, tutorToPayload(tutor))
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var p createSessionPayload
	if !h.decodeBody(w, r, &p) {
		return
	}
	tutor, ok := h.registry.Get(p.TutorID)
	if !ok {
		writeError(w, http.StatusNotFound, "tutor not found")
		return
	}

	sess, err := h.host.CreateSession(r.Context(), tutor.ID, p.StudentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		h.log.ErrorContext(r.Context(), "session.create.fail", slog.String("err", err.Error()))
		return
	}
	ctx := logctx.WithSessionData(r.Context(), &logctx.SessionData{SessionID: sess.ID, TutorID: tutor.ID})

	if tutor.WelcomeMessage != "" {
		if _, err := h.host.AppendMessage(ctx, sess.ID, string(chat.RoleSystem), tutor.WelcomeMessage); err != nil {
			h.log.WarnContext(ctx, "session.welcome.fail", slog.String("err", err.Error()))
		}
	}

	token, err := h.issuer.Mint(sess.ID, tutor.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		h.log.ErrorContext(ctx, "session.token.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "session.create.ok")
	writeJSON(w, http.StatusCreated, map[string]string{"sessionToken": token})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	claims, err := h.issuer.Verify(r.PathValue("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	ctx := logctx.WithSessionData(r.Context(), &logctx.SessionData{SessionID: claims.SessionID, TutorID: claims.TutorID})

	msgs, err := h.host.ListMessages(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, tutorhost.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not list messages")
		h.log.ErrorContext(ctx, "messages.list.fail", slog.String("err", err.Error()))
		return
	}
	out := make([]messagePayload, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageToPayload(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var p sendPayload
	if !h.decodeBody(w, r, &p) {
		return
	}
	content := strings.TrimSpace(p.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "empty message content")
		return
	}
	claims, err := h.issuer.Verify(p.SessionToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	ctx := logctx.WithSessionData(r.Context(), &logctx.SessionData{SessionID: claims.SessionID, TutorID: claims.TutorID})

	sess, err := h.host.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, tutorhost.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load session")
		h.log.ErrorContext(ctx, "session.load.fail", slog.String("err", err.Error()))
		return
	}
	tutor, ok := h.registry.Get(sess.TutorID)
	if !ok {
		writeError(w, http.StatusNotFound, "tutor not found")
		return
	}

	mode := chat.Mode(p.Mode)
	if mode == "" {
		mode = chat.ModeChat
	}
	history, err := h.host.ListMessages(ctx, sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load history")
		h.log.ErrorContext(ctx, "messages.list.fail", slog.String("err", err.Error()))
		return
	}

	// Generate before persisting anything: when generation fails, the
	// client rolls its optimistic copy back, and a stored user message with
	// no reply would resurface through resync as a ghost.
	reply, err := h.resp.Reply(ctx, tutor, history, content, mode, p.Language)
	if err != nil {
		writeError(w, http.StatusBadGateway, "assistant unavailable")
		h.log.ErrorContext(ctx, "assistant.reply.fail", slog.String("err", err.Error()))
		return
	}

	userMsg, err := h.host.AppendMessage(ctx, sess.ID, string(chat.RoleUser), content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store message")
		h.log.ErrorContext(ctx, "message.store.fail", slog.String("err", err.Error()))
		return
	}
	assistantMsg, err := h.host.AppendMessage(ctx, sess.ID, string(chat.RoleAssistant), reply)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store message")
		h.log.ErrorContext(ctx, "message.store.fail", slog.String("err", err.Error()))
		return
	}

	h.log.InfoContext(ctx, "message.send.ok",
		slog.String("mode", string(mode)),
		slog.Int64("user_msg_id", userMsg.ID),
		slog.Int64("assistant_msg_id", assistantMsg.ID))
	writeJSON(w, http.StatusOK, map[string]messagePayload{
		"userMessage":      messageToPayload(userMsg),
		"assistantMessage": messageToPayload(assistantMsg),
	})
}

func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var p translatePayload
	if !h.decodeBody(w, r, &p) {
		return
	}
	if strings.TrimSpace(p.Text) == "" || p.TargetLanguage == "" {
		writeError(w, http.StatusBadRequest, "text and targetLanguage are required")
		return
	}
	translated, err := h.content.Translate(r.Context(), p.Text, p.TargetLanguage)
	if err != nil {
		writeError(w, http.StatusBadGateway, "translation unavailable")
		h.log.ErrorContext(r.Context(), "translate.fail", slog.String("err", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"translatedText": translated})
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	var p voicePayload
	if !h.decodeBody(w, r, &p) {
		return
	}
	if strings.TrimSpace(p.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	audioURL, duration, err := h.content.Synthesize(r.Context(), p.Text, p.Voice)
	if err != nil {
		writeError(w, http.StatusBadGateway, "voice synthesis unavailable")
		h.log.ErrorContext(r.Context(), "voice.fail", slog.String("err", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"audioUrl":   audioURL,
		"durationMs": duration.Milliseconds(),
	})
}
