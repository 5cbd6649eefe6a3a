package backend

import (
	"fmt"
	"time"

	"github.com/brainmate-ai/tutorchat/chat"
)

// Wire shapes for the BrainMate REST surface. Every response is decoded into
// one of these and validated before it crosses into the chat package, so the
// engine's failure paths are driven by explicit errors instead of nil checks.

type tutorJSON struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Subject          string `json:"subject"`
	WelcomeMessage   string `json:"welcomeMessage"`
	Language         string `json:"language"`
	RequiresPassword bool   `json:"requiresPassword"`
}

func (t *tutorJSON) toDetails() (*chat.TutorDetails, error) {
	if t.ID == "" {
		return nil, fmt.Errorf("%w: tutor missing id", chat.ErrBadShape)
	}
	return &chat.TutorDetails{
		ID:               t.ID,
		Name:             t.Name,
		Subject:          t.Subject,
		WelcomeMessage:   t.WelcomeMessage,
		Language:         t.Language,
		RequiresPassword: t.RequiresPassword,
	}, nil
}

type resourceJSON struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type metadataJSON struct {
	Suggestions        []string       `json:"suggestions,omitempty"`
	NeedsClarification bool           `json:"needsClarification,omitempty"`
	Resources          []resourceJSON `json:"resources,omitempty"`
}

type messageJSON struct {
	ID        int64         `json:"id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
	Metadata  *metadataJSON `json:"metadata,omitempty"`
}

func (m *messageJSON) toMessage() (chat.Message, error) {
	if m.ID <= 0 {
		return chat.Message{}, fmt.Errorf("%w: message missing id", chat.ErrBadShape)
	}
	role := chat.Role(m.Role)
	switch role {
	case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem:
	default:
		return chat.Message{}, fmt.Errorf("%w: unknown role %q", chat.ErrBadShape, m.Role)
	}
	msg := chat.Message{
		ID:        m.ID,
		Role:      role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Metadata != nil {
		md := &chat.Metadata{
			Suggestions:        m.Metadata.Suggestions,
			NeedsClarification: m.Metadata.NeedsClarification,
		}
		for _, r := range m.Metadata.Resources {
			md.Resources = append(md.Resources, chat.Resource{Title: r.Title, URL: r.URL})
		}
		msg.Metadata = md
	}
	return msg, nil
}

type createSessionRequest struct {
	TutorID   string `json:"tutorId"`
	StudentID string `json:"studentId,omitempty"`
}

type createSessionResponse struct {
	SessionToken string `json:"sessionToken"`
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}

type sendRequest struct {
	SessionToken string `json:"sessionToken"`
	Content      string `json:"content"`
	Mode         string `json:"mode"`
	Language     string `json:"language,omitempty"`
}

type sendResponse struct {
	UserMessage      *messageJSON `json:"userMessage"`
	AssistantMessage *messageJSON `json:"assistantMessage"`
}

// toResult validates the send response: both halves must be present and
// well-formed, otherwise the whole send counts as failed.
func (r *sendResponse) toResult() (*chat.SendResult, error) {
	if r.UserMessage == nil || r.AssistantMessage == nil {
		return nil, fmt.Errorf("%w: send response missing a message", chat.ErrBadShape)
	}
	user, err := r.UserMessage.toMessage()
	if err != nil {
		return nil, err
	}
	assistant, err := r.AssistantMessage.toMessage()
	if err != nil {
		return nil, err
	}
	return &chat.SendResult{UserMessage: user, AssistantMessage: assistant}, nil
}

type translateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type synthesizeResponse struct {
	AudioURL   string `json:"audioUrl"`
	DurationMS int64  `json:"durationMs"`
}

type errorResponse struct {
	Error string `json:"error"`
}
