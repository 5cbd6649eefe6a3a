// Package backend is the typed HTTP client for the BrainMate tutoring API.
// It implements chat.Backend plus the opaque content and voice task
// endpoints, translating wire-level conditions into the chat package's
// sentinel errors at the service boundary.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brainmate-ai/tutorchat/chat"
	"github.com/brainmate-ai/tutorchat/speech"
)

var _ chat.Backend = (*Client)(nil)
var _ speech.SynthesisService = (*Client)(nil)

// Client talks to one BrainMate API server. It is safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying http.Client. The default uses a
// 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpc = hc
		}
	}
}

// WithLogger sets the client's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New builds a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tutor implements chat.Backend.
func (c *Client) Tutor(ctx context.Context, tutorID string) (*chat.TutorDetails, error) {
	var out tutorJSON
	status, err := c.do(ctx, http.MethodGet, "/tutors/"+url.PathEscape(tutorID), nil, &out)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, chat.ErrTutorNotFound
	case status != http.StatusOK:
		return nil, fmt.Errorf("get tutor: unexpected status %d", status)
	}
	return out.toDetails()
}

// VerifyPassword implements chat.Backend.
func (c *Client) VerifyPassword(ctx context.Context, tutorID, password string) (*chat.TutorDetails, error) {
	var out tutorJSON
	status, err := c.do(ctx, http.MethodPost, "/tutors/"+url.PathEscape(tutorID)+"/verify-password", verifyPasswordRequest{Password: password}, &out)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return out.toDetails()
	case http.StatusUnauthorized:
		return nil, chat.ErrInvalidPassword
	case http.StatusNotFound:
		return nil, chat.ErrTutorNotFound
	default:
		return nil, fmt.Errorf("verify password: unexpected status %d", status)
	}
}

// CreateSession implements chat.Backend.
func (c *Client) CreateSession(ctx context.Context, tutorID, studentID string) (string, error) {
	var out createSessionResponse
	status, err := c.do(ctx, http.MethodPost, "/sessions", createSessionRequest{TutorID: tutorID, StudentID: studentID}, &out)
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return "", chat.ErrTutorNotFound
	default:
		return "", fmt.Errorf("create session: unexpected status %d", status)
	}
	if out.SessionToken == "" {
		return "", fmt.Errorf("%w: session response missing token", chat.ErrBadShape)
	}
	return out.SessionToken, nil
}

// Messages implements chat.Backend.
func (c *Client) Messages(ctx context.Context, token string) ([]chat.Message, error) {
	var out []messageJSON
	status, err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(token)+"/messages", nil, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list messages: unexpected status %d", status)
	}
	msgs := make([]chat.Message, 0, len(out))
	for i := range out {
		msg, err := out[i].toMessage()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Send implements chat.Backend. Any non-2xx status or a payload missing
// either message is a send failure.
func (c *Client) Send(ctx context.Context, token, content string, mode chat.Mode, language string) (*chat.SendResult, error) {
	var out sendResponse
	status, err := c.do(ctx, http.MethodPost, "/message", sendRequest{
		SessionToken: token,
		Content:      content,
		Mode:         string(mode),
		Language:     language,
	}, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("send message: unexpected status %d", status)
	}
	return out.toResult()
}

// Translate calls the opaque translation task endpoint.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	var out translateResponse
	status, err := c.do(ctx, http.MethodPost, "/translate", translateRequest{Text: text, TargetLanguage: targetLanguage}, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("translate: unexpected status %d", status)
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("%w: translate response empty", chat.ErrBadShape)
	}
	return out.TranslatedText, nil
}

// Synthesize calls the opaque voice task endpoint, implementing
// speech.SynthesisService.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (*speech.Clip, error) {
	var out synthesizeResponse
	status, err := c.do(ctx, http.MethodPost, "/voice", synthesizeRequest{Text: text, Voice: voice}, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("synthesize: unexpected status %d", status)
	}
	if out.AudioURL == "" || out.DurationMS < 0 {
		return nil, fmt.Errorf("%w: voice response missing clip", chat.ErrBadShape)
	}
	return &speech.Clip{
		AudioURL: out.AudioURL,
		Duration: time.Duration(out.DurationMS) * time.Millisecond,
	}, nil
}

// do issues one JSON round trip. It returns the HTTP status for the caller
// to interpret; transport and decode failures are returned as errors. The
// body is decoded into out only for 2xx responses.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The error body is advisory only; reading it bounded also lets the
		// connection be reused.
		var apiErr errorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err == nil && apiErr.Error != "" {
			c.log.Debug("api.error", slog.Int("status", resp.StatusCode), slog.String("err", apiErr.Error))
		}
		return resp.StatusCode, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: %v", chat.ErrBadShape, err)
		}
	}
	return resp.StatusCode, nil
}
