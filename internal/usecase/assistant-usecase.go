package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/iamvkosarev/car-assistant-chat/config"
	"github.com/iamvkosarev/car-assistant-chat/internal/model"
)

const (
	AssistantRoleUser = "user"

	maxErrorBodyLen = 512
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status")
	ErrMalformedResponse = errors.New("malformed response")
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	SessionID *string       `json:"session_id,omitempty"`
	Language  *string       `json:"language,omitempty"`
}

type chatResponse struct {
	Response  *string `json:"response"`
	SessionID string  `json:"session_id"`
}

type greetingResponse struct {
	Message *string `json:"message"`
}

// AssistantUsecase talks to the remote assistant service. Requests have no
// timeout; they end when the service answers or ctx is cancelled.
type AssistantUsecase struct {
	httpClient  *http.Client
	greetingURL string
	chatURL     string
}

func NewAssistantUsecase(cfg config.Assistant, httpClient *http.Client) (*AssistantUsecase, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	greetingURL, err := url.JoinPath(cfg.BaseURL, cfg.GreetingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build greeting url: %w", err)
	}
	chatURL, err := url.JoinPath(cfg.BaseURL, cfg.ChatPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build chat url: %w", err)
	}
	return &AssistantUsecase{
		httpClient:  httpClient,
		greetingURL: greetingURL,
		chatURL:     chatURL,
	}, nil
}

func (a *AssistantUsecase) FetchGreeting(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.greetingURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create greeting request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch greeting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", unexpectedStatus(resp)
	}
	var body greetingResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: failed to decode greeting: %v", ErrMalformedResponse, err)
	}
	if body.Message == nil {
		return "", fmt.Errorf("%w: greeting has no message", ErrMalformedResponse)
	}
	return *body.Message, nil
}

// SendTurn posts one user message. A rate-limited answer (HTTP 429) is not an
// error: it comes back as a Reply with RateLimited set.
func (a *AssistantUsecase) SendTurn(ctx context.Context, turn model.Turn) (model.Reply, error) {
	payload := chatRequest{
		Messages: []chatMessage{
			{
				Role:    AssistantRoleUser,
				Content: turn.Text,
			},
		},
	}
	if turn.SessionID != "" {
		payload.SessionID = &turn.SessionID
	}
	if turn.Language != "" {
		language := string(turn.Language)
		payload.Language = &language
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return model.Reply{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.chatURL, bytes.NewReader(raw))
	if err != nil {
		return model.Reply{}, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return model.Reply{}, fmt.Errorf("failed to send chat request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return decodeRateLimited(resp.Body), nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return model.Reply{}, unexpectedStatus(resp)
	}

	var body chatResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Reply{}, fmt.Errorf("%w: failed to decode chat response: %v", ErrMalformedResponse, err)
	}
	if body.Response == nil {
		return model.Reply{}, fmt.Errorf("%w: chat response has no response field", ErrMalformedResponse)
	}
	return model.Reply{
		Text:      *body.Response,
		HasText:   true,
		SessionID: body.SessionID,
	}, nil
}

// decodeRateLimited is lenient: the body of a 429 is optional.
func decodeRateLimited(r io.Reader) model.Reply {
	reply := model.Reply{RateLimited: true}
	var body chatResponse
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return reply
	}
	if body.Response != nil {
		reply.Text = *body.Response
		reply.HasText = true
	}
	reply.SessionID = body.SessionID
	return reply
}

func unexpectedStatus(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(snippet))
}
