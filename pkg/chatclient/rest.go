package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"PitchChat/models"
)

// APIError is a non-success REST envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Pagination mirrors the history page metadata.
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

type HistoryPage struct {
	Messages   []models.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// REST calls the conversation endpoints.
type REST struct {
	base  string
	token string
	http  *http.Client
}

func NewREST(baseURL, token string) *REST {
	return &REST{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (r *REST) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "unreadable response"}
	}
	if !env.Success || resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (r *REST) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	err := r.do(ctx, http.MethodGet, "/conversations", nil, &out)
	return out, err
}

// Conversation returns one conversation and the caller's unread count in it.
func (r *REST) Conversation(ctx context.Context, id string) (*models.Conversation, int64, error) {
	var out struct {
		Conversation models.Conversation `json:"conversation"`
		UnreadCount  int64               `json:"unreadCount"`
	}
	if err := r.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, 0, err
	}
	return &out.Conversation, out.UnreadCount, nil
}

// History fetches a page of messages. The server marks the caller's
// received messages in the conversation read.
func (r *REST) History(ctx context.Context, id string, page, limit int) (*HistoryPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/conversations/" + url.PathEscape(id) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out HistoryPage
	if err := r.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Initiate starts or reuses the conversation about a pitch.
func (r *REST) Initiate(ctx context.Context, pitchID, message string) (string, bool, error) {
	var out struct {
		ConversationID string `json:"conversationId"`
		IsNew          bool   `json:"isNew"`
	}
	err := r.do(ctx, http.MethodPost, "/conversations/initiate", map[string]string{"pitchId": pitchID, "message": message}, &out)
	return out.ConversationID, out.IsNew, err
}

func (r *REST) Send(ctx context.Context, id, content string, msgType models.MessageType) (*models.Message, error) {
	body := map[string]any{"content": content}
	if msgType != "" {
		body["messageType"] = msgType
	}
	var out models.Message
	if err := r.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(id)+"/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead returns the caller's unread count afterwards.
func (r *REST) MarkRead(ctx context.Context, id string) (int64, error) {
	var out struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	err := r.do(ctx, http.MethodPatch, "/conversations/"+url.PathEscape(id)+"/read", nil, &out)
	return out.UnreadCount, err
}

func (r *REST) Delete(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(id), nil, nil)
}

func (r *REST) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	err := r.do(ctx, http.MethodGet, "/unread-count", nil, &out)
	return out.Count, err
}
