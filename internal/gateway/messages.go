package gateway

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sudo-init-do/gighub/internal/models"
)

// SendMessageRequest posts a message to another user.
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,max=5000"`
}

// MessageAPI covers /messages.
type MessageAPI struct{ c *Client }

func (m *MessageAPI) Send(ctx context.Context, receiverID, content string) (*models.Message, error) {
	req := SendMessageRequest{ReceiverID: receiverID, Content: content}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var out models.Message
	if err := m.c.do(ctx, http.MethodPost, "/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Thread returns the conversation with userID in chronological order. A
// non-nil since limits it to messages created after that instant.
func (m *MessageAPI) Thread(ctx context.Context, userID string, since *time.Time) ([]models.Message, error) {
	id, err := escape(userID)
	if err != nil {
		return nil, err
	}
	var q url.Values
	if since != nil {
		q = url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}
	}
	var out []models.Message
	if err := m.c.do(ctx, http.MethodGet, "/messages/"+id, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MessageAPI) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := m.c.do(ctx, http.MethodGet, "/messages/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
