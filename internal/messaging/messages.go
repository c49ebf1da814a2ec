// Package messaging serves direct messages between users: a polled thread
// endpoint plus an optional websocket push per conversation.
package messaging

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/gighub/internal/alerts"
	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/store"
)

type Handler struct {
	store    store.Store
	hub      *Hub
	notifier alerts.Notifier
	log      zerolog.Logger
}

func NewHandler(s store.Store, hub *Hub, notifier alerts.Notifier, log zerolog.Logger) *Handler {
	if notifier == nil {
		notifier = alerts.NopNotifier{}
	}
	return &Handler{store: s, hub: hub, notifier: notifier, log: log}
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,max=5000"`
}

// SendMessage - deliver a message to another user
func (h *Handler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}
	userID := httpx.UserID(c)
	if req.ReceiverID == userID {
		return httpx.Fail(c, http.StatusBadRequest, "cannot message yourself")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": map[string]string{"content": "is required"}})
	}
	ctx := c.Request().Context()
	if _, err := h.store.UserByID(ctx, req.ReceiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Fail(c, http.StatusNotFound, "recipient not found")
		}
		return httpx.Fail(c, http.StatusInternalServerError, "failed to fetch recipient")
	}

	msg := models.Message{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := h.store.CreateMessage(ctx, &msg); err != nil {
		h.log.Error().Err(err).Msg("create message")
		return httpx.Fail(c, http.StatusInternalServerError, "failed to send message")
	}

	// Broadcast new message event to WS subscribers
	h.hub.broadcast(models.ConversationKey(msg.SenderID, msg.ReceiverID), wsEvent{Type: "message_new", Data: msg})

	// Notification for recipient (best-effort)
	if err := h.notifier.NewMessage(context.WithoutCancel(ctx), alerts.MessageEvent{
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Recipient: msg.ReceiverID,
		Preview:   msg.Content,
	}); err != nil {
		h.log.Warn().Err(err).Str("message_id", msg.ID).Msg("notification not sent")
	}
	return httpx.Data(c, http.StatusCreated, msg)
}

// Thread - messages with :userId, oldest first. ?since=<RFC3339> returns
// only newer ones for incremental polling.
func (h *Handler) Thread(c echo.Context) error {
	var since time.Time
	if s := c.QueryParam("since"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return httpx.Fail(c, http.StatusBadRequest, "invalid since timestamp, use RFC3339")
		}
		since = t
	}
	msgs, err := h.store.Thread(c.Request().Context(), httpx.UserID(c), c.Param("userId"), since)
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "failed to list messages")
	}
	return httpx.Data(c, http.StatusOK, msgs)
}

// Conversations - one entry per counterpart, most recent first
func (h *Handler) Conversations(c echo.Context) error {
	convs, err := h.store.Conversations(c.Request().Context(), httpx.UserID(c))
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "failed to list conversations")
	}
	return httpx.Data(c, http.StatusOK, convs)
}

// ThreadWS - websocket for realtime updates on the conversation with :userId
func (h *Handler) ThreadWS(c echo.Context) error {
	userID := httpx.UserID(c)
	other := c.Param("userId")
	if other == userID {
		return httpx.Fail(c, http.StatusBadRequest, "cannot open a conversation with yourself")
	}
	if _, err := h.store.UserByID(c.Request().Context(), other); err != nil {
		return httpx.Fail(c, http.StatusNotFound, "user not found")
	}
	return h.hub.serve(c, models.ConversationKey(userID, other), userID)
}
