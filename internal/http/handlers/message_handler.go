// Chat and unread-tracking HTTP handlers.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reclaimhq/go-reclaim-backend/internal/services"
	"github.com/reclaimhq/go-reclaim-backend/internal/utils"
)

// PostMessageRequest is the JSON payload for sending a chat message.
type PostMessageRequest struct {
	// ID is the client-supplied message id, used for send retries. The
	// server mints one when absent.
	ID string `json:"id" example:"a2f5c5a0-6d2e-4c57-9a1b-2c2f0f5f8e11"`
	// SenderName is the display name to attach; defaults from the
	// caller's email when blank.
	SenderName string `json:"sender_name" example:"Jane Doe"`
	// Body is the message text (1–4000 runes after trimming).
	Body string `json:"body" binding:"required" example:"Is the umbrella still available?"`
}

// UnreadResponse is the polling payload for unread aggregation.
type UnreadResponse struct {
	services.UnreadSummary
	// PollIntervalSeconds tells clients how often to poll this endpoint.
	PollIntervalSeconds int `json:"poll_interval_seconds" example:"30"`
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a chat message
// @Description Persists a message to the room's durable log, then fans it out to live subscribers. Retrying with the same id returns the stored row.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
// @Param       room          path    string  true  "Room ID (UUID)"
// @Param       body          body    handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  domain.ChatMessage
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or oversized body"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Router      /rooms/{room}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Body) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message body required")
		return
	}

	msg, err := h.chatSvc.Post(c.Request.Context(), c.Param("room"), userID(c), userEmail(c), services.PostMessageInput{
		ID:         strings.TrimSpace(req.ID),
		SenderName: req.SenderName,
		Body:       req.Body,
	})
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, msg)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     Fetch room history
// @Description Returns the room's messages oldest first and marks every message from the counterpart as read.
// @Tags        Chat
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
// @Param       room          path    string  true  "Room ID (UUID)"
// @Param       limit         query   int     false "Max messages to return (default 100, cap 500)"
//
// @Success     200  {array}   domain.ChatMessage
// @Failure     401  {object}  handlers.ErrorResponse  "No identity supplied"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Router      /rooms/{room}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	uid, email := userID(c), userEmail(c)
	if uid == "" && email == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "identity required")
		return
	}
	limit := utils.ClampLimit(utils.AtoiDefault(c.Query("limit"), 100), 100, 500)
	msgs, err := h.chatSvc.History(c.Request.Context(), c.Param("room"), uid, email, limit)
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, msgs)
}

// Unread godoc
// @ID          unread
// @Summary     Unread counts
// @Description Returns per-room unread counts and the overall total for every room the caller participates in, with an explicit zero per room.
// @Tags        Chat
// @Produce     json
//
// @Param       X-User-ID     header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Email  header  string  false "Claimer email"
//
// @Success     200  {object}  handlers.UnreadResponse
// @Failure     401  {object}  handlers.ErrorResponse  "No identity supplied"
// @Router      /unread [get]
func (h *Handlers) Unread(c *gin.Context) {
	uid, email := userID(c), userEmail(c)
	if uid == "" && email == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "identity required")
		return
	}
	summary, err := h.unreadSvc.Counts(c.Request.Context(), uid, email)
	if err != nil {
		failServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, UnreadResponse{UnreadSummary: *summary, PollIntervalSeconds: h.pollInterval})
}
