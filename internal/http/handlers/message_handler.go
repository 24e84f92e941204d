package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/http/middleware"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

// SendMessageRequest is a private message.
type SendMessageRequest struct {
	Recipient string `json:"recipient" binding:"required" example:"shams"`
	Subject   string `json:"subject"   example:"On the reed"`
	Body      string `json:"body"      example:"Have you read the opening verses?"`
}

// MessageListResponse is a page of one mailbox.
type MessageListResponse struct {
	Box        string           `json:"box"`
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// UnreadResponse carries an unread counter.
type UnreadResponse struct {
	Unread int64 `json:"unread"`
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a private message
// @Description Retries carrying the same Idempotency-Key return the first message with Idempotency-Replayed: true.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header    string                       true   "Caller"
// @Param       Idempotency-Key  header    string                       false  "Key for safe retries"
// @Param       body             body      handlers.SendMessageRequest  true   "Message"
// @Success     201              {object}  domain.Message
// @Success     200              {object}  domain.Message  "Replayed"
// @Failure     400              {object}  handlers.ErrorResponse
// @Router      /messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeValidation,
			Message: "recipient is required",
			Fields:  map[string]string{"recipient": "this field is required"},
		})
		return
	}
	in := services.SendInput{Recipient: req.Recipient, Subject: req.Subject, Body: req.Body}
	if key, ok := middleware.GetIdempotencyKey(c); ok {
		in.IdempotencyKey = key
		in.Scope = middleware.IdempotencyScope(c)
	}

	m, replayed, err := h.svc.Messages.Send(c.Request.Context(), currentUser(c), in)
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		c.Header("Idempotency-Replayed", "true")
		status = http.StatusOK
	}
	c.Header("Location", h.path("messages", m.ID))
	ok(c, status, m)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     Inbox or outbox
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID  header  string  true   "Caller"
// @Param       box        query   string  false  "inbox (default) or outbox"  Enums(inbox, outbox)
// @Param       page       query   int     false  "Page"
// @Param       page_size  query   int     false  "Page size"
// @Success     200  {object}  handlers.MessageListResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	page, size := h.pageParams(c)
	box := c.DefaultQuery("box", domain.BoxInbox)
	items, total, err := h.svc.Messages.List(c.Request.Context(), currentUser(c), box, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageListResponse{Box: box, Messages: items, Pagination: pagination(page, size, total)})
}

// GetMessage godoc
// @ID          getMessage
// @Summary     Read a message
// @Description Reading as the recipient marks it read.
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller"
// @Param       id         path    string  true  "Message ID"
// @Success     200  {object}  domain.Message
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /messages/{id} [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	m, err := h.svc.Messages.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrForbiddenMessage):
		failForbidden(c, err.Error(), h.path("messages")+"?box="+domain.BoxInbox)
	case err != nil:
		failErr(c, err)
	default:
		ok(c, http.StatusOK, m)
	}
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Delete a message from my mailbox
// @Description The other participant keeps their copy.
// @Tags        Messages
// @Param       X-User-ID  header  string  true  "Caller"
// @Param       id         path    string  true  "Message ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /messages/{id} [delete]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	err := h.svc.Messages.Delete(c.Request.Context(), currentUser(c), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrForbiddenMessage):
		failForbidden(c, err.Error(), h.path("messages")+"?box="+domain.BoxInbox)
	case err != nil:
		failErr(c, err)
	default:
		noContent(c)
	}
}

// UnreadMessages godoc
// @ID          unreadMessages
// @Summary     Unread inbox count
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller"
// @Success     200  {object}  handlers.UnreadResponse
// @Router      /messages/unread [get]
func (h *Handlers) UnreadMessages(c *gin.Context) {
	n, err := h.svc.Messages.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UnreadResponse{Unread: n})
}
