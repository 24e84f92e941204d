package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

// CommentRequest is a new comment.
type CommentRequest struct {
	Text string `json:"text" example:"<p>Beautifully put.</p>"`
}

// AddComment godoc
// @ID          addComment
// @Summary     Comment on content
// @Description Notifies the content author unless they wrote the comment themselves.
// @Tags        Comments
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header    string                   true  "Caller"
// @Param       id         path      string                   true  "Content ID"
// @Param       body       body      handlers.CommentRequest  true  "Comment"
// @Success     201        {object}  domain.Comment
// @Failure     400        {object}  handlers.ErrorResponse
// @Failure     404        {object}  handlers.ErrorResponse
// @Router      /content/{id}/comments [post]
func (h *Handlers) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cm, err := h.svc.Comments.Add(c.Request.Context(), currentUser(c), c.Param("id"), req.Text)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, cm)
}

// DeleteComment godoc
// @ID          deleteComment
// @Summary     Delete a comment
// @Description Only the comment author may delete; others get 403 with a redirect to the content.
// @Tags        Comments
// @Param       X-User-ID  header  string  true  "Caller"
// @Param       id         path    string  true  "Comment ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /comment/{id} [delete]
func (h *Handlers) DeleteComment(c *gin.Context) {
	contentID, err := h.svc.Comments.Delete(c.Request.Context(), currentUser(c), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrForbiddenComment):
		failForbidden(c, err.Error(), h.path("content", contentID))
	case err != nil:
		failErr(c, err)
	default:
		noContent(c)
	}
}

// LikeContent godoc
// @ID          likeContent
// @Summary     Toggle a like on content
// @Tags        Likes
// @Produce     json
// @Param       X-User-ID  header    string  true  "Caller"
// @Param       id         path      string  true  "Content ID"
// @Success     200        {object}  services.ToggleResult
// @Failure     404        {object}  handlers.ErrorResponse
// @Failure     409        {object}  handlers.ErrorResponse  "Concurrent duplicate like"
// @Router      /content/{id}/like [post]
func (h *Handlers) LikeContent(c *gin.Context) {
	h.toggleLike(c, domain.ContentTarget(c.Param("id")))
}

// LikeComment godoc
// @ID          likeComment
// @Summary     Toggle a like on a comment
// @Tags        Likes
// @Produce     json
// @Param       X-User-ID  header    string  true  "Caller"
// @Param       id         path      string  true  "Comment ID"
// @Success     200        {object}  services.ToggleResult
// @Failure     404        {object}  handlers.ErrorResponse
// @Router      /comment/{id}/like [post]
func (h *Handlers) LikeComment(c *gin.Context) {
	h.toggleLike(c, domain.CommentTarget(c.Param("id")))
}

func (h *Handlers) toggleLike(c *gin.Context, target domain.LikeTarget) {
	res, err := h.svc.Likes.Toggle(c.Request.Context(), currentUser(c), target)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
