package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

// ContactRequest is a contact form submission.
type ContactRequest struct {
	Name    string `json:"name"    example:"Shams"`
	Email   string `json:"email"   example:"shams@tabriz.example"`
	Subject string `json:"subject" example:"Translation question"`
	Message string `json:"message" example:"Is there a Kurdish edition planned?"`
}

// Contact godoc
// @ID          contact
// @Summary     Contact the site operators
// @Description Signed-in senders are identified in the forwarded mail.
// @Tags        Contact
// @Accept      json
// @Param       body  body  handlers.ContactRequest  true  "Message"
// @Success     202
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse  "No contact address configured"
// @Router      /contact [post]
func (h *Handlers) Contact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()

	var viewer *domain.User
	if uid := currentUser(c); uid != "" && h.svc.Users != nil {
		if u, err := h.svc.Users.GetByID(ctx, uid); err == nil {
			viewer = u
		}
	}
	in := services.ContactInput{Name: req.Name, Email: req.Email, Subject: req.Subject, Message: req.Message}
	if err := h.svc.Contact.Send(ctx, in, viewer); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
