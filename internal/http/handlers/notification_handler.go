package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

// NotificationListResponse is a page of notifications with the unread count.
type NotificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
	Pagination    Pagination            `json:"pagination"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     My notifications
// @Description Newest first. Comments and likes the caller made on their own content are hidden.
// @Description Supports a weak ETag via If-None-Match.
// @Tags        Notifications
// @Produce     json
// @Param       X-User-ID      header  string  true   "Caller"
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"
// @Param       page           query   int     false  "Page"
// @Param       page_size      query   int     false  "Page size"
// @Success     200  {object}  handlers.NotificationListResponse
// @Header      200  {string}  ETag  "Weak ETag of the notification set"
// @Success     304  {string}  string  "Not Modified"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUser(c)
	page, size := h.pageParams(c)

	if count, unread, latest, err := h.svc.Notifications.Stats(ctx, uid); err == nil {
		var ts int64
		if latest != nil {
			ts = latest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"notifications:%s:%d:%d:%d:%d:%d"`, uid, count, unread, ts, page, size)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	res, err := h.svc.Notifications.List(ctx, uid, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, NotificationListResponse{
		Notifications: res.Items,
		Unread:        res.Unread,
		Pagination:    pagination(page, size, res.Total),
	})
}

// OpenNotification godoc
// @ID          openNotification
// @Summary     Open a notification
// @Description Marks it read and answers 303 to what it is about: the content, the follower's profile, or the list.
// @Tags        Notifications
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller"
// @Param       id         path    string  true  "Notification ID"
// @Success     303  {object}  services.NotificationTarget
// @Header      303  {string}  Location  "Target URL"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /notifications/{id} [get]
func (h *Handlers) OpenNotification(c *gin.Context) {
	target, err := h.svc.Notifications.Open(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Location", h.targetURL(target))
	ok(c, http.StatusSeeOther, target)
}

func (h *Handlers) targetURL(t services.NotificationTarget) string {
	switch t.Kind {
	case services.TargetKindContent:
		return h.path("content", t.ContentID)
	case services.TargetKindProfile:
		return h.path("users", t.Username)
	default:
		return h.path("notifications")
	}
}
