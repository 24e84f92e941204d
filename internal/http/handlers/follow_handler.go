package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// FollowResponse reports the edge after a follow action.
type FollowResponse struct {
	Following bool `json:"following"`
	Changed   bool `json:"changed"`
}

// FollowListResponse is a page of followers or followees.
type FollowListResponse struct {
	Users      []PublicUser `json:"users"`
	Pagination Pagination   `json:"pagination"`
}

// FollowAction godoc
// @ID          followAction
// @Summary     Follow or unfollow a user
// @Description Following yourself or following twice changes nothing. Only a new edge notifies the followee.
// @Tags        Follows
// @Produce     json
// @Param       X-User-ID  header    string  true  "Caller"
// @Param       username   path      string  true  "User to (un)follow"
// @Param       action     path      string  true  "follow or unfollow"  Enums(follow, unfollow)
// @Success     200        {object}  handlers.FollowResponse
// @Failure     400        {object}  handlers.ErrorResponse
// @Failure     404        {object}  handlers.ErrorResponse
// @Router      /users/{username}/follow/{action} [post]
func (h *Handlers) FollowAction(c *gin.Context) {
	ctx := c.Request.Context()
	username, uid := c.Param("username"), currentUser(c)

	var (
		changed bool
		err     error
		resp    FollowResponse
	)
	switch c.Param("action") {
	case "follow":
		changed, err = h.svc.Follows.Follow(ctx, uid, username)
		resp = FollowResponse{Following: true, Changed: changed}
	case "unfollow":
		changed, err = h.svc.Follows.Unfollow(ctx, uid, username)
		resp = FollowResponse{Following: false, Changed: changed}
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action must be follow or unfollow")
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

// ListFollows godoc
// @ID          listFollows
// @Summary     Followers or followees of a user
// @Tags        Follows
// @Produce     json
// @Param       username     path   string  true   "User"
// @Param       follow_type  path   string  true   "followers or following"  Enums(followers, following)
// @Param       page         query  int     false  "Page"
// @Param       page_size    query  int     false  "Page size"
// @Success     200  {object}  handlers.FollowListResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{username}/{follow_type} [get]
func (h *Handlers) ListFollows(c *gin.Context) {
	ctx := c.Request.Context()
	page, size := h.pageParams(c)
	username := c.Param("username")

	var (
		users []domain.User
		total int64
		err   error
	)
	switch c.Param("follow_type") {
	case "followers":
		users, total, err = h.svc.Follows.Followers(ctx, username, page, size)
	case "following":
		users, total, err = h.svc.Follows.Following(ctx, username, page, size)
	default:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown follow list")
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, FollowListResponse{Users: publicUsers(users), Pagination: pagination(page, size, total)})
}
