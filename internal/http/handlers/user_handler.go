package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

// RegisterRequest creates an account. Passwords are handled upstream.
type RegisterRequest struct {
	Username string `json:"username" binding:"required" example:"rumi"`
	Email    string `json:"email"    binding:"required" example:"rumi@konya.example"`
}

// VerifyRequest confirms an email address.
type VerifyRequest struct {
	Code string `json:"code" binding:"required" example:"K7Q2ZD"`
}

// ResendRequest asks for a fresh verification code.
type ResendRequest struct {
	Email string `json:"email" binding:"required" example:"rumi@konya.example"`
}

// UpdateProfileRequest is the JSON form of a profile update. Omitted fields
// keep their value; an empty birth_date clears it.
type UpdateProfileRequest struct {
	Username        *string `json:"username"         example:"mevlana"`
	Email           *string `json:"email"            example:"mevlana@konya.example"`
	BirthDate       *string `json:"birth_date"       example:"1207-09-30"`
	BirthPlace      *string `json:"birth_place"      example:"Balkh"`
	CurrentLocation *string `json:"current_location" example:"Konya"`
	Education       *string `json:"education"`
	Profession      *string `json:"profession"       example:"Poet"`
	About           *string `json:"about"`
}

// AccountResponse is the caller's own account.
type AccountResponse struct {
	User    *domain.User    `json:"user"`
	Profile *domain.Profile `json:"profile,omitempty"`
}

// ProfileResponse is a public profile page.
type ProfileResponse struct {
	User        *PublicUser      `json:"user"`
	Profile     *domain.Profile  `json:"profile"`
	Followers   int64            `json:"followers"`
	Following   int64            `json:"following"`
	IsFollowing bool             `json:"is_following"`
	Contents    []domain.Content `json:"contents"`
	Pagination  Pagination       `json:"pagination"`
}

// Register godoc
// @ID          register
// @Summary     Register an account
// @Description Creates a user with an empty profile and mails a verification code.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account"
// @Success     201   {object}  handlers.AccountResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409   {object}  handlers.ErrorResponse  "Username or email taken"
// @Router      /users [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and email are required")
		return
	}
	u, err := h.svc.Users.Register(c.Request.Context(), req.Username, req.Email)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, AccountResponse{User: u})
}

// Verify godoc
// @ID          verifyEmail
// @Summary     Verify an email address
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.VerifyRequest  true  "Code"
// @Success     200   {object}  handlers.AccountResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid code"
// @Router      /users/verify [post]
func (h *Handlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code is required")
		return
	}
	u, err := h.svc.Users.Verify(c.Request.Context(), strings.TrimSpace(req.Code))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AccountResponse{User: u})
}

// ResendVerification godoc
// @ID          resendVerification
// @Summary     Mail a new verification code
// @Tags        Users
// @Accept      json
// @Param       body  body  handlers.ResendRequest  true  "Address"
// @Success     202
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown address"
// @Failure     409  {object}  handlers.ErrorResponse  "Already verified"
// @Router      /users/verify/resend [post]
func (h *Handlers) ResendVerification(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email is required")
		return
	}
	if err := h.svc.Users.ResendVerification(c.Request.Context(), strings.TrimSpace(req.Email)); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Public profile
// @Description Profile, follow counts and published contents of a user.
// @Tags        Users
// @Produce     json
// @Param       username      path   string  true   "Username"
// @Param       content_type  query  string  false  "Filter contents by type"
// @Param       page          query  int     false  "Page"       minimum(1) default(1)
// @Param       page_size     query  int     false  "Page size"  minimum(1) default(10)
// @Success     200  {object}  handlers.ProfileResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{username} [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	page, size := h.pageParams(c)
	v, err := h.svc.Users.ProfileView(c.Request.Context(), c.Param("username"), currentUser(c), c.Query("content_type"), page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ProfileResponse{
		User:        publicUser(v.User),
		Profile:     v.Profile,
		Followers:   v.Followers,
		Following:   v.Following,
		IsFollowing: v.IsFollowing,
		Contents:    v.Contents,
		Pagination:  pagination(page, size, v.Total),
	})
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update my profile
// @Description Accepts JSON, or multipart/form-data with the same field names plus an "image" file.
// @Tags        Me
// @Accept      json,mpfd
// @Produce     json
// @Param       X-User-ID  header    string                          true  "Caller"
// @Param       body       body      handlers.UpdateProfileRequest  false "Fields to change"
// @Success     200        {object}  handlers.AccountResponse
// @Failure     400        {object}  handlers.ErrorResponse
// @Failure     409        {object}  handlers.ErrorResponse
// @Router      /me/profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var (
		req   UpdateProfileRequest
		image *multipart.FileHeader
	)
	if isMultipart(c) {
		form := func(name string) *string {
			if v, ok := c.GetPostForm(name); ok {
				return &v
			}
			return nil
		}
		req = UpdateProfileRequest{
			Username:        form("username"),
			Email:           form("email"),
			BirthDate:       form("birth_date"),
			BirthPlace:      form("birth_place"),
			CurrentLocation: form("current_location"),
			Education:       form("education"),
			Profession:      form("profession"),
			About:           form("about"),
		}
		image, _ = c.FormFile("image")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	in := services.ProfileInput{
		Username:        req.Username,
		Email:           req.Email,
		BirthPlace:      req.BirthPlace,
		CurrentLocation: req.CurrentLocation,
		Education:       req.Education,
		Profession:      req.Profession,
		About:           req.About,
	}
	if req.BirthDate != nil {
		if s := strings.TrimSpace(*req.BirthDate); s == "" {
			in.ClearBirthDate = true
		} else {
			d, err := time.Parse(time.DateOnly, s)
			if err != nil {
				abort(c, http.StatusBadRequest, ErrorResponse{
					Code:    ErrCodeValidation,
					Message: "enter a valid date",
					Fields:  map[string]string{"birth_date": "enter a valid date (YYYY-MM-DD)"},
				})
				return
			}
			in.BirthDate = &d
		}
	}
	closeImage, err := openUpload(image, &in.Image, &in.ImageName)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read image")
		return
	}
	defer closeImage()

	u, p, err := h.svc.Users.UpdateProfile(c.Request.Context(), currentUser(c), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AccountResponse{User: u, Profile: p})
}

// DeleteAccount godoc
// @ID          deleteAccount
// @Summary     Delete my account
// @Description Authored content, comments and messages stay with their author reference cleared.
// @Tags        Me
// @Param       X-User-ID  header  string  true  "Caller"
// @Success     204
// @Router      /me [delete]
func (h *Handlers) DeleteAccount(c *gin.Context) {
	if err := h.svc.Users.Delete(c.Request.Context(), currentUser(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// openUpload opens fh into r and name. The returned func closes the file and
// is safe to call when fh is nil.
func openUpload(fh *multipart.FileHeader, r *io.Reader, name *string) (func(), error) {
	if fh == nil {
		return func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return func() {}, err
	}
	*r, *name = f, fh.Filename
	return func() { _ = f.Close() }, nil
}
