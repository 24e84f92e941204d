package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sufi-platform/internal/domain"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

// ContentRequest is the JSON form of a create or update. Multipart requests
// use the same field names plus an "image" file.
type ContentRequest struct {
	Title        string `json:"title"        example:"The Reed Flute"`
	Introduction string `json:"introduction" example:"<p>Listen to the reed.</p>"`
	Text         string `json:"text"         example:"<p>Listen to the reed, how it tells a tale...</p>"`
	ContentType  string `json:"content_type" example:"insightful_essay"`
	Topic        string `json:"topic"        example:"literature"`
	Language     string `json:"language"     example:"en"`
	IsPublished  *bool  `json:"is_published" example:"true"`
}

// ContentListResponse is a page of content.
type ContentListResponse struct {
	Contents   []domain.Content `json:"contents"`
	Pagination Pagination       `json:"pagination"`
}

// ContentDetailResponse is a content item with the first page of comments.
type ContentDetailResponse struct {
	Content    *domain.Content  `json:"content"`
	Comments   []domain.Comment `json:"comments"`
	Pagination Pagination       `json:"pagination"`
}

// bindContent reads a ContentRequest from JSON or multipart form. The
// returned func releases an uploaded image.
func bindContent(c *gin.Context) (services.ContentInput, func(), error) {
	var (
		req   ContentRequest
		image *multipart.FileHeader
	)
	if isMultipart(c) {
		req = ContentRequest{
			Title:        c.PostForm("title"),
			Introduction: c.PostForm("introduction"),
			Text:         c.PostForm("text"),
			ContentType:  c.PostForm("content_type"),
			Topic:        c.PostForm("topic"),
			Language:     c.PostForm("language"),
		}
		if v, ok := c.GetPostForm("is_published"); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return services.ContentInput{}, func() {}, errors.New("is_published must be a boolean")
			}
			req.IsPublished = &b
		}
		image, _ = c.FormFile("image")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		return services.ContentInput{}, func() {}, errors.New("invalid JSON body")
	}

	in := services.ContentInput{
		Title:        req.Title,
		Introduction: req.Introduction,
		Text:         req.Text,
		ContentType:  req.ContentType,
		Topic:        req.Topic,
		Language:     req.Language,
		IsPublished:  req.IsPublished,
	}
	release, err := openUpload(image, &in.Image, &in.ImageName)
	if err != nil {
		return services.ContentInput{}, release, errors.New("cannot read image")
	}
	return in, release, nil
}

// ListTopic godoc
// @ID          listTopic
// @Summary     Contents of a topic
// @Description Published contents, newest first. Use all_contents for every topic.
// @Tags        Content
// @Produce     json
// @Param       topic                   path   string  true   "Topic"
// @Param       content_type            query  string  false  "Content type filter"
// @Param       show_following_content  query  bool    false  "Only authors the caller follows"
// @Param       page                    query  int     false  "Page"
// @Param       page_size               query  int     false  "Page size"
// @Success     200  {object}  handlers.ContentListResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /topics/{topic} [get]
func (h *Handlers) ListTopic(c *gin.Context) {
	page, size := h.pageParams(c)
	onlyFollowed, _ := strconv.ParseBool(c.Query("show_following_content"))
	items, total, err := h.svc.Contents.ListTopic(c.Request.Context(), c.Param("topic"), c.Query("content_type"), currentUser(c), onlyFollowed, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ContentListResponse{Contents: items, Pagination: pagination(page, size, total)})
}

// Dashboard godoc
// @ID          dashboard
// @Summary     My contents
// @Description Every content item of the caller, drafts included.
// @Tags        Me
// @Produce     json
// @Param       X-User-ID     header  string  true   "Caller"
// @Param       content_type  query   string  false  "Content type filter"
// @Success     200  {object}  handlers.ContentListResponse
// @Router      /me/dashboard [get]
func (h *Handlers) Dashboard(c *gin.Context) {
	page, size := h.pageParams(c)
	items, total, err := h.svc.Contents.Dashboard(c.Request.Context(), currentUser(c), c.Query("content_type"), page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ContentListResponse{Contents: items, Pagination: pagination(page, size, total)})
}

// Search godoc
// @ID          search
// @Summary     Search contents
// @Description Case-insensitive substring search over the selected fields.
// @Tags        Content
// @Produce     json
// @Param       q             query  string  true   "Query"
// @Param       fields        query  string  true   "Comma separated: title,introduction,text,comment,username"
// @Param       topic         query  string  false  "Topic filter"
// @Param       content_type  query  string  false  "Content type filter"
// @Param       sort          query  string  false  "newest or relevance"  Enums(newest, relevance)
// @Success     200  {object}  handlers.ContentListResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /search [get]
func (h *Handlers) Search(c *gin.Context) {
	page, size := h.pageParams(c)
	var fields []string
	for _, raw := range c.QueryArray("fields") {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}
	in := services.SearchInput{
		Query:       c.Query("q"),
		Fields:      fields,
		Topic:       c.Query("topic"),
		ContentType: c.Query("content_type"),
		Sort:        c.Query("sort"),
	}
	items, total, err := h.svc.Contents.Search(c.Request.Context(), in, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ContentListResponse{Contents: items, Pagination: pagination(page, size, total)})
}

// CreateContent godoc
// @ID          createContent
// @Summary     Publish content
// @Tags        Content
// @Accept      json,mpfd
// @Produce     json
// @Param       X-User-ID  header    string                   true  "Caller"
// @Param       body       body      handlers.ContentRequest  true  "Content"
// @Success     201        {object}  domain.Content
// @Failure     400        {object}  handlers.ErrorResponse
// @Router      /content [post]
func (h *Handlers) CreateContent(c *gin.Context) {
	in, release, err := bindContent(c)
	defer release()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	out, err := h.svc.Contents.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Location", h.path("content", out.ID))
	ok(c, http.StatusCreated, out)
}

// GetContent godoc
// @ID          getContent
// @Summary     Content detail
// @Description Counts a view and returns the first page of comments.
// @Tags        Content
// @Produce     json
// @Param       id         path   string  true   "Content ID"
// @Param       page       query  int     false  "Comment page"
// @Param       page_size  query  int     false  "Comment page size"
// @Success     200  {object}  handlers.ContentDetailResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /content/{id} [get]
func (h *Handlers) GetContent(c *gin.Context) {
	ctx := c.Request.Context()
	page, size := h.pageParams(c)
	content, err := h.svc.Contents.Detail(ctx, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	comments, total, err := h.svc.Comments.ListForContent(ctx, content.ID, page, size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ContentDetailResponse{Content: content, Comments: comments, Pagination: pagination(page, size, total)})
}

// UpdateContent godoc
// @ID          updateContent
// @Summary     Edit content
// @Description Only the author may edit; others get 403 with a redirect to the content.
// @Tags        Content
// @Accept      json,mpfd
// @Produce     json
// @Param       X-User-ID  header    string                   true  "Caller"
// @Param       id         path      string                   true  "Content ID"
// @Param       body       body      handlers.ContentRequest  true  "Content"
// @Success     200        {object}  domain.Content
// @Failure     403        {object}  handlers.ErrorResponse
// @Failure     404        {object}  handlers.ErrorResponse
// @Router      /content/{id} [put]
func (h *Handlers) UpdateContent(c *gin.Context) {
	id := c.Param("id")
	in, release, err := bindContent(c)
	defer release()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	out, err := h.svc.Contents.Update(c.Request.Context(), currentUser(c), id, in)
	switch {
	case errors.Is(err, services.ErrForbiddenContent):
		failForbidden(c, err.Error(), h.path("content", id))
	case err != nil:
		failErr(c, err)
	default:
		ok(c, http.StatusOK, out)
	}
}

// DeleteContent godoc
// @ID          deleteContent
// @Summary     Delete content
// @Tags        Content
// @Param       X-User-ID  header  string  true  "Caller"
// @Param       id         path    string  true  "Content ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /content/{id} [delete]
func (h *Handlers) DeleteContent(c *gin.Context) {
	id := c.Param("id")
	err := h.svc.Contents.Delete(c.Request.Context(), currentUser(c), id)
	switch {
	case errors.Is(err, services.ErrForbiddenContent):
		failForbidden(c, err.Error(), h.path("content", id))
	case err != nil:
		failErr(c, err)
	default:
		noContent(c)
	}
}
