package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yatube/yatube/config"
	"github.com/yatube/yatube/middleware"
	"github.com/yatube/yatube/models"
	"github.com/yatube/yatube/store"
	"github.com/yatube/yatube/utils"
)

// PostController serves the feeds and the post/comment write paths.
type PostController struct {
	store     *store.Store
	cache     utils.PageCache
	cacheTTL  time.Duration
	pageSize  int
	uploadDir string
}

// NewPostController creates a PostController. The page cache is injected so
// the index handler never reaches for ambient cache state.
func NewPostController(st *store.Store, cache utils.PageCache) *PostController {
	cfg := config.Get()
	return &PostController{
		store:     st,
		cache:     cache,
		cacheTTL:  time.Duration(cfg.IndexCacheSeconds) * time.Second,
		pageSize:  cfg.PageSize,
		uploadDir: cfg.UploadDir,
	}
}

// Index returns the paginated feed of all posts. The rendered body is cached
// for the configured window keyed by path and query; within that window
// writes are not reflected. Only expiry or an explicit cache clear refreshes
// the page earlier.
func (p *PostController) Index(ctx *gin.Context) {
	key := ctx.Request.URL.RequestURI()
	if b, ok := p.cache.Get(key); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}

	feed, err := p.store.IndexFeed(ctx.Query("page"), p.pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to load index feed")
		return
	}

	payload := gin.H{"items": feed.Posts, "pagination": feed.Page}
	if b, err := json.Marshal(utils.JSONResponse{Code: 0, Message: "success", Data: payload}); err == nil {
		p.cache.Set(key, b, p.cacheTTL)
	}
	utils.Success(ctx, payload)
}

// GroupFeed returns the paginated feed of one group, 404 for unknown slugs.
func (p *PostController) GroupFeed(ctx *gin.Context) {
	slug := ctx.Param("slug")
	group, feed, err := p.store.GroupFeed(slug, ctx.Query("page"), p.pageSize)
	if err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "group not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load group feed")
		return
	}
	utils.Success(ctx, gin.H{"group": group, "items": feed.Posts, "pagination": feed.Page})
}

// Profile returns an author's paginated posts plus whether the caller
// follows them. Anonymous callers always see following=false.
func (p *PostController) Profile(ctx *gin.Context) {
	username := ctx.Param("username")
	author, feed, err := p.store.ProfileFeed(username, ctx.Query("page"), p.pageSize)
	if err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40402, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load profile feed")
		return
	}

	callerID, _ := getUserID(ctx)
	utils.Success(ctx, gin.H{
		"author":     author,
		"following":  p.store.IsFollowing(callerID, author.ID),
		"items":      feed.Posts,
		"pagination": feed.Page,
	})
}

// PostDetail returns one post with its comments, 404 for unknown ids.
func (p *PostController) PostDetail(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	comments, err := p.store.CommentsForPost(post.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load comments")
		return
	}
	utils.Success(ctx, gin.H{"post": post, "comments": comments})
}

// postForm carries a validated post submission.
type postForm struct {
	Text    string
	GroupID *uint
	Image   string
}

// bindPostForm validates a post submission from either JSON or form input.
// On failure it answers with the field errors and the submitted values, so
// the client can re-render the form without losing anything, and reports
// false; no store mutation has happened at that point.
func (p *PostController) bindPostForm(ctx *gin.Context) (*postForm, bool) {
	var text, groupRaw string
	var imageFile *multipart.FileHeader

	if strings.HasPrefix(ctx.ContentType(), "application/json") {
		var req struct {
			Text  string `json:"text"`
			Group string `json:"group"`
		}
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
			return nil, false
		}
		text, groupRaw = req.Text, req.Group
	} else {
		text = ctx.PostForm("text")
		groupRaw = ctx.PostForm("group")
		if fh, err := ctx.FormFile("image"); err == nil {
			imageFile = fh
		}
	}

	fieldErrors := map[string]string{}
	form := &postForm{Text: utils.Sanitize(strings.TrimSpace(text))}
	if form.Text == "" {
		fieldErrors["text"] = "this field is required"
	}

	if groupRaw = strings.TrimSpace(groupRaw); groupRaw != "" {
		id, err := strconv.ParseUint(groupRaw, 10, 32)
		if err != nil {
			fieldErrors["group"] = "invalid group"
		} else if _, err := p.store.GroupByID(uint(id)); err != nil {
			fieldErrors["group"] = "group does not exist"
		} else {
			gid := uint(id)
			form.GroupID = &gid
		}
	}

	if imageFile != nil {
		url, err := p.saveImage(imageFile)
		if err != nil {
			fieldErrors["image"] = err.Error()
		} else {
			form.Image = url
		}
	}

	if len(fieldErrors) > 0 {
		utils.FormInvalid(ctx, 40021, fieldErrors, gin.H{"text": text, "group": groupRaw})
		return nil, false
	}
	return form, true
}

// CreatePost publishes a new post for the authenticated user and redirects
// to their profile feed, where the post is immediately visible.
func (p *PostController) CreatePost(ctx *gin.Context) {
	form, ok := p.bindPostForm(ctx)
	if !ok {
		return
	}

	userID, _ := getUserID(ctx)
	post := models.Post{
		AuthorID: userID,
		Text:     form.Text,
		GroupID:  form.GroupID,
		Image:    form.Image,
	}
	if err := p.store.CreatePost(&post); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to create post")
		return
	}

	username, _ := getUsername(ctx)
	ctx.Redirect(http.StatusFound, "/profile/"+username+"/")
}

// EditPost updates a post's text, group and image. Only the author may edit;
// anyone else is silently redirected to the detail page. Author and creation
// timestamp never change.
func (p *PostController) EditPost(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	detailPath := fmt.Sprintf("/posts/%d/", post.ID)
	userID, _ := getUserID(ctx)
	if post.AuthorID != userID {
		ctx.Redirect(http.StatusFound, detailPath)
		return
	}

	form, ok := p.bindPostForm(ctx)
	if !ok {
		return
	}

	post.Text = form.Text
	post.GroupID = form.GroupID
	if form.Image != "" {
		post.Image = form.Image
	}
	if err := p.store.SavePost(post); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to update post")
		return
	}

	ctx.Redirect(http.StatusFound, detailPath)
}

// DeletePost removes a post. Allowed for the author and admins. The post
// drops out of every feed immediately; a cached index page keeps serving it
// until the cache window expires.
func (p *PostController) DeletePost(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	userID, _ := getUserID(ctx)
	if post.AuthorID != userID && !isAdmin(ctx) {
		ctx.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
		return
	}

	if err := p.store.DeletePost(post); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to delete post")
		return
	}

	username, _ := getUsername(ctx)
	ctx.Redirect(http.StatusFound, "/profile/"+username+"/")
}

// AddComment attaches a comment to an existing post and redirects back to
// the detail page. Comments cannot be edited afterwards.
func (p *PostController) AddComment(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	var text string
	if strings.HasPrefix(ctx.ContentType(), "application/json") {
		var req struct {
			Text string `json:"text"`
		}
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
			return
		}
		text = req.Text
	} else {
		text = ctx.PostForm("text")
	}

	clean := utils.Sanitize(strings.TrimSpace(text))
	if clean == "" {
		utils.FormInvalid(ctx, 40023, map[string]string{"text": "this field is required"}, gin.H{"text": text})
		return
	}

	userID, _ := getUserID(ctx)
	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: userID,
		Text:     clean,
	}
	if err := p.store.CreateComment(&comment); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to create comment")
		return
	}

	ctx.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
}

// loadPost resolves the :id path param, answering 404/400 itself on failure.
func (p *PostController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
		return nil, false
	}
	post, err := p.store.PostByID(uint(id))
	if err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to load post")
		return nil, false
	}
	return post, true
}

const maxImageSize = 10 * 1024 * 1024

// saveImage verifies the upload is a well-formed image and stores it under a
// dated directory with a collision-free name. Returns the public URL.
func (p *PostController) saveImage(header *multipart.FileHeader) (string, error) {
	if header.Size > maxImageSize {
		return "", fmt.Errorf("image exceeds %d bytes", maxImageSize)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read image")
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read image")
	}
	if _, ok := utils.DetectImage(head[:n]); !ok {
		return "", fmt.Errorf("upload a valid image")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to read image")
	}

	now := time.Now()
	baseDir := filepath.Join(p.uploadDir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to store image")
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	dstPath := filepath.Join(baseDir, name)
	out, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to store image")
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(file, maxImageSize)); err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("failed to store image")
	}

	return "/" + filepath.ToSlash(dstPath), nil
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func getUsername(ctx *gin.Context) (string, bool) {
	value, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return "", false
	}
	name, ok := value.(string)
	return name, ok
}

func isAdmin(ctx *gin.Context) bool {
	uname, ok := getUsername(ctx)
	if !ok || uname == "" {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}
