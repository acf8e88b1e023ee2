package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yatube/yatube/config"
	"github.com/yatube/yatube/middleware"
	"github.com/yatube/yatube/models"
	"github.com/yatube/yatube/routes"
	"github.com/yatube/yatube/store"
	"github.com/yatube/yatube/utils"
)

type testServer struct {
	router *gin.Engine
	store  *store.Store
	cache  *utils.MemoryPageCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	config.SetForTesting(config.AppConfig{
		AppPort:            "8080",
		JWTSecret:          "test-secret",
		GinMode:            "test",
		PageSize:           10,
		IndexCacheSeconds:  1,
		UploadDir:          t.TempDir(),
		RateLimitPerMinute: 10000,
		AllowedOrigins:     []string{"*"},
		LogLevel:           "error",
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Group{}, &models.Post{}, &models.Comment{}, &models.Follow{},
	))

	cache := utils.NewMemoryPageCache()
	return &testServer{
		router: routes.SetupRouter(db, cache),
		store:  store.New(db),
		cache:  cache,
	}
}

func (s *testServer) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	require.NoError(t, s.store.CreateUser(user))
	return user
}

func (s *testServer) createPost(t *testing.T, author *models.User, text string) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: author.ID, Text: text}
	require.NoError(t, s.store.CreatePost(post))
	return post
}

func authCookie(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	token, err := utils.GenerateToken(user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: middleware.AuthCookieName, Value: token}
}

func (s *testServer) do(t *testing.T, method, path string, body *url.Values, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as != nil {
		req.AddCookie(authCookie(t, as))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func (s *testServer) postCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, s.store.DB().Model(&models.Post{}).Count(&count).Error)
	return count
}

func TestAnonymousCreateRedirectsToLoginWithNext(t *testing.T) {
	s := newTestServer(t)
	form := url.Values{"text": {"hello"}}

	w := s.do(t, http.MethodPost, "/create/", &form, nil)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/login/", loc.Path)
	assert.Equal(t, "/create/", loc.Query().Get("next"))
	assert.Equal(t, int64(0), s.postCount(t))
}

func TestCreatePostVisibleInFeeds(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "vasya")
	form := url.Values{"text": {"my first post"}}

	w := s.do(t, http.MethodPost, "/create/", &form, author)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/vasya/", w.Header().Get("Location"))
	assert.Equal(t, int64(1), s.postCount(t))

	// Immediately visible on the index (fresh cache) and the profile feed.
	idx := decodeData(t, s.do(t, http.MethodGet, "/", nil, nil))
	require.Len(t, idx["items"], 1)

	profile := decodeData(t, s.do(t, http.MethodGet, "/profile/vasya/", nil, nil))
	require.Len(t, profile["items"], 1)
}

func TestCreatePostBlankTextRejected(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "vasya")
	form := url.Values{"text": {"   "}, "group": {""}}

	w := s.do(t, http.MethodPost, "/create/", &form, author)

	require.Equal(t, http.StatusBadRequest, w.Code)
	data := decodeData(t, w)
	errs := data["errors"].(map[string]any)
	assert.Equal(t, "this field is required", errs["text"])
	// The submitted values come back for re-display.
	submitted := data["form"].(map[string]any)
	assert.Equal(t, "   ", submitted["text"])
	assert.Equal(t, int64(0), s.postCount(t))
}

func TestCreatePostUnknownGroupRejected(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "vasya")
	form := url.Values{"text": {"hello"}, "group": {"999"}}

	w := s.do(t, http.MethodPost, "/create/", &form, author)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errs := decodeData(t, w)["errors"].(map[string]any)
	assert.Equal(t, "group does not exist", errs["group"])
	assert.Equal(t, int64(0), s.postCount(t))
}

// A 1x1 transparent GIF, the smallest well-formed image payload.
var smallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
	0x0A, 0x00, 0x3B,
}

func (s *testServer) doMultipart(t *testing.T, path string, fields map[string]string, fileField, fileName string, file []byte, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(fileField, fileName)
	require.NoError(t, err)
	_, err = fw.Write(file)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if as != nil {
		req.AddCookie(authCookie(t, as))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestCreatePostWithImage(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "vasya")

	w := s.doMultipart(t, "/create/", map[string]string{"text": "with image"}, "image", "small.gif", smallGIF, author)

	require.Equal(t, http.StatusFound, w.Code)
	var post models.Post
	require.NoError(t, s.store.DB().First(&post).Error)
	assert.NotEmpty(t, post.Image)
}

func TestCreatePostRejectsNonImagePayload(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "vasya")

	w := s.doMultipart(t, "/create/", map[string]string{"text": "bad image"}, "image", "notes.txt", []byte("just plain text, definitely not pixels"), author)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errs := decodeData(t, w)["errors"].(map[string]any)
	assert.Equal(t, "upload a valid image", errs["image"])
	assert.Equal(t, int64(0), s.postCount(t))
}

func TestEditPostByNonAuthorIsSilentRedirect(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	other := s.createUser(t, "other")
	post := s.createPost(t, author, "original text")
	form := url.Values{"text": {"hijacked"}}

	w := s.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/edit/", post.ID), &form, other)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var stored models.Post
	require.NoError(t, s.store.DB().First(&stored, post.ID).Error)
	assert.Equal(t, "original text", stored.Text)
}

func TestEditPostByAuthorUpdatesFieldsOnly(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	post := s.createPost(t, author, "original text")
	var before models.Post
	require.NoError(t, s.store.DB().First(&before, post.ID).Error)

	form := url.Values{"text": {"edited text"}}
	w := s.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/edit/", post.ID), &form, author)
	require.Equal(t, http.StatusFound, w.Code)

	var after models.Post
	require.NoError(t, s.store.DB().First(&after, post.ID).Error)
	assert.Equal(t, "edited text", after.Text)
	assert.Equal(t, before.AuthorID, after.AuthorID)
	assert.WithinDuration(t, before.CreatedAt, after.CreatedAt, time.Millisecond)
}

func TestAddCommentOnMissingPostIs404(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser(t, "user")
	form := url.Values{"text": {"nice post"}}

	w := s.do(t, http.MethodPost, "/posts/999/comment/", &form, user)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddCommentAndReadBack(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	reader := s.createUser(t, "reader")
	post := s.createPost(t, author, "post under discussion")
	form := url.Values{"text": {"great read"}}

	w := s.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/comment/", post.ID), &form, reader)
	require.Equal(t, http.StatusFound, w.Code)

	detail := decodeData(t, s.do(t, http.MethodGet, fmt.Sprintf("/posts/%d/", post.ID), nil, nil))
	comments := detail["comments"].([]any)
	require.Len(t, comments, 1)
	first := comments[0].(map[string]any)
	assert.Equal(t, "great read", first["text"])
}

func TestBlankCommentRejected(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	post := s.createPost(t, author, "post")
	form := url.Values{"text": {""}}

	w := s.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/comment/", post.ID), &form, author)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var count int64
	require.NoError(t, s.store.DB().Model(&models.Comment{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestProfileShowsFollowStatus(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	reader := s.createUser(t, "reader")
	require.NoError(t, s.store.Follow(reader.ID, author.ID))

	// Anonymous callers always see following=false.
	anon := decodeData(t, s.do(t, http.MethodGet, "/profile/author/", nil, nil))
	assert.Equal(t, false, anon["following"])

	asReader := decodeData(t, s.do(t, http.MethodGet, "/profile/author/", nil, reader))
	assert.Equal(t, true, asReader["following"])
}

func TestFollowAndUnfollowEndpoints(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	reader := s.createUser(t, "reader")
	s.createPost(t, author, "for followers")

	w := s.do(t, http.MethodGet, "/profile/author/follow/", nil, reader)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/follow/", w.Header().Get("Location"))

	// Follow twice: still exactly one edge, still one post in the feed.
	s.do(t, http.MethodGet, "/profile/author/follow/", nil, reader)
	feed := decodeData(t, s.do(t, http.MethodGet, "/follow/", nil, reader))
	require.Len(t, feed["items"], 1)

	w = s.do(t, http.MethodGet, "/profile/author/unfollow/", nil, reader)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/author/", w.Header().Get("Location"))

	feed = decodeData(t, s.do(t, http.MethodGet, "/follow/", nil, reader))
	assert.Empty(t, feed["items"])
}

func TestSelfFollowCreatesNoEdge(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser(t, "narcissus")

	w := s.do(t, http.MethodGet, "/profile/narcissus/follow/", nil, user)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/narcissus/", w.Header().Get("Location"))

	var count int64
	require.NoError(t, s.store.DB().Model(&models.Follow{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestFollowFeedExcludesNonFollowedAuthors(t *testing.T) {
	s := newTestServer(t)
	followed := s.createUser(t, "followed")
	ignored := s.createUser(t, "ignored")
	reader := s.createUser(t, "reader")
	s.createPost(t, followed, "in feed")
	s.createPost(t, ignored, "not in feed")
	require.NoError(t, s.store.Follow(reader.ID, followed.ID))

	feed := decodeData(t, s.do(t, http.MethodGet, "/follow/", nil, reader))
	items := feed["items"].([]any)
	require.Len(t, items, 1)
	post := items[0].(map[string]any)
	assert.Equal(t, "in feed", post["text"])
}

func TestIndexCacheServesStalePageUntilExpiry(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	post := s.createPost(t, author, "doomed post")

	// Prime the cache.
	first := s.do(t, http.MethodGet, "/", nil, nil)
	require.Contains(t, first.Body.String(), "doomed post")

	require.NoError(t, s.store.DeletePost(post))

	// Within the window the deleted post is still served.
	stale := s.do(t, http.MethodGet, "/", nil, nil)
	assert.Contains(t, stale.Body.String(), "doomed post")

	// After the window (1s in tests) the page is recomputed.
	time.Sleep(1100 * time.Millisecond)
	fresh := s.do(t, http.MethodGet, "/", nil, nil)
	assert.NotContains(t, fresh.Body.String(), "doomed post")
}

func TestIndexCacheClearForcesFreshness(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	post := s.createPost(t, author, "doomed post")

	s.do(t, http.MethodGet, "/", nil, nil)
	require.NoError(t, s.store.DeletePost(post))

	s.cache.Clear()
	fresh := s.do(t, http.MethodGet, "/", nil, nil)
	assert.NotContains(t, fresh.Body.String(), "doomed post")
}

func TestIndexCacheKeyedByQuery(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	for i := 0; i < 13; i++ {
		s.createPost(t, author, fmt.Sprintf("post number %d", i))
	}

	page1 := decodeData(t, s.do(t, http.MethodGet, "/", nil, nil))
	require.Len(t, page1["items"], 10)

	// A different query is a different cache key, not the page-1 bytes.
	page2 := decodeData(t, s.do(t, http.MethodGet, "/?page=2", nil, nil))
	require.Len(t, page2["items"], 3)
}

func TestUnknownResourcesAre404(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/group/no-such-slug/", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/profile/nobody/", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/posts/424242/", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/unexisting_page/", nil, nil).Code)
}

func TestGroupFeedOnlyShowsGroupPosts(t *testing.T) {
	s := newTestServer(t)
	author := s.createUser(t, "author")
	group := &models.Group{Title: "Test group", Slug: "test-slug", Description: "test"}
	require.NoError(t, s.store.CreateGroup(group))
	grouped := &models.Post{AuthorID: author.ID, Text: "in the group", GroupID: &group.ID}
	require.NoError(t, s.store.CreatePost(grouped))
	s.createPost(t, author, "ungrouped")

	data := decodeData(t, s.do(t, http.MethodGet, "/group/test-slug/", nil, nil))
	items := data["items"].([]any)
	require.Len(t, items, 1)
	post := items[0].(map[string]any)
	assert.Equal(t, "in the group", post["text"])
}
