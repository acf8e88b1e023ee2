package store_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yatube/yatube/config"
	"github.com/yatube/yatube/models"
	"github.com/yatube/yatube/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	config.SetForTesting(config.AppConfig{
		JWTSecret:         "test-secret",
		PageSize:          10,
		IndexCacheSeconds: 20,
		GinMode:           "test",
		LogLevel:          "silent",
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled :memory: connection per conn means a database per conn;
	// pin the pool to one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Group{}, &models.Post{}, &models.Comment{}, &models.Follow{},
	))
	return store.New(db)
}

func createUser(t *testing.T, st *store.Store, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	require.NoError(t, st.CreateUser(user))
	return user
}

func createGroup(t *testing.T, st *store.Store, slug string) *models.Group {
	t.Helper()
	group := &models.Group{Title: "Group " + slug, Slug: slug, Description: "test group"}
	require.NoError(t, st.CreateGroup(group))
	return group
}

func createPost(t *testing.T, st *store.Store, author *models.User, group *models.Group, text string, createdAt time.Time) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: author.ID, Text: text, CreatedAt: createdAt}
	if group != nil {
		post.GroupID = &group.ID
	}
	require.NoError(t, st.CreatePost(post))
	return post
}

func createPosts(t *testing.T, st *store.Store, author *models.User, group *models.Group, n int) []*models.Post {
	t.Helper()
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, createPost(t, st, author, group, fmt.Sprintf("post %d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	return posts
}
