package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yatube/yatube/models"
)

// Store is the typed query layer over the relational database. Every
// operation is a single-row read or write, so the database's row-level
// atomicity is the only coordination the service relies on.
type Store struct {
	db *gorm.DB
}

// New wraps a gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// UserByUsername fetches a user by unique username.
func (s *Store) UserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByID fetches a user by primary key.
func (s *Store) UserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(user *models.User) error {
	return s.db.Create(user).Error
}

// SaveUser persists changes to an existing user.
func (s *Store) SaveUser(user *models.User) error {
	return s.db.Save(user).Error
}

// UserByProvider fetches a user created through a third-party sign-in.
func (s *Store) UserByProvider(provider, providerID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("provider = ? AND provider_id = ?", provider, providerID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GroupBySlug fetches a group by its URL slug.
func (s *Store) GroupBySlug(slug string) (*models.Group, error) {
	var group models.Group
	if err := s.db.Where("slug = ?", slug).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// GroupByID fetches a group by primary key.
func (s *Store) GroupByID(id uint) (*models.Group, error) {
	var group models.Group
	if err := s.db.First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// CreateGroup inserts a new group.
func (s *Store) CreateGroup(group *models.Group) error {
	return s.db.Create(group).Error
}

// PostByID fetches a post with its author and group preloaded.
func (s *Store) PostByID(id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.Preload("Author").Preload("Group").First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// CreatePost inserts a new post.
func (s *Store) CreatePost(post *models.Post) error {
	return s.db.Create(post).Error
}

// SavePost persists edits to an existing post. CreatedAt and AuthorID are
// never touched here; the edit surface only changes text, group and image.
func (s *Store) SavePost(post *models.Post) error {
	return s.db.Model(post).Select("text", "group_id", "image", "updated_at").Updates(map[string]interface{}{
		"text":     post.Text,
		"group_id": post.GroupID,
		"image":    post.Image,
	}).Error
}

// DeletePost removes a post and its comments. The post disappears from all
// feeds immediately; only the index page cache may keep serving it until the
// cache window expires.
func (s *Store) DeletePost(post *models.Post) error {
	if err := s.db.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	return s.db.Delete(post).Error
}

// CreateComment inserts a new comment on an existing post.
func (s *Store) CreateComment(comment *models.Comment) error {
	return s.db.Create(comment).Error
}

// CommentsForPost returns all comments on a post, oldest first, with
// authors preloaded.
func (s *Store) CommentsForPost(postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}
