package store

import (
	"gorm.io/gorm"

	"github.com/yatube/yatube/models"
	"github.com/yatube/yatube/utils"
)

// FeedPage is one page of a feed: the post slice plus paginator metadata.
type FeedPage struct {
	Posts []models.Post `json:"items"`
	Page  utils.Page    `json:"pagination"`
}

// feedQuery is the base shape shared by all feeds: newest first, author and
// group eagerly joined for rendering. The id tiebreak keeps ordering stable
// for posts created in the same instant.
func (s *Store) feedQuery() *gorm.DB {
	return s.db.Model(&models.Post{}).
		Preload("Author").
		Preload("Group").
		Order("posts.created_at DESC, posts.id DESC")
}

// fetchPage counts the filtered set, normalizes the requested page number
// against it, and fetches that slice.
func (s *Store) fetchPage(query *gorm.DB, rawPage string, pageSize int) (*FeedPage, error) {
	// New session so the Count finisher does not poison the Find chain.
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page := utils.GetPage(rawPage, total, pageSize)

	var posts []models.Post
	if err := query.Offset(page.Offset()).Limit(page.Size).Find(&posts).Error; err != nil {
		return nil, err
	}
	return &FeedPage{Posts: posts, Page: page}, nil
}

// IndexFeed returns a page of all posts.
func (s *Store) IndexFeed(rawPage string, pageSize int) (*FeedPage, error) {
	return s.fetchPage(s.feedQuery(), rawPage, pageSize)
}

// GroupFeed returns a page of posts filed under the group with the given
// slug. The group itself is returned for rendering; an unknown slug is a
// not-found error.
func (s *Store) GroupFeed(slug, rawPage string, pageSize int) (*models.Group, *FeedPage, error) {
	group, err := s.GroupBySlug(slug)
	if err != nil {
		return nil, nil, err
	}
	feed, err := s.fetchPage(s.feedQuery().Where("posts.group_id = ?", group.ID), rawPage, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return group, feed, nil
}

// ProfileFeed returns a page of posts by the author with the given username.
// An unknown username is a not-found error.
func (s *Store) ProfileFeed(username, rawPage string, pageSize int) (*models.User, *FeedPage, error) {
	author, err := s.UserByUsername(username)
	if err != nil {
		return nil, nil, err
	}
	feed, err := s.fetchPage(s.feedQuery().Where("posts.author_id = ?", author.ID), rawPage, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return author, feed, nil
}

// FollowFeed returns a page of posts by authors the given user follows. The
// route serving it is auth-gated, so userID always identifies a real user.
func (s *Store) FollowFeed(userID uint, rawPage string, pageSize int) (*FeedPage, error) {
	query := s.feedQuery().
		Joins("JOIN follows ON follows.author_id = posts.author_id AND follows.user_id = ?", userID)
	return s.fetchPage(query, rawPage, pageSize)
}
