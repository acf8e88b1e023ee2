package store

import (
	"errors"

	"github.com/yatube/yatube/models"
)

// ErrSelfFollow is returned when a user attempts to follow themselves. The
// edge is never created, regardless of which surface the request came in on.
var ErrSelfFollow = errors.New("users cannot follow themselves")

// Follow creates the (user, author) edge if it does not already exist.
// Calling it twice leaves exactly one edge and is not an error.
func (s *Store) Follow(userID, authorID uint) error {
	if userID == authorID {
		return ErrSelfFollow
	}
	follow := models.Follow{UserID: userID, AuthorID: authorID}
	return s.db.Where(models.Follow{UserID: userID, AuthorID: authorID}).
		FirstOrCreate(&follow).Error
}

// Unfollow removes the (user, author) edge. A missing edge is not an error.
func (s *Store) Unfollow(userID, authorID uint) error {
	return s.db.Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{}).Error
}

// IsFollowing reports whether user follows author. Anonymous callers pass
// userID 0, which never matches an edge.
func (s *Store) IsFollowing(userID, authorID uint) bool {
	if userID == 0 {
		return false
	}
	var count int64
	if err := s.db.Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}
