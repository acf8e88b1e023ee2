package models

import "time"

// Post is a text entry published by a user, optionally filed under a group
// and optionally carrying one attached image. CreatedAt is assigned once at
// creation and drives the canonical feed order (newest first).
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	GroupID   *uint     `gorm:"index" json:"group_id,omitempty"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Image     string    `gorm:"size:512" json:"image,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Group     *Group    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"group,omitempty"`
	Comments  []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
}
