package models

import (
	"time"

	"gorm.io/gorm"
)

// Review is a customer review. One per user, rating bounded 1..5, only
// customers owning at least one server may post.
type Review struct {
	ID     uint   `gorm:"column:id;primaryKey" json:"id"`
	UserID uint   `gorm:"column:user_id;not null;uniqueIndex;constraint:OnDelete:CASCADE" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Rating int    `gorm:"column:rating;not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Text   string `gorm:"column:text;size:1000;not null" json:"text"`

	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Review) TableName() string {
	return "reviews"
}
