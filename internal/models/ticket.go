package models

import (
	"time"

	"gorm.io/gorm"
)

// TicketStatus represents the state of a support ticket
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusAnswered TicketStatus = "answered"
	TicketStatusClosed   TicketStatus = "closed"
)

// Ticket represents a support conversation thread
type Ticket struct {
	ID       uint         `gorm:"column:id;primaryKey" json:"id"`
	UserID   uint         `gorm:"column:user_id;not null;index;constraint:OnDelete:CASCADE" json:"user_id"`
	User     *User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Subject  string       `gorm:"column:subject;size:200;not null" json:"subject"`
	Category string       `gorm:"column:category;size:50;default:general" json:"category"`
	Status   TicketStatus `gorm:"column:status;size:20;default:open;index" json:"status"`

	Messages []TicketMessage `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`

	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// TicketMessage is a single message inside a ticket thread
type TicketMessage struct {
	ID       uint   `gorm:"column:id;primaryKey" json:"id"`
	TicketID uint   `gorm:"column:ticket_id;not null;index" json:"ticket_id"`
	UserID   uint   `gorm:"column:user_id;not null" json:"user_id"`
	User     *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Message  string `gorm:"column:message;type:text;not null" json:"message"`
	IsStaff  bool   `gorm:"column:is_staff;default:false" json:"is_staff"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (TicketMessage) TableName() string {
	return "ticket_messages"
}
