package models

import (
	"gorm.io/gorm"
)

// Message is a staff announcement, optionally attached to an activity.
// The back-reference is cleared best-effort when the activity is
// deleted.
type Message struct {
	gorm.Model
	Title      string `json:"title"`
	Body       string `json:"body"`
	ActivityID *uint  `json:"activity_id"`
}

type MessageReply struct {
	gorm.Model
	MessageID uint   `json:"message_id" gorm:"uniqueIndex:idx_message_user"`
	UserID    uint   `json:"user_id" gorm:"uniqueIndex:idx_message_user"`
	User      User   `json:"user" gorm:"foreignKey:UserID"`
	Body      string `json:"body"`
}
