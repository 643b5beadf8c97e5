package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKey is a staff automation credential. StaffID is the Discord user
// ID of the staff member who created the key.
type APIKey struct {
	gorm.Model
	StaffID    string     `json:"staff_id"`
	Key        string     `json:"key" gorm:"uniqueIndex"`
	Name       string     `json:"name"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}
