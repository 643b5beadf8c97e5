package models

import (
	"gorm.io/gorm"
)

const (
	ActionRegister   = "register"
	ActionUnregister = "unregister"
)

// RegistrationEvent is an append-only audit record written in the same
// transaction as the registration change it describes.
type RegistrationEvent struct {
	gorm.Model
	UserID     uint   `json:"user_id"`
	ActivityID uint   `json:"activity_id"`
	Action     string `json:"action"`
}
