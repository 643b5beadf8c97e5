package models

import (
	"gorm.io/gorm"
)

type Registration struct {
	gorm.Model
	UserID     uint     `json:"user_id" gorm:"uniqueIndex:idx_user_activity"`
	ActivityID uint     `json:"activity_id" gorm:"uniqueIndex:idx_user_activity"`
	User       User     `json:"user" gorm:"foreignKey:UserID"`
	Activity   Activity `json:"activity" gorm:"foreignKey:ActivityID"`
}
