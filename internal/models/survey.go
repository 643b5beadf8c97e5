package models

import (
	"gorm.io/gorm"
)

type Survey struct {
	gorm.Model
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Questions   []string `gorm:"serializer:json" json:"questions"`
	Open        bool     `json:"open"`
}

// SurveyResponse holds one member's answers. The composite unique index
// backs the one-response-per-user guard enforced in the submit
// transaction.
type SurveyResponse struct {
	gorm.Model
	SurveyID uint     `json:"survey_id" gorm:"uniqueIndex:idx_survey_user"`
	UserID   uint     `json:"user_id" gorm:"uniqueIndex:idx_survey_user"`
	User     User     `json:"user" gorm:"foreignKey:UserID"`
	Answers  []string `gorm:"serializer:json" json:"answers"`
}
