package models

import (
	"gorm.io/gorm"
)

// User is a center member. The normalized phone number is the stable
// identity; names are display data and may be edited freely.
type User struct {
	gorm.Model
	Phone        string `gorm:"uniqueIndex" json:"phone"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Registered   bool   `json:"registered"`
	Senior       bool   `json:"senior"`
	Address      string `json:"address"`
	MemberNumber string `json:"member_number"`
	Notes        string `json:"notes"`
}
