package models

import (
	"time"

	"gorm.io/gorm"
)

// Activity is a schedulable class or event. Capacity 0 means unlimited.
// Registrants are Registration rows, never an embedded list; the row
// count is the authoritative registrant count.
type Activity struct {
	gorm.Model
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Date        time.Time      `json:"date"`
	StartTime   string         `json:"start_time"` // HH:MM
	EndTime     string         `json:"end_time"`   // HH:MM
	Room        string         `json:"room"`
	Capacity    int            `json:"capacity"`
	Recurring   bool           `json:"recurring"`
	Weekdays    []time.Weekday `gorm:"serializer:json" json:"weekdays"`
	Tags        []string       `gorm:"serializer:json" json:"tags"`
}

// Unlimited reports whether the activity has no registrant limit.
func (a *Activity) Unlimited() bool {
	return a.Capacity <= 0
}
