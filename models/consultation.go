package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Consultation statuses
const (
	ConsultationPending     = "pending"
	ConsultationScheduled   = "scheduled"
	ConsultationRescheduled = "rescheduled"
	ConsultationCanceled    = "canceled"
	ConsultationCompleted   = "completed"
)

type Consultation struct {
	gorm.Model
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	User        User           `json:"user"`
	PhoneNumber string         `json:"phone_number"`
	Services    datatypes.JSON `json:"services"`
	Budget      string         `json:"budget"`
	Timeline    string         `json:"timeline"`
	Description string         `json:"description"`
	TimeSlot    string         `json:"time_slot"`
	Status      string         `gorm:"default:pending" json:"status"`
	Handlers    []User         `gorm:"many2many:consultation_handlers" json:"handlers"`

	RescheduleHistory []RescheduleEntry `json:"reschedule_history"`
}

// RescheduleEntry records the previous slot each time a consultation is moved.
type RescheduleEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConsultationID uint      `gorm:"index" json:"consultation_id"`
	OldTimeSlot    string    `json:"old_time_slot"`
	ChangedAt      time.Time `json:"changed_at"`
}

func ValidConsultationStatus(status string) bool {
	switch status {
	case ConsultationPending, ConsultationScheduled, ConsultationRescheduled, ConsultationCanceled, ConsultationCompleted:
		return true
	}
	return false
}
