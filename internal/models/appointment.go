package models

import "time"

// Appointment is a booked property viewing
type Appointment struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" db:"id" json:"id"`
	PropertyID  string            `gorm:"type:varchar(36);not null;index" db:"property_id" json:"propertyId"`
	UserID      string            `gorm:"type:varchar(36);not null;index" db:"user_id" json:"userId"`
	ScheduledAt time.Time         `gorm:"not null;index" db:"scheduled_at" json:"scheduledAt"`
	Message     string            `gorm:"type:text" db:"message" json:"message,omitempty"`
	Status      AppointmentStatus `gorm:"type:varchar(20);not null;default:'pending';index" db:"status" json:"status"`
	CreatedAt   time.Time         `gorm:"not null;autoCreateTime" db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time         `gorm:"not null;autoUpdateTime" db:"updated_at" json:"updatedAt"`
}

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

func (Appointment) TableName() string {
	return "appointments"
}

// IsFinal reports whether no further transitions are allowed
func (a *Appointment) IsFinal() bool {
	return a.Status == AppointmentStatusCancelled
}
