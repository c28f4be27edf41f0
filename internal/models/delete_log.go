package models

import "time"

// DeleteLog represents a record of physically deleted properties
type DeleteLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" db:"id" json:"id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index" db:"property_id" json:"propertyId"`
	Title      string    `gorm:"type:text" db:"title" json:"title"`
	Reason     string    `gorm:"type:varchar(50);not null" db:"reason" json:"reason"`
	DeletedAt  time.Time `gorm:"not null;autoCreateTime;index" db:"deleted_at" json:"deletedAt"`
}

// TableName specifies the table name
func (DeleteLog) TableName() string {
	return "delete_logs"
}

// DeleteReason constants
const (
	DeleteReasonRejected = "rejected"
	DeleteReasonOrphaned = "orphaned"
	DeleteReasonManual   = "manual_deletion"
)
