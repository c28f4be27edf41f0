package models

import "time"

// AdminApplication is a request for admin privileges. A user with an approved
// application is an admin.
type AdminApplication struct {
	ID        string           `gorm:"type:varchar(36);primaryKey" db:"id" json:"id"`
	UserID    string           `gorm:"type:varchar(36);not null;index" db:"user_id" json:"userId"`
	Reason    string           `gorm:"type:text;not null" db:"reason" json:"reason"`
	Status    SubmissionStatus `gorm:"type:varchar(20);not null;default:'pending';index" db:"status" json:"status"`
	CreatedAt time.Time        `gorm:"not null;autoCreateTime" db:"created_at" json:"createdAt"`
}

func (AdminApplication) TableName() string {
	return "admin_applications"
}
