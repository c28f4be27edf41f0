package models

import "time"

// PropertyChange records one field-level edit of a property
type PropertyChange struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" db:"id" json:"id"`
	PropertyID      string    `gorm:"type:varchar(36);not null;index" db:"property_id" json:"propertyId"`
	ChangeType      string    `gorm:"type:varchar(50);not null" db:"change_type" json:"changeType"`
	OldValue        string    `gorm:"type:text" db:"old_value" json:"oldValue,omitempty"`
	NewValue        string    `gorm:"type:text" db:"new_value" json:"newValue,omitempty"`
	ChangeMagnitude *float64  `gorm:"type:decimal(15,2)" db:"change_magnitude" json:"changeMagnitude,omitempty"` // For numerical changes
	DetectedAt      time.Time `gorm:"not null;autoCreateTime;index" db:"detected_at" json:"detectedAt"`
}

// TableName specifies the table name
func (PropertyChange) TableName() string {
	return "property_changes"
}

// ChangeType constants
const (
	ChangeTypePrice       = "price_changed"
	ChangeTypeTitle       = "title_changed"
	ChangeTypeDescription = "description_changed"
	ChangeTypeStatus      = "status_changed"
	ChangeTypeType        = "type_changed"
	ChangeTypeLocation    = "location_changed"
	ChangeTypeImages      = "images_changed"
	ChangeTypeNew         = "new_property"
)
