package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Property struct {
	// Core listing fields
	ID          string  `gorm:"type:varchar(36);primaryKey" db:"id" json:"id"`
	Title       string  `gorm:"type:varchar(255);not null" db:"title" json:"title"`
	Description string  `gorm:"type:text" db:"description" json:"description"`
	Price       float64 `gorm:"type:decimal(15,2);not null;index" db:"price" json:"price"`
	Location    string  `gorm:"type:varchar(255);not null;index" db:"location" json:"location"`

	// Optional numeric attributes
	Bedrooms  *int     `gorm:"type:int;index" db:"bedrooms" json:"bedrooms,omitempty"`
	Bathrooms *int     `gorm:"type:int;index" db:"bathrooms" json:"bathrooms,omitempty"`
	Area      *float64 `gorm:"type:decimal(10,2)" db:"area" json:"area,omitempty"`

	Type   PropertyType  `gorm:"type:varchar(20);not null;index" db:"type" json:"type"`
	Status ListingStatus `gorm:"type:varchar(10);not null;index" db:"status" json:"status"`
	Images ImageList     `gorm:"type:json" db:"images" json:"images"`

	// Ownership
	OwnerID   string  `gorm:"type:varchar(36);not null;index" db:"owner_id" json:"ownerId"`
	AgentID   *string `gorm:"type:varchar(36)" db:"agent_id" json:"agentId,omitempty"`
	CompanyID *string `gorm:"type:varchar(36)" db:"company_id" json:"companyId,omitempty"`

	IsApproved bool `gorm:"not null;default:false;index" db:"is_approved" json:"isApproved"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_properties_created_at,sort:desc" db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" db:"updated_at" json:"updatedAt"`
}

// PropertyType is the kind of real estate being listed
type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeCommercial PropertyType = "commercial"
	PropertyTypeLand       PropertyType = "land"
)

// Valid reports whether t is one of the known property types
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeHouse, PropertyTypeApartment, PropertyTypeCommercial, PropertyTypeLand:
		return true
	}
	return false
}

// ListingStatus says whether a property is offered for sale or for rent
type ListingStatus string

const (
	ListingStatusSale ListingStatus = "sale"
	ListingStatusRent ListingStatus = "rent"
)

func (s ListingStatus) Valid() bool {
	return s == ListingStatusSale || s == ListingStatusRent
}

// TableName pins the table name
func (Property) TableName() string {
	return "properties"
}

// ImageList is an ordered list of image URIs stored as a JSON column.
type ImageList []string

// Value implements driver.Valuer
func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *ImageList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = ImageList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for ImageList: %T", src)
	}
	if len(data) == 0 {
		*l = ImageList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to decode image list: %w", err)
	}
	*l = out
	return nil
}
