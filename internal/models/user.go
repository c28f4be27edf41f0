package models

import "time"

// User is a marketplace account. Tokens only ever grow.
type User struct {
	ID           string   `gorm:"type:varchar(36);primaryKey" db:"id" json:"id"`
	Name         string   `gorm:"type:varchar(255);not null" db:"name" json:"name"`
	Email        string   `gorm:"type:varchar(255);not null;uniqueIndex" db:"email" json:"email"`
	PasswordHash string   `gorm:"type:varchar(255);not null" db:"password_hash" json:"-"`
	Phone        string   `gorm:"type:varchar(50)" db:"phone" json:"phone"`
	Location     string   `gorm:"type:varchar(255)" db:"location" json:"location"`
	Type         UserType `gorm:"type:varchar(20);not null;index" db:"type" json:"type"`
	Company      *string  `gorm:"type:varchar(255)" db:"company" json:"company,omitempty"`
	Tokens       int      `gorm:"not null;default:0" db:"tokens" json:"tokens"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" db:"updated_at" json:"updatedAt"`
}

// UserType is the role a user plays in the directory
type UserType string

const (
	UserTypeAgent  UserType = "agent"
	UserTypeBuyer  UserType = "buyer"
	UserTypeSeller UserType = "seller"
)

func (t UserType) Valid() bool {
	switch t {
	case UserTypeAgent, UserTypeBuyer, UserTypeSeller:
		return true
	}
	return false
}

func (User) TableName() string {
	return "users"
}
