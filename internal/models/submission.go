package models

import "time"

// PropertySubmission links a newly created property to the user who submitted it
// and the reward they are owed once an admin approves it.
type PropertySubmission struct {
	ID            string           `gorm:"type:varchar(36);primaryKey" db:"id" json:"id"`
	PropertyID    string           `gorm:"type:varchar(36);not null;uniqueIndex" db:"property_id" json:"propertyId"`
	UserID        string           `gorm:"type:varchar(36);not null;index" db:"user_id" json:"userId"`
	Status        SubmissionStatus `gorm:"type:varchar(20);not null;default:'pending';index" db:"status" json:"status"`
	TokensAwarded int              `gorm:"not null;default:0" db:"tokens_awarded" json:"tokensAwarded"`
	CreatedAt     time.Time        `gorm:"not null;autoCreateTime" db:"created_at" json:"createdAt"`
}

// SubmissionStatus is shared by submissions and admin applications
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusApproved, SubmissionStatusRejected:
		return true
	}
	return false
}

func (PropertySubmission) TableName() string {
	return "property_submissions"
}

// IsPending reports whether the submission still awaits a decision
func (s *PropertySubmission) IsPending() bool {
	return s.Status == SubmissionStatusPending
}

// PendingSubmission pairs a submission with its property for the approval dashboard
type PendingSubmission struct {
	Submission PropertySubmission `json:"submission"`
	Property   *Property          `json:"property"`
}
