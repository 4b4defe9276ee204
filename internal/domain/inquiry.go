package domain

import (
	"strings"
	"time"
)

// InquiryStatus is the conversation state of a premium inquiry
type InquiryStatus string

const (
	StatusNew        InquiryStatus = "new"
	StatusInProgress InquiryStatus = "in_progress"
	StatusResponded  InquiryStatus = "responded"
)

// Valid reports whether s is a known status
func (s InquiryStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResponded:
		return true
	}
	return false
}

// Inquiry is one premium support conversation between a founder and the admin team
type Inquiry struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	Name          string        `gorm:"not null" json:"name"`
	Email         string        `gorm:"not null;index" json:"email"`
	Phone         *string       `json:"phone,omitempty"`
	UserID        *string       `gorm:"index;size:128" json:"user_id,omitempty"`
	SpecificNeeds string        `gorm:"type:text;not null" json:"specific_needs"`
	Status        InquiryStatus `gorm:"size:16;not null;default:'new';index" json:"status"`
	CreatedAt     time.Time     `gorm:"autoCreateTime:false;not null" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime:false;not null;index" json:"updated_at"`
}

// TableName specifies the table name for Inquiry
func (Inquiry) TableName() string {
	return "premium_inquiries"
}

// OwnedBy reports whether the inquiry belongs to userID
func (i *Inquiry) OwnedBy(userID string) bool {
	return i.UserID != nil && userID != "" && *i.UserID == userID
}

// InquiryPatch is a partial update of inquiry metadata. Nil fields are left untouched.
type InquiryPatch struct {
	Status *InquiryStatus
	// Touch sets UpdatedAt to the store's server time.
	Touch bool
}

// NormalizeEmail lowercases and trims an address so lookups match regardless of input casing
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
