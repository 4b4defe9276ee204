package domain

import "time"

// Sender identifies which side of the conversation wrote a message
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
)

// Valid reports whether s is user or admin
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAdmin
}

// Message is one immutable entry of an inquiry's message log.
// Seq is the store-assigned insertion sequence and breaks CreatedAt ties.
type Message struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ID        string    `gorm:"uniqueIndex;size:36;not null" json:"id"`
	InquiryID string    `gorm:"index:idx_message_log,priority:1;size:36;not null" json:"inquiry_id"`
	Sender    Sender    `gorm:"size:8;not null" json:"sender"`
	SenderID  *string   `gorm:"size:128" json:"sender_id,omitempty"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;not null;index:idx_message_log,priority:2" json:"created_at"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "premium_inquiry_messages"
}

// Before reports whether m sorts before other in a message log
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.Seq < other.Seq
}
