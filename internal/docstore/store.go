// Package docstore is the document database behind premium inquiries: an inquiry
// collection, a per-inquiry append-only message log, and live change feeds over the
// log. Timestamps and identifiers are assigned by the store, never by callers.
package docstore

import (
	"context"
	"errors"

	"grantdesk/internal/domain"
)

// ErrNotFound is returned when a referenced inquiry does not exist
var ErrNotFound = errors.New("document not found")

// InquiryOrder selects the sort order of an inquiry query
type InquiryOrder int

const (
	// OrderByUpdatedDesc puts the most recently active conversation first
	OrderByUpdatedDesc InquiryOrder = iota
	OrderByCreatedDesc
)

// InquiryQuery filters the inquiry collection. Empty fields do not filter.
type InquiryQuery struct {
	UserID  string
	Email   string
	OrderBy InquiryOrder
	Limit   int
}

// MessageQuery selects messages of one inquiry. Ascending order is CreatedAt then Seq.
type MessageQuery struct {
	InquiryID  string
	Descending bool
	Limit      int
}

// Store is the document database consumed by the chat service.
//
// Writes to the inquiry and to its message log are independent: nothing in this
// interface spans both collections atomically. Stores that can do better implement
// Transactor.
type Store interface {
	// CreateInquiry assigns ID, CreatedAt and UpdatedAt and persists the inquiry.
	CreateInquiry(ctx context.Context, inquiry *domain.Inquiry) error
	// AppendMessage assigns ID, Seq and CreatedAt and appends msg to the log of
	// inquiryID. It does not check that the inquiry exists.
	AppendMessage(ctx context.Context, inquiryID string, msg *domain.Message) error
	// UpdateInquiry merges patch into the inquiry and returns the document as it
	// was before and after the write.
	UpdateInquiry(ctx context.Context, id string, patch domain.InquiryPatch) (before, after *domain.Inquiry, err error)
	GetInquiry(ctx context.Context, id string) (*domain.Inquiry, error)
	QueryInquiries(ctx context.Context, q InquiryQuery) ([]domain.Inquiry, error)
	QueryMessages(ctx context.Context, q MessageQuery) ([]domain.Message, error)
	// SubscribeMessages opens a live feed that delivers the result of q every time
	// the message log of q.InquiryID changes, starting with the current result.
	SubscribeMessages(ctx context.Context, q MessageQuery) (*Subscription, error)
}

// Transactor is implemented by stores that can run several writes atomically.
// Change notifications for writes made inside fn are published after commit.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
}
