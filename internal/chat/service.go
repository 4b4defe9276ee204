// Package chat is the premium inquiry session manager: it opens conversations,
// appends messages, drives the inquiry status machine and exposes live feeds of
// a conversation's message log.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"grantdesk/internal/docstore"
	"grantdesk/internal/domain"
	"grantdesk/internal/metrics"
	apperrors "grantdesk/pkg/errors"
)

// UpdateObserver is told about inquiry writes after they succeed.
// Calls run on their own goroutine and never affect the result of the write.
type UpdateObserver interface {
	InquiryCreated(ctx context.Context, inquiry *domain.Inquiry)
	InquiryUpdated(ctx context.Context, before, after *domain.Inquiry)
}

// Service implements the chat session operations over a document store
type Service struct {
	store         docstore.Store
	observer      UpdateObserver
	verifyInquiry bool
	transactional bool

	wg sync.WaitGroup
}

// Option configures a Service
type Option func(*Service)

// WithObserver registers the observer notified of inquiry writes
func WithObserver(observer UpdateObserver) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithVerifyInquiry controls whether SendInquiryMessage checks that the inquiry
// exists before appending. When off, messages for unknown inquiries are written
// to an orphan log.
func WithVerifyInquiry(verify bool) Option {
	return func(s *Service) {
		s.verifyInquiry = verify
	}
}

// WithTransactionalSends runs the message append and the inquiry update of
// SendInquiryMessage in one transaction when the store implements docstore.Transactor.
func WithTransactionalSends(enabled bool) Option {
	return func(s *Service) {
		s.transactional = enabled
	}
}

// NewService creates a chat service over store
func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		verifyInquiry: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartChatInput opens a chat-initiated inquiry
type StartChatInput struct {
	UserID       string
	Name         string
	Email        string
	FirstMessage string
}

// SupportRequestInput opens a form-initiated inquiry
type SupportRequestInput struct {
	UserID        string
	Name          string
	Email         string
	Phone         string
	SpecificNeeds string
}

// InquiryLookup selects a returning user's inquiries
type InquiryLookup struct {
	UserID string
	Email  string
}

// StartChatSession creates an inquiry from a user's first chat message and
// appends that message to its log. The two writes are sequential, not atomic: an
// inquiry can be left without messages if the append fails. Callers are expected
// to look up existing inquiries first; no deduplication happens here.
func (s *Service) StartChatSession(ctx context.Context, in StartChatInput) (string, error) {
	userID := strings.TrimSpace(in.UserID)
	email := domain.NormalizeEmail(in.Email)
	text := strings.TrimSpace(in.FirstMessage)
	switch {
	case userID == "":
		return "", apperrors.Validation("user id is required")
	case email == "":
		return "", apperrors.Validation("email is required")
	case text == "":
		return "", apperrors.Validation("first message is required")
	}
	if err := singleLine(map[string]string{"name": in.Name, "email": email}); err != nil {
		return "", err
	}

	inquiry := &domain.Inquiry{
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		UserID:        &userID,
		SpecificNeeds: text,
		Status:        domain.StatusNew,
	}
	if err := s.store.CreateInquiry(ctx, inquiry); err != nil {
		log.Printf("[CHAT] Failed to create inquiry for user %s: %v", userID, err)
		return "", storeError("failed to create inquiry", err)
	}

	msg := &domain.Message{
		Sender:   domain.SenderUser,
		SenderID: &userID,
		Text:     text,
	}
	if err := s.store.AppendMessage(ctx, inquiry.ID, msg); err != nil {
		log.Printf("[CHAT] Inquiry %s created but first message failed: %v", inquiry.ID, err)
		return "", storeError("failed to store first message", err)
	}

	metrics.RecordChatSessionStarted()
	metrics.RecordInquiryMessage(string(domain.SenderUser))
	log.Printf("[CHAT] Started inquiry %s for user %s", inquiry.ID, userID)

	s.emit(ctx, func(ctx context.Context, o UpdateObserver) {
		o.InquiryCreated(ctx, inquiry)
	})
	return inquiry.ID, nil
}

// SubmitSupportRequest creates an inquiry from the support-request form. The
// inquiry starts with an empty message log.
func (s *Service) SubmitSupportRequest(ctx context.Context, in SupportRequestInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	needs := strings.TrimSpace(in.SpecificNeeds)
	switch {
	case name == "":
		return "", apperrors.Validation("name is required")
	case email == "":
		return "", apperrors.Validation("email is required")
	case needs == "":
		return "", apperrors.Validation("specific needs are required")
	}
	if err := singleLine(map[string]string{"name": name, "email": email, "phone": in.Phone}); err != nil {
		return "", err
	}

	inquiry := &domain.Inquiry{
		Name:          name,
		Email:         email,
		SpecificNeeds: needs,
		Status:        domain.StatusNew,
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		inquiry.Phone = &phone
	}
	if userID := strings.TrimSpace(in.UserID); userID != "" {
		inquiry.UserID = &userID
	}
	if err := s.store.CreateInquiry(ctx, inquiry); err != nil {
		log.Printf("[CHAT] Failed to store support request: %v", err)
		return "", storeError("failed to create inquiry", err)
	}

	metrics.RecordSupportRequest()
	log.Printf("[CHAT] Support request stored as inquiry %s", inquiry.ID)

	s.emit(ctx, func(ctx context.Context, o UpdateObserver) {
		o.InquiryCreated(ctx, inquiry)
	})
	return inquiry.ID, nil
}

// SendInquiryMessage appends a message to an inquiry's log, then stamps the
// inquiry's UpdatedAt and moves its status according to the sender.
//
// Unless transactional sends are enabled on a store that supports them, the two
// writes are independent: the message may persist even when the inquiry update
// fails, and concurrent senders race last-writer-wins on the inquiry metadata.
// Text is stored as given; callers reject empty messages.
func (s *Service) SendInquiryMessage(ctx context.Context, inquiryID, text string, sender domain.Sender, senderID *string) (string, error) {
	if inquiryID == "" {
		return "", apperrors.Validation("inquiry id is required")
	}
	if !sender.Valid() {
		return "", apperrors.Validation("sender must be user or admin")
	}

	msg := &domain.Message{
		Sender:   sender,
		SenderID: senderID,
		Text:     text,
	}
	status := domain.NextStatus(sender)
	patch := domain.InquiryPatch{Status: &status, Touch: true}

	var before, after *domain.Inquiry
	send := func(store docstore.Store) error {
		if s.verifyInquiry {
			if _, err := store.GetInquiry(ctx, inquiryID); err != nil {
				return storeError("failed to load inquiry", err)
			}
		}
		if err := store.AppendMessage(ctx, inquiryID, msg); err != nil {
			return storeError("failed to store message", err)
		}
		var err error
		before, after, err = store.UpdateInquiry(ctx, inquiryID, patch)
		if err != nil {
			log.Printf("[CHAT] Message %s stored but inquiry %s update failed: %v", msg.ID, inquiryID, err)
			return storeError("failed to update inquiry", err)
		}
		return nil
	}

	var err error
	if tx, ok := s.store.(docstore.Transactor); ok && s.transactional {
		err = tx.RunInTransaction(ctx, send)
	} else {
		err = send(s.store)
	}
	if err != nil {
		return "", storeError("failed to send message", err)
	}

	metrics.RecordInquiryMessage(string(sender))
	log.Printf("[CHAT] %s message %s on inquiry %s (%d chars), status %s -> %s",
		sender, msg.ID, inquiryID, len(text), before.Status, after.Status)

	s.emit(ctx, func(ctx context.Context, o UpdateObserver) {
		o.InquiryUpdated(ctx, before, after)
	})
	return msg.ID, nil
}

// FetchUserInquiries returns a user's inquiries, most recently active first.
// Inquiries are matched by user id; when that yields nothing and an email is
// given, legacy inquiries submitted under that email are returned instead.
// No match is an empty slice, not an error.
func (s *Service) FetchUserInquiries(ctx context.Context, lookup InquiryLookup) ([]domain.Inquiry, error) {
	if userID := strings.TrimSpace(lookup.UserID); userID != "" {
		inquiries, err := s.store.QueryInquiries(ctx, docstore.InquiryQuery{UserID: userID})
		if err != nil {
			return nil, storeError("failed to query inquiries", err)
		}
		if len(inquiries) > 0 {
			return inquiries, nil
		}
	}
	if email := domain.NormalizeEmail(lookup.Email); email != "" {
		inquiries, err := s.store.QueryInquiries(ctx, docstore.InquiryQuery{Email: email})
		if err != nil {
			return nil, storeError("failed to query inquiries", err)
		}
		return inquiries, nil
	}
	return []domain.Inquiry{}, nil
}

// FetchPremiumInquiries returns every inquiry, most recently active first
func (s *Service) FetchPremiumInquiries(ctx context.Context) ([]domain.Inquiry, error) {
	inquiries, err := s.store.QueryInquiries(ctx, docstore.InquiryQuery{OrderBy: docstore.OrderByUpdatedDesc})
	if err != nil {
		return nil, storeError("failed to query inquiries", err)
	}
	return inquiries, nil
}

// GetInquiry returns one inquiry
func (s *Service) GetInquiry(ctx context.Context, id string) (*domain.Inquiry, error) {
	inquiry, err := s.store.GetInquiry(ctx, id)
	if err != nil {
		return nil, storeError("failed to load inquiry", err)
	}
	return inquiry, nil
}

// ListMessages returns an inquiry's message log in conversation order
func (s *Service) ListMessages(ctx context.Context, inquiryID string) ([]domain.Message, error) {
	if s.verifyInquiry {
		if _, err := s.store.GetInquiry(ctx, inquiryID); err != nil {
			return nil, storeError("failed to load inquiry", err)
		}
	}
	msgs, err := s.store.QueryMessages(ctx, docstore.MessageQuery{InquiryID: inquiryID})
	if err != nil {
		return nil, storeError("failed to load messages", err)
	}
	return msgs, nil
}

// Wait blocks until every observer call started so far has returned
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) emit(ctx context.Context, fn func(context.Context, UpdateObserver)) {
	if s.observer == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx, s.observer)
	}()
}

// singleLine rejects line breaks in contact fields; they are copied into
// notification email headers.
func singleLine(fields map[string]string) error {
	for _, field := range []string{"name", "email", "phone"} {
		if strings.ContainsAny(strings.TrimSpace(fields[field]), "\r\n") {
			return apperrors.Validation(field + " must be a single line")
		}
	}
	return nil
}

func storeError(message string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.Wrap(apperrors.ErrCodeNotFound, "inquiry not found", err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Persistence(message, err)
}
