package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"grantdesk/internal/domain"
)

// MemoryStore keeps inquiries and message logs in process memory.
// It is used by tests and by local runs without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	clock     *serverClock
	hub       *Hub
	inquiries map[string]*memInquiry
	logs      map[string][]domain.Message
	seq       uint64
}

type memInquiry struct {
	doc domain.Inquiry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		clock:     newServerClock(o.now),
		hub:       o.hub,
		inquiries: make(map[string]*memInquiry),
		logs:      make(map[string][]domain.Message),
	}
}

func (s *MemoryStore) CreateInquiry(ctx context.Context, inquiry *domain.Inquiry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	inquiry.ID = uuid.NewString()
	inquiry.CreatedAt = now
	inquiry.UpdatedAt = now
	if inquiry.Status == "" {
		inquiry.Status = domain.StatusNew
	}
	s.inquiries[inquiry.ID] = &memInquiry{doc: *inquiry}
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, inquiryID string, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.seq++
	msg.ID = uuid.NewString()
	msg.Seq = s.seq
	msg.InquiryID = inquiryID
	msg.CreatedAt = s.clock.Now()
	s.logs[inquiryID] = append(s.logs[inquiryID], *msg)
	s.mu.Unlock()

	s.hub.Publish(inquiryID)
	return nil
}

func (s *MemoryStore) UpdateInquiry(ctx context.Context, id string, patch domain.InquiryPatch) (*domain.Inquiry, *domain.Inquiry, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.inquiries[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	before := entry.doc
	if patch.Status != nil {
		entry.doc.Status = *patch.Status
	}
	if patch.Touch {
		entry.doc.UpdatedAt = s.clock.Now()
	}
	after := entry.doc
	return &before, &after, nil
}

func (s *MemoryStore) GetInquiry(ctx context.Context, id string) (*domain.Inquiry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.inquiries[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc := entry.doc
	return &doc, nil
}

func (s *MemoryStore) QueryInquiries(ctx context.Context, q InquiryQuery) ([]domain.Inquiry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*memInquiry, 0, len(s.inquiries))
	for _, entry := range s.inquiries {
		if q.UserID != "" && (entry.doc.UserID == nil || *entry.doc.UserID != q.UserID) {
			continue
		}
		if q.Email != "" && entry.doc.Email != q.Email {
			continue
		}
		cp := *entry
		entries = append(entries, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		ta, tb := a.doc.UpdatedAt, b.doc.UpdatedAt
		if q.OrderBy == OrderByCreatedDesc {
			ta, tb = a.doc.CreatedAt, b.doc.CreatedAt
		}
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		if q.OrderBy != OrderByCreatedDesc && !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.After(b.doc.CreatedAt)
		}
		return a.doc.ID > b.doc.ID
	})
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	result := make([]domain.Inquiry, len(entries))
	for i, entry := range entries {
		result[i] = entry.doc
	}
	return result, nil
}

func (s *MemoryStore) QueryMessages(ctx context.Context, q MessageQuery) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	msgs := make([]domain.Message, len(s.logs[q.InquiryID]))
	copy(msgs, s.logs[q.InquiryID])
	s.mu.RUnlock()

	sort.SliceStable(msgs, func(i, j int) bool {
		if q.Descending {
			return msgs[j].Before(&msgs[i])
		}
		return msgs[i].Before(&msgs[j])
	})
	if q.Limit > 0 && len(msgs) > q.Limit {
		msgs = msgs[:q.Limit]
	}
	return msgs, nil
}

func (s *MemoryStore) SubscribeMessages(ctx context.Context, q MessageQuery) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newSubscription(ctx, q.InquiryID, s.hub, func(ctx context.Context) ([]domain.Message, error) {
		return s.QueryMessages(ctx, q)
	}), nil
}
