package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"grantdesk/internal/domain"
	"grantdesk/internal/metrics"
)

// GormStore persists inquiries and message logs in a SQL database through gorm.
// Live feeds are driven by an in-process Hub, so every writer that should wake
// subscribers must go through a store sharing that hub.
type GormStore struct {
	db    *gorm.DB
	hub   *Hub
	clock *serverClock

	// set on stores handed to RunInTransaction callbacks
	root    *GormStore
	pending *[]string
}

// NewGormStore creates a store over db. Call Migrate before first use on a fresh database.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	o := buildOptions(opts)
	return &GormStore{
		db:    db,
		hub:   o.hub,
		clock: newServerClock(o.now),
	}
}

// Migrate creates or updates the inquiry and message tables
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&domain.Inquiry{}, &domain.Message{})
}

func (s *GormStore) CreateInquiry(ctx context.Context, inquiry *domain.Inquiry) (err error) {
	defer observe("create_inquiry", time.Now(), &err)

	now := s.clock.Now()
	inquiry.ID = uuid.NewString()
	inquiry.CreatedAt = now
	inquiry.UpdatedAt = now
	if inquiry.Status == "" {
		inquiry.Status = domain.StatusNew
	}
	return s.db.WithContext(ctx).Create(inquiry).Error
}

func (s *GormStore) AppendMessage(ctx context.Context, inquiryID string, msg *domain.Message) (err error) {
	defer observe("append_message", time.Now(), &err)

	msg.Seq = 0
	msg.ID = uuid.NewString()
	msg.InquiryID = inquiryID
	msg.CreatedAt = s.clock.Now()

	db := s.db.WithContext(ctx)
	if s.isPostgres() {
		// The notification is delivered to listeners when the insert commits.
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(msg).Error; err != nil {
				return err
			}
			return tx.Exec("SELECT pg_notify(?, ?)", changeChannel, inquiryID).Error
		})
	} else {
		err = db.Create(msg).Error
	}
	if err != nil {
		return err
	}
	s.changed(inquiryID)
	return nil
}

func (s *GormStore) UpdateInquiry(ctx context.Context, id string, patch domain.InquiryPatch) (before, after *domain.Inquiry, err error) {
	defer observe("update_inquiry", time.Now(), &err)

	var prev, next domain.Inquiry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&prev, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{}
		if patch.Status != nil {
			updates["status"] = *patch.Status
		}
		if patch.Touch {
			now := s.clock.Now()
			if now.Before(prev.CreatedAt) {
				now = prev.CreatedAt
			}
			updates["updated_at"] = now
		}
		if len(updates) > 0 {
			if err := tx.Model(&domain.Inquiry{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.First(&next, "id = ?", id).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &prev, &next, nil
}

func (s *GormStore) GetInquiry(ctx context.Context, id string) (_ *domain.Inquiry, err error) {
	defer observe("get_inquiry", time.Now(), &err)

	var inquiry domain.Inquiry
	if err := s.db.WithContext(ctx).First(&inquiry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inquiry, nil
}

func (s *GormStore) QueryInquiries(ctx context.Context, q InquiryQuery) (_ []domain.Inquiry, err error) {
	defer observe("query_inquiries", time.Now(), &err)

	query := s.db.WithContext(ctx).Model(&domain.Inquiry{})
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.Email != "" {
		query = query.Where("email = ?", q.Email)
	}
	if q.OrderBy == OrderByCreatedDesc {
		query = query.Order("created_at DESC")
	} else {
		query = query.Order("updated_at DESC").Order("created_at DESC")
	}
	query = query.Order("id DESC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	inquiries := []domain.Inquiry{}
	if err := query.Find(&inquiries).Error; err != nil {
		return nil, err
	}
	return inquiries, nil
}

func (s *GormStore) QueryMessages(ctx context.Context, q MessageQuery) (_ []domain.Message, err error) {
	defer observe("query_messages", time.Now(), &err)

	query := s.db.WithContext(ctx).Where("inquiry_id = ?", q.InquiryID)
	if q.Descending {
		query = query.Order("created_at DESC").Order("seq DESC")
	} else {
		query = query.Order("created_at ASC").Order("seq ASC")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	messages := []domain.Message{}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *GormStore) SubscribeMessages(ctx context.Context, q MessageQuery) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := s
	if s.root != nil {
		base = s.root
	}
	return newSubscription(ctx, q.InquiryID, base.hub, func(ctx context.Context) ([]domain.Message, error) {
		return base.QueryMessages(ctx, q)
	}), nil
}

// RunInTransaction runs fn against a store bound to a single database transaction.
// Subscribers are woken only once the transaction commits.
func (s *GormStore) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	var topics []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{
			db:      tx,
			hub:     s.hub,
			clock:   s.clock,
			root:    s,
			pending: &topics,
		})
	})
	if err != nil {
		return err
	}
	for _, topic := range topics {
		s.hub.Publish(topic)
	}
	return nil
}

// Ping checks that the database answers
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) isPostgres() bool {
	return s.db.Dialector.Name() == "postgres"
}

func (s *GormStore) changed(topic string) {
	if s.pending != nil {
		*s.pending = append(*s.pending, topic)
		return
	}
	s.hub.Publish(topic)
}

func observe(operation string, start time.Time, err *error) {
	metrics.RecordDBQuery(operation, time.Since(start), *err)
}
