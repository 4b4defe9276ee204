package docstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"grantdesk/internal/domain"
)

// changeChannel carries the inquiry id of every appended message on PostgreSQL
const changeChannel = "grantdesk_message_log"

// Watch wakes this store's subscribers for messages appended by other processes
// sharing the database, such as the admin tool server or another API replica.
// It blocks until ctx ends. PostgreSQL pushes changes through LISTEN/NOTIFY;
// other databases are polled every interval.
func (s *GormStore) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	if s.isPostgres() {
		return s.listenLoop(ctx, interval)
	}
	return s.poll(ctx, interval)
}

func (s *GormStore) listenLoop(ctx context.Context, backoff time.Duration) error {
	for {
		err := s.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("[STORE] Change listener dropped, reconnecting in %v: %v", backoff, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
	}
}

// listen holds one pooled connection for LISTEN until ctx ends or the
// connection fails.
func (s *GormStore) listen(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		pc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("listen needs a pgx connection, got %T", driverConn)
		}
		pgConn := pc.Conn()
		if _, err := pgConn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
			return err
		}
		log.Printf("[STORE] Listening for message log changes")
		// Anything appended while the listener was down is only seen on refetch.
		s.hub.PublishAll()

		for {
			n, err := pgConn.WaitForNotification(ctx)
			if err != nil {
				return err
			}
			s.hub.Publish(n.Payload)
		}
	})
}

type seqChange struct {
	InquiryID string
	Seq       uint64
}

// poll publishes every inquiry whose log grew past the highest sequence seen so
// far. SQLite commits writes one at a time, so sequences become visible in order.
func (s *GormStore) poll(ctx context.Context, interval time.Duration) error {
	var last uint64
	err := s.db.WithContext(ctx).Model(&domain.Message{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error
	if err != nil {
		return err
	}
	// Writes made before the starting point was read are only seen on refetch.
	s.hub.PublishAll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		var changes []seqChange
		err := s.db.WithContext(ctx).Model(&domain.Message{}).
			Select("inquiry_id, MAX(seq) AS seq").
			Where("seq > ?", last).
			Group("inquiry_id").
			Scan(&changes).Error
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[STORE] Change poll failed: %v", err)
			continue
		}
		for _, c := range changes {
			if c.Seq > last {
				last = c.Seq
			}
			s.hub.Publish(c.InquiryID)
		}
	}
}
