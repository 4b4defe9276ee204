package docstore

import (
	"context"
	"log"
	"sync"

	"grantdesk/internal/domain"
	"grantdesk/internal/metrics"
)

type fetchFunc func(ctx context.Context) ([]domain.Message, error)

// Subscription is a live feed of message-log snapshots.
//
// Every value received from Updates is the complete query result at some point
// after the previous one. A reader that falls behind receives only the newest
// snapshot; intermediate ones are dropped because each supersedes the last.
type Subscription struct {
	updates chan []domain.Message
	done    chan struct{}
	cancel  context.CancelFunc
	release func()
	once    sync.Once

	mu  sync.Mutex
	err error
}

func newSubscription(ctx context.Context, topic string, hub *Hub, fetch fetchFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	// Register before the first read so a write racing with it triggers a refetch.
	notify, release := hub.Subscribe(topic)
	s := &Subscription{
		updates: make(chan []domain.Message),
		done:    make(chan struct{}),
		cancel:  cancel,
		release: release,
	}
	metrics.SubscriptionOpened()
	go s.run(ctx, topic, notify, fetch)
	return s
}

// Updates returns the snapshot stream. It is closed after Unsubscribe, when the
// subscription context ends, or when a read fails (see Err).
func (s *Subscription) Updates() <-chan []domain.Message {
	return s.updates
}

// Unsubscribe detaches the feed and waits until no further snapshot can be
// delivered. Calling it again has no effect.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.release()
	})
	<-s.done
}

// Err returns the read error that ended the feed, if any
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Subscription) run(ctx context.Context, topic string, notify <-chan struct{}, fetch fetchFunc) {
	defer func() {
		s.release()
		metrics.SubscriptionClosed()
		close(s.updates)
		close(s.done)
	}()

	pending, err := fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[STORE] Subscription on inquiry %s failed initial read: %v", topic, err)
			s.fail(err)
		}
		return
	}
	have := true
	latest := pending

	for {
		var out chan<- []domain.Message
		if have {
			out = s.updates
		}
		select {
		case <-ctx.Done():
			return
		case <-notify:
			snapshot, err := fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[STORE] Subscription on inquiry %s failed refresh: %v", topic, err)
					s.fail(err)
				}
				return
			}
			// Messages are immutable, so the same ids mean the same snapshot.
			if sameMessages(snapshot, latest) {
				continue
			}
			pending, have, latest = snapshot, true, snapshot
		case out <- pending:
			have = false
		}
	}
}

func sameMessages(a, b []domain.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
