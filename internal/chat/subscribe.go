package chat

import (
	"context"
	"sync/atomic"

	"grantdesk/internal/docstore"
	"grantdesk/internal/domain"
)

// SubscribeToInquiryMessages opens a live feed of an inquiry's full message log
// in conversation order. The first snapshot is the log as it is now; every later
// snapshot replaces the previous one. The caller must Unsubscribe or cancel ctx.
func (s *Service) SubscribeToInquiryMessages(ctx context.Context, inquiryID string) (*docstore.Subscription, error) {
	sub, err := s.store.SubscribeMessages(ctx, docstore.MessageQuery{InquiryID: inquiryID})
	if err != nil {
		return nil, storeError("failed to subscribe to messages", err)
	}
	return sub, nil
}

// SubscribeToLastMessage opens a live feed whose snapshots hold at most the most
// recent message of the inquiry. It is meant for inbox previews.
func (s *Service) SubscribeToLastMessage(ctx context.Context, inquiryID string) (*docstore.Subscription, error) {
	sub, err := s.store.SubscribeMessages(ctx, docstore.MessageQuery{
		InquiryID:  inquiryID,
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return nil, storeError("failed to subscribe to last message", err)
	}
	return sub, nil
}

// Subscribe calls onChange with every snapshot of the inquiry's message log until
// the returned func is called or ctx ends. The returned func may be called more
// than once; once it returns no new callback is started.
func (s *Service) Subscribe(ctx context.Context, inquiryID string, onChange func([]domain.Message)) (func(), error) {
	sub, err := s.SubscribeToInquiryMessages(ctx, inquiryID)
	if err != nil {
		return nil, err
	}

	var stopped atomic.Bool
	go func() {
		for msgs := range sub.Updates() {
			if stopped.Load() {
				continue
			}
			onChange(msgs)
		}
	}()

	return func() {
		stopped.Store(true)
		sub.Unsubscribe()
	}, nil
}
