package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantdesk/internal/docstore"
	"grantdesk/internal/domain"
)

func TestSubscriptionIsAppendOnlyAndOrdered(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore())
	ctx := context.Background()

	id, err := svc.StartChatSession(ctx, StartChatInput{UserID: "u1", Email: "a@example.com", FirstMessage: "Hello"})
	require.NoError(t, err)

	sub, err := svc.SubscribeToInquiryMessages(ctx, id)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			sender := domain.SenderUser
			if i%3 == 0 {
				sender = domain.SenderAdmin
			}
			_, err := svc.SendInquiryMessage(ctx, id, "m", sender, nil)
			assert.NoError(t, err)
		}
	}()

	var last []domain.Message
	deadline := time.After(3 * time.Second)
	for len(last) < 11 {
		select {
		case msgs, ok := <-sub.Updates():
			require.True(t, ok)
			require.GreaterOrEqual(t, len(msgs), len(last), "message log shrank")
			for i := range last {
				assert.Equal(t, last[i].ID, msgs[i].ID, "earlier message changed position")
			}
			for i := 1; i < len(msgs); i++ {
				assert.True(t, msgs[i-1].Before(&msgs[i]))
			}
			last = msgs
		case <-deadline:
			t.Fatalf("saw %d of 11 messages", len(last))
		}
	}
	<-done
	assert.Equal(t, "Hello", last[0].Text)
}

func TestSubscribersAreIndependent(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore())
	ctx := context.Background()

	id, err := svc.StartChatSession(ctx, StartChatInput{UserID: "u1", Email: "a@example.com", FirstMessage: "Hello"})
	require.NoError(t, err)

	userView, err := svc.SubscribeToInquiryMessages(ctx, id)
	require.NoError(t, err)
	defer userView.Unsubscribe()
	adminView, err := svc.SubscribeToInquiryMessages(ctx, id)
	require.NoError(t, err)

	firstSnapshot(t, userView)
	firstSnapshot(t, adminView)
	adminView.Unsubscribe()

	_, err = svc.SendInquiryMessage(ctx, id, "Hi, how can I help?", domain.SenderAdmin, strPtr("admin1"))
	require.NoError(t, err)

	msgs := firstSnapshot(t, userView)
	assert.Equal(t, []string{"Hello", "Hi, how can I help?"}, messageTexts(msgs))

	_, ok := <-adminView.Updates()
	assert.False(t, ok)
}

func TestSubscribeToLastMessage(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore())
	ctx := context.Background()

	id, err := svc.StartChatSession(ctx, StartChatInput{UserID: "u1", Email: "a@example.com", FirstMessage: "Hello"})
	require.NoError(t, err)

	sub, err := svc.SubscribeToLastMessage(ctx, id)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, []string{"Hello"}, messageTexts(firstSnapshot(t, sub)))

	_, err = svc.SendInquiryMessage(ctx, id, "Hi, how can I help?", domain.SenderAdmin, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi, how can I help?"}, messageTexts(firstSnapshot(t, sub)))
}

func TestCallbackSubscribe(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore())
	ctx := context.Background()

	id, err := svc.StartChatSession(ctx, StartChatInput{UserID: "u1", Email: "a@example.com", FirstMessage: "Hello"})
	require.NoError(t, err)

	var mu sync.Mutex
	var calls [][]domain.Message
	got := make(chan int, 16)
	unsubscribe, err := svc.Subscribe(ctx, id, func(msgs []domain.Message) {
		mu.Lock()
		calls = append(calls, msgs)
		mu.Unlock()
		got <- len(msgs)
	})
	require.NoError(t, err)

	select {
	case n := <-got:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial callback")
	}

	unsubscribe()
	unsubscribe()

	mu.Lock()
	seen := len(calls)
	mu.Unlock()

	_, err = svc.SendInquiryMessage(ctx, id, "after teardown", domain.SenderAdmin, nil)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen, len(calls))
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := svc.SubscribeToInquiryMessages(ctx, "inq")
	require.NoError(t, err)
	assert.Empty(t, firstSnapshot(t, sub))

	cancel()
	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed still open after cancel")
	}
	sub.Unsubscribe()
}
