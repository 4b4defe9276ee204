package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantdesk/internal/domain"
)

func TestHubPublishCoalesces(t *testing.T) {
	hub := NewHub()
	notify, release := hub.Subscribe("inq-1")
	defer release()

	hub.Publish("inq-1")
	hub.Publish("inq-1")
	hub.Publish("inq-2")

	<-notify
	select {
	case <-notify:
		t.Fatal("second notification should have merged into the first")
	default:
	}
}

func TestHubReleaseIsIdempotent(t *testing.T) {
	hub := NewHub()
	_, first := hub.Subscribe("inq-1")
	_, second := hub.Subscribe("inq-1")
	assert.Equal(t, 2, hub.Listeners("inq-1"))

	first()
	first()
	assert.Equal(t, 1, hub.Listeners("inq-1"))

	second()
	assert.Equal(t, 0, hub.Listeners("inq-1"))
	hub.Publish("inq-1")
}

func TestHubPublishAllWakesEveryTopic(t *testing.T) {
	hub := NewHub()
	first, releaseFirst := hub.Subscribe("inq-1")
	defer releaseFirst()
	second, releaseSecond := hub.Subscribe("inq-2")
	defer releaseSecond()

	hub.PublishAll()

	for _, notify := range []<-chan struct{}{first, second} {
		select {
		case <-notify:
		default:
			t.Fatal("listener was not signalled")
		}
	}
}

func TestSubscriptionSkipsUnchangedSnapshots(t *testing.T) {
	hub := NewHub()
	store := NewMemoryStore(WithHub(hub))
	ctx := context.Background()

	sub, err := store.SubscribeMessages(ctx, MessageQuery{InquiryID: "inq-1"})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	assert.Empty(t, receive(t, sub))

	hub.Publish("inq-1")
	select {
	case msgs := <-sub.Updates():
		t.Fatalf("unexpected snapshot without a change: %v", texts(msgs))
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, store.AppendMessage(ctx, "inq-1", &domain.Message{Sender: domain.SenderUser, Text: "Hello"}))
	assert.Equal(t, []string{"Hello"}, texts(receive(t, sub)))
}
