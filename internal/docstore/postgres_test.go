package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"grantdesk/internal/config"
	"grantdesk/internal/database"
	"grantdesk/internal/domain"
)

// TestGormStorePostgres runs the store contract against a real PostgreSQL.
// It needs Docker and is skipped in short mode.
func TestGormStorePostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("grantdesk"),
		postgres.WithUsername("grantdesk"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := database.Open(&config.DatabaseConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	runStoreContract(t, func(t *testing.T, opts ...Option) Store {
		store := NewGormStore(conn, opts...)
		require.NoError(t, store.Migrate())
		require.NoError(t, conn.Exec("TRUNCATE premium_inquiries, premium_inquiry_messages").Error)
		return store
	})

	t.Run("ListenerSeesWritesFromSeparateStore", func(t *testing.T) {
		api := NewGormStore(conn)
		admin := NewGormStore(conn)

		watchCtx, cancel := context.WithCancel(ctx)
		watching := make(chan error, 1)
		go func() { watching <- api.Watch(watchCtx, 50*time.Millisecond) }()
		defer func() {
			cancel()
			assert.NoError(t, <-watching)
		}()

		inquiry := &domain.Inquiry{Name: "Ada", Email: "ada@example.com"}
		require.NoError(t, api.CreateInquiry(ctx, inquiry))

		sub, err := api.SubscribeMessages(ctx, MessageQuery{InquiryID: inquiry.ID})
		require.NoError(t, err)
		defer sub.Unsubscribe()
		assert.Empty(t, receive(t, sub))

		require.NoError(t, admin.AppendMessage(ctx, inquiry.ID, &domain.Message{Sender: domain.SenderAdmin, Text: "Hi, how can I help?"}))
		assert.Equal(t, []string{"Hi, how can I help?"}, texts(receiveLen(t, sub, 1)))
	})
}
