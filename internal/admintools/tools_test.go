package admintools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantdesk/internal/chat"
	"grantdesk/internal/config"
	"grantdesk/internal/docstore"
	"grantdesk/internal/domain"
	apperrors "grantdesk/pkg/errors"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func newTools(t *testing.T) (*Tools, *chat.Service) {
	t.Helper()
	svc := chat.NewService(docstore.NewMemoryStore())
	return New(svc, config.RetryConfig{MaxAttempts: 1}, "admin-uid"), svc
}

func TestReplyAndReadConversation(t *testing.T) {
	tools, svc := newTools(t)
	ctx := context.Background()

	id, err := svc.StartChatSession(ctx, chat.StartChatInput{UserID: "u1", Name: "Ada", Email: "ada@example.com", FirstMessage: "Hello"})
	require.NoError(t, err)

	result, err := tools.ReplyToInquiry(ctx, callRequest("reply_to_inquiry", map[string]any{"inquiry_id": id, "text": "Hi, how can I help?"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	inquiry, err := svc.GetInquiry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResponded, inquiry.Status)

	result, err = tools.ReadConversation(ctx, callRequest("read_conversation", map[string]any{"inquiry_id": id}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "user: Hello")
	assert.Contains(t, text, "admin: Hi, how can I help?")

	msgs, err := svc.ListMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "admin-uid", *msgs[1].SenderID)
}

func TestToolErrors(t *testing.T) {
	tools, _ := newTools(t)
	ctx := context.Background()

	result, err := tools.ReplyToInquiry(ctx, callRequest("reply_to_inquiry", map[string]any{"inquiry_id": "missing", "text": "hi"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tools.ReplyToInquiry(ctx, callRequest("reply_to_inquiry", map[string]any{"inquiry_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tools.ReadConversation(ctx, callRequest("read_conversation", map[string]any{"inquiry_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "inquiry not found", resultText(t, result))

	result, err = tools.ListInquiries(ctx, callRequest("list_inquiries", map[string]any{"status": "closed"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListInquiriesFiltersByStatus(t *testing.T) {
	tools, svc := newTools(t)
	ctx := context.Background()

	open, err := svc.StartChatSession(ctx, chat.StartChatInput{UserID: "u1", Email: "ada@example.com", FirstMessage: "Hello"})
	require.NoError(t, err)
	answered, err := svc.StartChatSession(ctx, chat.StartChatInput{UserID: "u2", Email: "bob@example.com", FirstMessage: "Hi"})
	require.NoError(t, err)
	_, err = svc.SendInquiryMessage(ctx, answered, "On it", domain.SenderAdmin, nil)
	require.NoError(t, err)

	result, err := tools.ListInquiries(ctx, callRequest("list_inquiries", map[string]any{"status": "new"}))
	require.NoError(t, err)

	var got []inquirySummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, open, got[0].ID)

	result, err = tools.ListInquiries(ctx, callRequest("list_inquiries", map[string]any{"email": "bob@example.com"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, answered, got[0].ID)
}

func TestRegisterAddsTools(t *testing.T) {
	tools, _ := newTools(t)
	s := server.NewMCPServer("grantdesk-admin", "test", server.WithToolCapabilities(false))
	tools.Register(s)

	for _, name := range []string{"list_inquiries", "read_conversation", "reply_to_inquiry"} {
		assert.NotNil(t, s.GetTool(name), name)
	}
}

func TestWithRetryOnlyRetriesStoreFailures(t *testing.T) {
	svc := chat.NewService(docstore.NewMemoryStore())
	tools := New(svc, config.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, "admin-uid")
	ctx := context.Background()

	calls := 0
	err := tools.withRetry(ctx, func(ctx context.Context) error {
		calls++
		return apperrors.NotFound("inquiry not found")
	})
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 1, calls)

	calls = 0
	err = tools.withRetry(ctx, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperrors.Persistence("store unavailable", errors.New("connection reset"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
