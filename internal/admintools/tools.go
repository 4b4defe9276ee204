// Package admintools exposes inquiry moderation as MCP tools so the admin team
// can triage and answer conversations from an assistant client.
package admintools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"grantdesk/internal/chat"
	"grantdesk/internal/config"
	"grantdesk/internal/domain"
	"grantdesk/internal/util"
	apperrors "grantdesk/pkg/errors"
)

// Tools implements the admin tool handlers over the chat service
type Tools struct {
	chat    *chat.Service
	retry   config.RetryConfig
	adminID string
}

// New creates the tool handlers. Replies are signed with adminID.
func New(svc *chat.Service, retry config.RetryConfig, adminID string) *Tools {
	return &Tools{chat: svc, retry: retry, adminID: adminID}
}

// Register adds every tool to s
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_inquiries",
		mcp.WithDescription("List premium inquiries, most recently active first."),
		mcp.WithString("status",
			mcp.Description("Only return inquiries in this status: new, in_progress or responded"),
		),
		mcp.WithString("email",
			mcp.Description("Only return inquiries submitted under this email"),
		),
	), t.ListInquiries)

	s.AddTool(mcp.NewTool("read_conversation",
		mcp.WithDescription("Read the full message log of one inquiry in conversation order."),
		mcp.WithString("inquiry_id",
			mcp.Required(),
			mcp.Description("The inquiry id"),
		),
	), t.ReadConversation)

	s.AddTool(mcp.NewTool("reply_to_inquiry",
		mcp.WithDescription("Send a reply to a founder as the admin team. Marks the inquiry responded."),
		mcp.WithString("inquiry_id",
			mcp.Required(),
			mcp.Description("The inquiry id"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The reply text"),
		),
	), t.ReplyToInquiry)
}

type inquirySummary struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	Status        domain.InquiryStatus `json:"status"`
	SpecificNeeds string               `json:"specific_needs"`
	UpdatedAt     string               `json:"updated_at"`
}

// ListInquiries handles list_inquiries
func (t *Tools) ListInquiries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := domain.InquiryStatus(request.GetString("status", ""))
	if status != "" && !status.Valid() {
		return mcp.NewToolResultError("status must be new, in_progress or responded"), nil
	}
	email := request.GetString("email", "")

	var inquiries []domain.Inquiry
	err := t.withRetry(ctx, func(ctx context.Context) error {
		var err error
		if email != "" {
			inquiries, err = t.chat.FetchUserInquiries(ctx, chat.InquiryLookup{Email: email})
		} else {
			inquiries, err = t.chat.FetchPremiumInquiries(ctx)
		}
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list inquiries: %v", err)), nil
	}

	summaries := make([]inquirySummary, 0, len(inquiries))
	for _, inq := range inquiries {
		if status != "" && inq.Status != status {
			continue
		}
		summaries = append(summaries, inquirySummary{
			ID:            inq.ID,
			Name:          inq.Name,
			Email:         inq.Email,
			Status:        inq.Status,
			SpecificNeeds: inq.SpecificNeeds,
			UpdatedAt:     inq.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	out, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

// ReadConversation handles read_conversation
func (t *Tools) ReadConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("inquiry_id")
	if err != nil {
		return mcp.NewToolResultError("inquiry_id is required"), nil
	}

	var inquiry *domain.Inquiry
	var msgs []domain.Message
	err = t.withRetry(ctx, func(ctx context.Context) error {
		var err error
		if inquiry, err = t.chat.GetInquiry(ctx, id); err != nil {
			return err
		}
		msgs, err = t.chat.ListMessages(ctx, id)
		return err
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return mcp.NewToolResultError("inquiry not found"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to read conversation: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Inquiry %s from %s <%s> (%s)\n", inquiry.ID, inquiry.Name, inquiry.Email, inquiry.Status)
	fmt.Fprintf(&b, "Needs: %s\n\n", inquiry.SpecificNeeds)
	if len(msgs) == 0 {
		b.WriteString("(no messages yet)\n")
	}
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Sender, m.Text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ReplyToInquiry handles reply_to_inquiry. Sends are not retried: a retry after
// an ambiguous failure could post the reply twice.
func (t *Tools) ReplyToInquiry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("inquiry_id")
	if err != nil {
		return mcp.NewToolResultError("inquiry_id is required"), nil
	}
	text, err := request.RequireString("text")
	if err != nil || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	var senderID *string
	if t.adminID != "" {
		senderID = &t.adminID
	}
	msgID, err := t.chat.SendInquiryMessage(ctx, id, strings.TrimSpace(text), domain.SenderAdmin, senderID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return mcp.NewToolResultError("inquiry not found"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to send reply: %v", err)), nil
	}

	log.Printf("[MCP] Reply %s posted to inquiry %s", msgID, id)
	return mcp.NewToolResultText(fmt.Sprintf("Reply %s posted to inquiry %s", msgID, id)), nil
}

// withRetry retries fn on store failures only
func (t *Tools) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return util.Retry(ctx, t.retry, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && !apperrors.IsPersistence(err) {
			return backoff.Permanent(err)
		}
		return err
	})
}
