package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"grantdesk/internal/config"
	"grantdesk/internal/domain"
	"grantdesk/internal/metrics"
)

const (
	notifyKindNewInquiry = "new_inquiry"
	notifyKindReply      = "reply"
)

// ResponseNotifier emails the admin team about new inquiries and founders about
// admin replies. A founder is emailed only when an inquiry moves into responded,
// so repeated admin messages in a row send a single email.
type ResponseNotifier struct {
	mailer Mailer
	cfg    *config.EmailConfig
}

// NewResponseNotifier creates a notifier sending through mailer
func NewResponseNotifier(mailer Mailer, cfg *config.EmailConfig) *ResponseNotifier {
	return &ResponseNotifier{mailer: mailer, cfg: cfg}
}

// InquiryCreated notifies the admin address about a new inquiry
func (n *ResponseNotifier) InquiryCreated(ctx context.Context, inquiry *domain.Inquiry) {
	if n.cfg.AdminNotifyEmail == "" {
		return
	}

	phoneInfo := "Not provided"
	if inquiry.Phone != nil && *inquiry.Phone != "" {
		phoneInfo = *inquiry.Phone
	}
	submitted := inquiry.CreatedAt.Format("January 2, 2006 at 3:04 PM MST")
	link := n.inquiryURL("/admin/inquiries/", inquiry.ID)

	subject := fmt.Sprintf("New premium inquiry from %s", inquiry.Name)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>New premium inquiry</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #334155;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #0F766E;">New premium inquiry</h2>
        <div style="background: #F8FAFC; padding: 20px; border-radius: 8px; margin: 20px 0;">
            <p><strong>Name:</strong> %s</p>
            <p><strong>Email:</strong> <a href="mailto:%s">%s</a></p>
            <p><strong>Phone:</strong> %s</p>
            <p><strong>Submitted:</strong> %s</p>
        </div>
        <div style="background: #FFFFFF; padding: 20px; border-left: 4px solid #0F766E; border-radius: 4px; margin: 20px 0;">
            <h3 style="color: #0D1A2D; margin-top: 0;">Specific needs:</h3>
            <p style="white-space: pre-wrap;">%s</p>
        </div>
        <p><a href="%s" style="color: #0F766E;">Open the conversation</a></p>
    </div>
</body>
</html>`, html.EscapeString(inquiry.Name), html.EscapeString(inquiry.Email), html.EscapeString(inquiry.Email),
		html.EscapeString(phoneInfo), submitted, html.EscapeString(inquiry.SpecificNeeds), link)

	textBody := fmt.Sprintf(`New premium inquiry

Name: %s
Email: %s
Phone: %s
Submitted: %s

Specific needs:
%s

Open the conversation: %s`, inquiry.Name, inquiry.Email, phoneInfo, submitted, inquiry.SpecificNeeds, link)

	n.send(notifyKindNewInquiry, inquiry.ID, n.cfg.AdminNotifyEmail, subject, htmlBody, textBody)
}

// InquiryUpdated emails the founder when an admin reply moved the inquiry into responded
func (n *ResponseNotifier) InquiryUpdated(ctx context.Context, before, after *domain.Inquiry) {
	if !domain.IsRespondedEdge(before, after) {
		return
	}
	if after.Email == "" {
		log.Printf("[NOTIFY] Inquiry %s has no email, reply notification skipped", after.ID)
		return
	}

	name := after.Name
	if name == "" {
		name = "there"
	}
	link := n.inquiryURL("/inquiries/", after.ID)

	subject := "The Grantdesk team replied to your inquiry"
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>New reply</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #334155;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #0F766E;">Hi %s,</h2>
        <p>An advisor has replied to your premium inquiry.</p>
        <p><a href="%s" style="display: inline-block; padding: 12px 20px; background: #0F766E; color: #FFFFFF; border-radius: 6px; text-decoration: none;">View the conversation</a></p>
        <p style="color: #64748B; font-size: 14px;">This is an automated message. Please reply in the conversation rather than to this email.</p>
    </div>
</body>
</html>`, html.EscapeString(name), link)

	textBody := fmt.Sprintf(`Hi %s,

An advisor has replied to your premium inquiry.

View the conversation: %s

This is an automated message. Please reply in the conversation rather than to this email.`, name, link)

	n.send(notifyKindReply, after.ID, after.Email, subject, htmlBody, textBody)
}

func (n *ResponseNotifier) send(kind, inquiryID, to, subject, htmlBody, textBody string) {
	err := n.mailer.SendHTMLEmail(to, subject, htmlBody, textBody)
	metrics.RecordNotification(kind, err)
	if err != nil {
		log.Printf("[NOTIFY] Warning: failed to send %s notification for inquiry %s: %v", kind, inquiryID, err)
		return
	}
	log.Printf("[NOTIFY] Sent %s notification for inquiry %s", kind, inquiryID)
}

func (n *ResponseNotifier) inquiryURL(path, id string) string {
	return strings.TrimRight(n.cfg.AppURL, "/") + path + id
}
