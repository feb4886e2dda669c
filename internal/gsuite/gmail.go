package gsuite

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hisho-bot/hisho/internal/models"
)

const gmailUser = "me"

// Gmail wraps the Gmail API for a single user's credentials.
type Gmail struct {
	svc *gmail.Service
}

// NewGmail builds a Gmail wrapper on the given token source.
func NewGmail(ctx context.Context, ts oauth2.TokenSource) (*Gmail, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Gmail{svc: svc}, nil
}

// ListEmails returns recent messages matching the optional query.
func (g *Gmail) ListEmails(ctx context.Context, query string, maxResults int64) ([]models.Email, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	call := g.svc.Users.Messages.List(gmailUser).MaxResults(maxResults)
	if query != "" {
		// A query searches all mail; the plain listing stays on the inbox.
		call = call.Q(query)
	} else {
		call = call.LabelIds("INBOX")
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}

	emails := make([]models.Email, 0, len(res.Messages))
	for _, ref := range res.Messages {
		msg, err := g.svc.Users.Messages.Get(gmailUser, ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Date").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get email %s: %w", ref.Id, err)
		}
		headers := parseHeaders(msg.Payload)
		emails = append(emails, models.Email{
			ID:       msg.Id,
			ThreadID: msg.ThreadId,
			Subject:  headerOr(headers, "subject", "(件名なし)"),
			From:     headers["from"],
			Date:     headers["date"],
			Snippet:  msg.Snippet,
			LabelIDs: msg.LabelIds,
		})
	}
	return emails, nil
}

// GetEmail returns one message with its plain-text body and attachment info.
func (g *Gmail) GetEmail(ctx context.Context, emailID string) (*models.Email, error) {
	msg, err := g.svc.Users.Messages.Get(gmailUser, emailID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get email %s: %w", emailID, err)
	}
	headers := parseHeaders(msg.Payload)
	body, attachments := extractBody(msg.Payload)
	return &models.Email{
		ID:              msg.Id,
		ThreadID:        msg.ThreadId,
		Subject:         headerOr(headers, "subject", "(件名なし)"),
		From:            headers["from"],
		To:              headers["to"],
		CC:              headers["cc"],
		Date:            headers["date"],
		Body:            body,
		LabelIDs:        msg.LabelIds,
		HasAttachments:  attachments > 0,
		AttachmentCount: attachments,
	}, nil
}

// SendEmail sends a plain-text message and returns its ID.
func (g *Gmail) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	raw := buildMIMEMessage(to, subject, body)
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}
	res, err := g.svc.Users.Messages.Send(gmailUser, msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	slog.Info("gsuite: sent email", "messageID", res.Id)
	return res.Id, nil
}

// ModifyLabels adds and removes labels on a message. Label IDs are Gmail's
// system names (UNREAD, STARRED, IMPORTANT, ...).
func (g *Gmail) ModifyLabels(ctx context.Context, emailID string, add, remove []string) error {
	req := &gmail.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	if _, err := g.svc.Users.Messages.Modify(gmailUser, emailID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to modify labels on email %s: %w", emailID, err)
	}
	return nil
}

// SaveDraft stores a plain-text draft and returns its ID.
func (g *Gmail) SaveDraft(ctx context.Context, to, subject, body string) (string, error) {
	raw := buildMIMEMessage(to, subject, body)
	draft := &gmail.Draft{
		Message: &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))},
	}
	res, err := g.svc.Users.Drafts.Create(gmailUser, draft).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to save draft: %w", err)
	}
	slog.Info("gsuite: saved draft", "draftID", res.Id)
	return res.Id, nil
}

// DeleteEmail moves a message to the trash.
func (g *Gmail) DeleteEmail(ctx context.Context, emailID string) error {
	if _, err := g.svc.Users.Messages.Trash(gmailUser, emailID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete email %s: %w", emailID, err)
	}
	slog.Info("gsuite: trashed email", "emailID", emailID)
	return nil
}

func buildMIMEMessage(to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: =?UTF-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	b.WriteString(base64.StdEncoding.EncodeToString([]byte(body)))
	return b.String()
}

func parseHeaders(payload *gmail.MessagePart) map[string]string {
	headers := make(map[string]string)
	if payload == nil {
		return headers
	}
	for _, h := range payload.Headers {
		name := strings.ToLower(h.Name)
		switch name {
		case "subject", "from", "to", "date", "cc":
			headers[name] = h.Value
		}
	}
	return headers
}

func headerOr(headers map[string]string, key, fallback string) string {
	if v := headers[key]; v != "" {
		return v
	}
	return fallback
}

// extractBody walks the MIME tree for the first text/plain part and counts
// attachments.
func extractBody(payload *gmail.MessagePart) (string, int) {
	if payload == nil {
		return "", 0
	}
	var body string
	var attachments int
	var walk func(part *gmail.MessagePart)
	walk = func(part *gmail.MessagePart) {
		if part == nil {
			return
		}
		if part.Filename != "" {
			attachments++
		}
		if body == "" && part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			// The API returns base64url without padding.
			decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
			if err == nil {
				body = string(decoded)
			}
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(payload)
	return body, attachments
}
