// Package line integrates with the LINE Messaging API.
//
// It defines a pluggable delivery abstraction, its SDK-backed implementation,
// and webhook request parsing into the platform-neutral event model.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/models"
)

// ErrInvalidSignature is returned when the webhook signature check fails.
var ErrInvalidSignature = linebot.ErrInvalidSignature

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// Reply sends messages using a single-use reply token.
	Reply(ctx context.Context, replyToken string, msgs []linebot.SendingMessage) error

	// Push sends messages directly to a user, independent of a reply token.
	Push(ctx context.Context, userID string, msgs []linebot.SendingMessage) error

	// ShowLoading starts the typing/loading indicator for a chat.
	ShowLoading(ctx context.Context, chatID string) error
}

// loadingEndpoint is the chat-loading API URL; the v7 SDK does not wrap this
// endpoint, so the client calls it directly.
const loadingEndpoint = "https://api.line.me/v2/bot/chat/loading/start"

// loadingSeconds is the maximum duration LINE accepts for the indicator.
const loadingSeconds = 60

// Opts holds configuration for the LINE client.
type Opts struct {
	HTTPClient      *http.Client
	LoadingEndpoint string
}

// Option configures the LINE client.
type Option func(*Opts)

// WithHTTPClient sets the HTTP client used for non-SDK API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = hc
	}
}

// WithLoadingEndpoint overrides the chat-loading endpoint (for tests).
func WithLoadingEndpoint(u string) Option {
	return func(o *Opts) {
		o.LoadingEndpoint = u
	}
}

// Client is the linebot-SDK-backed Service implementation.
type Client struct {
	bot             *linebot.Client
	channelToken    string
	httpClient      *http.Client
	loadingEndpoint string
}

// Compile-time check that Client implements Service.
var _ Service = (*Client)(nil)

// NewClient creates a LINE client for the given channel credentials.
func NewClient(channelSecret, channelToken string, opts ...Option) (*Client, error) {
	cfg := Opts{HTTPClient: http.DefaultClient, LoadingEndpoint: loadingEndpoint}
	for _, opt := range opts {
		opt(&cfg)
	}
	bot, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE client: %w", err)
	}
	return &Client{
		bot:             bot,
		channelToken:    channelToken,
		httpClient:      cfg.HTTPClient,
		loadingEndpoint: cfg.LoadingEndpoint,
	}, nil
}

// ParseRequest verifies the webhook signature and converts the batch into
// platform-neutral events. Event kinds outside text/location/postback are
// dropped.
func (c *Client) ParseRequest(r *http.Request) ([]models.Event, error) {
	lineEvents, err := c.bot.ParseRequest(r)
	if err != nil {
		return nil, err
	}

	var events []models.Event
	for _, ev := range lineEvents {
		if ev.Source == nil {
			continue
		}
		base := models.Event{
			UserID:         ev.Source.UserID,
			ReplyToken:     ev.ReplyToken,
			WebhookEventID: ev.WebhookEventID,
		}
		switch ev.Type {
		case linebot.EventTypeMessage:
			switch msg := ev.Message.(type) {
			case *linebot.TextMessage:
				base.Kind = models.EventText
				base.Text = msg.Text
				if base.WebhookEventID == "" {
					base.WebhookEventID = msg.ID
				}
				events = append(events, base)
			case *linebot.LocationMessage:
				base.Kind = models.EventLocation
				base.Latitude = msg.Latitude
				base.Longitude = msg.Longitude
				base.Address = msg.Address
				if base.WebhookEventID == "" {
					base.WebhookEventID = msg.ID
				}
				events = append(events, base)
			default:
				slog.Debug("line: ignoring unsupported message type", "userID", base.UserID)
			}
		case linebot.EventTypePostback:
			base.Kind = models.EventPostback
			base.PostbackData = ev.Postback.Data
			events = append(events, base)
		default:
			slog.Debug("line: ignoring event type", "type", ev.Type)
		}
	}
	return events, nil
}

// Reply sends messages using the reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs []linebot.SendingMessage) error {
	if _, err := c.bot.ReplyMessage(replyToken, msgs...).WithContext(ctx).Do(); err != nil {
		return fmt.Errorf("reply failed: %w", err)
	}
	return nil
}

// Push sends messages directly to the user.
func (c *Client) Push(ctx context.Context, userID string, msgs []linebot.SendingMessage) error {
	if _, err := c.bot.PushMessage(userID, msgs...).WithContext(ctx).Do(); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	return nil
}

// ShowLoading starts the loading indicator. Failures are the caller's to
// tolerate; the indicator is cosmetic.
func (c *Client) ShowLoading(ctx context.Context, chatID string) error {
	payload, err := json.Marshal(map[string]any{
		"chatId":         chatID,
		"loadingSeconds": loadingSeconds,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loadingEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("loading animation request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("loading animation rejected: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
