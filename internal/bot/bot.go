// Package bot implements the conversation controller: webhook event
// classification, the per-user multi-turn state machine, postback dispatch,
// intent rendering, and reply-vs-push delivery.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	"golang.org/x/oauth2"

	"github.com/hisho-bot/hisho/internal/agent"
	"github.com/hisho-bot/hisho/internal/auth"
	"github.com/hisho-bot/hisho/internal/flex"
	"github.com/hisho-bot/hisho/internal/gsuite"
	"github.com/hisho-bot/hisho/internal/line"
	"github.com/hisho-bot/hisho/internal/models"
	"github.com/hisho-bot/hisho/internal/sanitize"
	"github.com/hisho-bot/hisho/internal/store"
)

// errGenericMessage is the user-facing text for any caught handler failure.
const errGenericMessage = "申し訳ありません。エラーが発生しました。もう一度お試しください。"

// CredentialProvider is the slice of the auth provider the controller uses.
type CredentialProvider interface {
	// Credentials returns a valid token, or (nil, nil) when the user never
	// linked or can no longer be refreshed.
	Credentials(ctx context.Context, userID string) (*oauth2.Token, error)

	// AgentCredentials returns the credential payload forwarded to the agent,
	// or (nil, nil) when the user never linked.
	AgentCredentials(ctx context.Context, userID string) (*auth.GoogleCredentials, error)

	// TokenSource wraps a token for use with the Google API clients.
	TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource

	// AuthURL builds the Google consent URL for the user.
	AuthURL(userID string) string
}

// Calendar is the calendar surface the direct postback handlers call.
// Satisfied by *gsuite.Calendar; tests substitute a fake.
type Calendar interface {
	GetEvent(ctx context.Context, eventID string) (*models.CalendarEvent, error)
	CreateEvent(ctx context.Context, summary, start, end string) (*models.CalendarEvent, error)
	DeleteEvent(ctx context.Context, eventID string) error
	FreeBusy(ctx context.Context, dateFrom, dateTo string) ([]models.BusySlot, error)
}

// CalendarFactory builds a Calendar for one user's token source.
type CalendarFactory func(ctx context.Context, ts oauth2.TokenSource) (Calendar, error)

func defaultCalendarFactory(ctx context.Context, ts oauth2.TokenSource) (Calendar, error) {
	return gsuite.NewCalendar(ctx, ts)
}

// Opts holds configuration for the controller.
type Opts struct {
	StaticMapsKey   string
	CalendarFactory CalendarFactory
}

// Option configures the controller.
type Option func(*Opts)

// WithStaticMapsKey enables static-map hero images on place carousels.
func WithStaticMapsKey(key string) Option {
	return func(o *Opts) {
		o.StaticMapsKey = key
	}
}

// WithCalendarFactory overrides how calendar clients are built.
func WithCalendarFactory(f CalendarFactory) Option {
	return func(o *Opts) {
		o.CalendarFactory = f
	}
}

// Controller owns the conversation state machine. One instance serves all
// users; per-user state lives in the store.
type Controller struct {
	store       store.Store
	creds       CredentialProvider
	agent       agent.Invoker
	line        line.Service
	newCalendar CalendarFactory
	mapsKey     string
	now         func() time.Time
}

// NewController wires the conversation controller.
func NewController(st store.Store, creds CredentialProvider, inv agent.Invoker, svc line.Service, opts ...Option) *Controller {
	cfg := Opts{CalendarFactory: defaultCalendarFactory}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{
		store:       st,
		creds:       creds,
		agent:       inv,
		line:        svc,
		newCalendar: cfg.CalendarFactory,
		mapsKey:     cfg.StaticMapsKey,
		now:         time.Now,
	}
}

// HandleEvent processes one inbound webhook event end to end. It never
// panics outward: any handler failure degrades to the generic error message
// so the webhook ack can always succeed.
func (c *Controller) HandleEvent(ctx context.Context, ev models.Event) {
	started := c.now()

	if ev.WebhookEventID != "" {
		fresh, err := c.store.RecordInbound(ev.WebhookEventID, ev.UserID)
		if err != nil {
			// The dedup guard is best-effort; a storage hiccup must not
			// block the conversation.
			slog.Warn("bot: dedup check failed", "error", err, "webhookEventID", ev.WebhookEventID)
		} else if !fresh {
			slog.Info("bot: dropping duplicate webhook event", "webhookEventID", ev.WebhookEventID, "userID", ev.UserID)
			return
		}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("bot: handler panic", "panic", r, "kind", ev.Kind, "userID", ev.UserID)
			c.deliver(ctx, ev.ReplyToken, ev.UserID, textMessages(errGenericMessage), c.now().Sub(started))
		}
	}()

	var err error
	switch ev.Kind {
	case models.EventText:
		err = c.handleText(ctx, ev, started)
	case models.EventLocation:
		err = c.handleLocation(ctx, ev, started)
	case models.EventPostback:
		err = c.handlePostback(ctx, ev, started)
	default:
		slog.Debug("bot: ignoring event kind", "kind", ev.Kind)
	}
	if err != nil {
		slog.Error("bot: handler failed", "error", err, "kind", ev.Kind, "userID", ev.UserID)
		c.deliver(ctx, ev.ReplyToken, ev.UserID, textMessages(errGenericMessage), c.now().Sub(started))
	}
}

// handleText routes a text message: a pending edit_title state short-circuits
// to a confirmation render, a pending waiting_location state is cancelled,
// everything else delegates to the agent.
func (c *Controller) handleText(ctx context.Context, ev models.Event, started time.Time) error {
	state, err := c.store.GetState(ev.UserID)
	if err != nil {
		return fmt.Errorf("failed to read conversation state: %w", err)
	}

	prompt := ev.Text
	if state != nil {
		switch state.Action {
		case models.StateEditTitle:
			// Pure data substitution: the text is the new title for the
			// pending slot. No agent round trip.
			if err := c.store.ClearState(ev.UserID); err != nil {
				return fmt.Errorf("failed to clear conversation state: %w", err)
			}
			msgs := []linebot.SendingMessage{flex.EventConfirmation(state.Date, state.Start, state.End, ev.Text)}
			c.deliver(ctx, ev.ReplyToken, ev.UserID, msgs, c.now().Sub(started))
			return nil
		case models.StateWaitingLocation:
			// Text arriving instead of a location cancels the pending
			// request and routes normally.
			if err := c.store.ClearState(ev.UserID); err != nil {
				return fmt.Errorf("failed to clear conversation state: %w", err)
			}
		case models.StateEventEdit:
			if err := c.store.ClearState(ev.UserID); err != nil {
				return fmt.Errorf("failed to clear conversation state: %w", err)
			}
			prompt = fmt.Sprintf("予定ID %s について: %s", state.EventID, ev.Text)
		}
	}

	return c.delegate(ctx, ev, prompt, ev.Text, started)
}

// handleLocation routes a location message. A pending waiting_location state
// recovers the query that asked for the location.
func (c *Controller) handleLocation(ctx context.Context, ev models.Event, started time.Time) error {
	state, err := c.store.GetState(ev.UserID)
	if err != nil {
		return fmt.Errorf("failed to read conversation state: %w", err)
	}

	lat := strconv.FormatFloat(ev.Latitude, 'f', -1, 64)
	lon := strconv.FormatFloat(ev.Longitude, 'f', -1, 64)

	var prompt string
	if state != nil && state.Action == models.StateWaitingLocation {
		if err := c.store.ClearState(ev.UserID); err != nil {
			return fmt.Errorf("failed to clear conversation state: %w", err)
		}
		prompt = fmt.Sprintf("現在地は緯度 %s、経度 %s です。%s", lat, lon, state.OriginalQuery)
	} else {
		prompt = fmt.Sprintf("現在地は緯度 %s、経度 %s です。この近くのおすすめの場所を教えてください。", lat, lon)
	}

	return c.delegate(ctx, ev, prompt, "", started)
}

// delegate sends a prompt to the agent and renders the result.
// originalQuery is remembered when the agent asks for the user's location.
func (c *Controller) delegate(ctx context.Context, ev models.Event, prompt, originalQuery string, started time.Time) error {
	if err := c.line.ShowLoading(ctx, ev.UserID); err != nil {
		slog.Warn("bot: failed to show loading animation", "error", err, "userID", ev.UserID)
	}

	creds, err := c.creds.AgentCredentials(ctx, ev.UserID)
	if err != nil {
		slog.Warn("bot: failed to load agent credentials", "error", err, "userID", ev.UserID)
		creds = nil
	}

	raw, err := c.agent.Invoke(ctx, prompt, ev.UserID, creds)
	if err != nil {
		slog.Error("bot: agent invocation failed", "error", err, "userID", ev.UserID)
		c.deliver(ctx, ev.ReplyToken, ev.UserID, textMessages(errGenericMessage), c.now().Sub(started))
		return nil
	}

	resp := models.DecodeAgentResponse(sanitize.Extract(raw))
	msgs := c.render(ctx, ev.UserID, originalQuery, resp)
	c.deliver(ctx, ev.ReplyToken, ev.UserID, msgs, c.now().Sub(started))
	return nil
}

// calendarFor builds a calendar client for the user, or returns ok=false
// when the user has no linked Google account.
func (c *Controller) calendarFor(ctx context.Context, userID string) (Calendar, bool, error) {
	tok, err := c.creds.Credentials(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load credentials: %w", err)
	}
	if tok == nil {
		return nil, false, nil
	}
	cal, err := c.newCalendar(ctx, c.creds.TokenSource(ctx, tok))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build calendar client: %w", err)
	}
	return cal, true, nil
}

// oauthFallback renders the account-link prompt for users without
// credentials.
func (c *Controller) oauthFallback(userID string) []linebot.SendingMessage {
	return []linebot.SendingMessage{flex.OAuthLink(c.creds.AuthURL(userID))}
}

func textMessages(text string) []linebot.SendingMessage {
	return []linebot.SendingMessage{linebot.NewTextMessage(text)}
}
