// Package auth manages per-user Google OAuth2 credentials.
//
// It wraps the token store with transparent refresh, builds consent URLs
// with an HMAC-signed state parameter, and handles the authorization-code
// callback exchange.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hisho-bot/hisho/internal/store"
)

// Scopes requested at consent time: calendar plus mail read/write.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/gmail.modify",
}

// refreshLeeway refreshes tokens slightly before they actually expire so a
// downstream call never races the expiry.
const refreshLeeway = 60 * time.Second

// GoogleCredentials is the credential payload forwarded to the agent runtime
// alongside a prompt. It mirrors the token fields the remote agent needs to
// construct its own client.
type GoogleCredentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Expired      bool   `json:"expired,omitempty"`
}

// Opts holds configuration for the credential provider.
type Opts struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  string
}

// Option configures the credential provider.
type Option func(*Opts)

// WithClientCredentials sets the Google OAuth client ID and secret.
func WithClientCredentials(id, secret string) Option {
	return func(o *Opts) {
		o.ClientID = id
		o.ClientSecret = secret
	}
}

// WithRedirectURL sets the OAuth callback URL registered with Google.
func WithRedirectURL(u string) Option {
	return func(o *Opts) {
		o.RedirectURL = u
	}
}

// WithStateSecret sets the HMAC key for signing the state parameter.
func WithStateSecret(s string) Option {
	return func(o *Opts) {
		o.StateSecret = s
	}
}

// Provider resolves LINE user IDs to valid Google credentials.
type Provider struct {
	conf        *oauth2.Config
	tokens      store.TokenStore
	stateSecret string
	now         func() time.Time
}

// NewProvider creates a credential provider on top of the token store.
func NewProvider(tokens store.TokenStore, opts ...Option) *Provider {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Provider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
		tokens:      tokens,
		stateSecret: cfg.StateSecret,
		now:         time.Now,
	}
}

// Credentials returns a currently valid token for the user, refreshing and
// persisting it when it is about to expire. It returns (nil, nil) when the
// user never linked or can no longer be refreshed.
func (p *Provider) Credentials(ctx context.Context, userID string) (*oauth2.Token, error) {
	rec, err := p.tokens.GetTokens(userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	tok := &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		Expiry:       time.Unix(rec.TokenExpiry, 0),
	}

	if tok.Expiry.After(p.now().Add(refreshLeeway)) {
		return tok, nil
	}

	if tok.RefreshToken == "" {
		slog.Warn("auth: token expired with no refresh token", "userID", userID)
		return nil, nil
	}

	refreshed, err := p.conf.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh for %s failed: %w", userID, err)
	}
	if err := p.tokens.SaveTokens(store.TokenRecord{
		UserID:       userID,
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		TokenExpiry:  refreshed.Expiry.Unix(),
	}); err != nil {
		return nil, err
	}
	slog.Info("auth: refreshed token", "userID", userID)
	return refreshed, nil
}

// AgentCredentials returns the credential payload for the agent runtime, or
// nil when the user has no valid credentials.
func (p *Provider) AgentCredentials(ctx context.Context, userID string) (*GoogleCredentials, error) {
	tok, err := p.Credentials(ctx, userID)
	if err != nil || tok == nil {
		return nil, err
	}
	return &GoogleCredentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ClientID:     p.conf.ClientID,
		ClientSecret: p.conf.ClientSecret,
		Expired:      !tok.Expiry.After(p.now()),
	}, nil
}

// TokenSource adapts a token into a refreshing source for the Google API
// clients.
func (p *Provider) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return p.conf.TokenSource(ctx, tok)
}

// AuthURL builds the Google consent URL for the user, with offline access so
// a refresh token is issued.
func (p *Provider) AuthURL(userID string) string {
	return p.conf.AuthCodeURL(p.EncodeState(userID), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// EncodeState signs the user ID into an OAuth state parameter.
func (p *Provider) EncodeState(userID string) string {
	return userID + ":" + p.sign(userID)
}

// DecodeState verifies the state parameter and recovers the user ID. It
// returns an empty string when the signature does not match.
func (p *Provider) DecodeState(state string) string {
	userID, mac, ok := strings.Cut(state, ":")
	if !ok {
		return ""
	}
	if !hmac.Equal([]byte(mac), []byte(p.sign(userID))) {
		return ""
	}
	return userID
}

// HandleCallback verifies the state, exchanges the authorization code, and
// persists the resulting tokens. It returns the linked user ID.
func (p *Provider) HandleCallback(ctx context.Context, state, code string) (string, error) {
	userID := p.DecodeState(state)
	if userID == "" {
		return "", fmt.Errorf("invalid state parameter")
	}
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", err)
	}
	if err := p.tokens.SaveTokens(store.TokenRecord{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry.Unix(),
	}); err != nil {
		return "", err
	}
	slog.Info("auth: linked Google account", "userID", userID)
	return userID, nil
}

// Unlink removes the user's stored tokens.
func (p *Provider) Unlink(userID string) error {
	return p.tokens.DeleteTokens(userID)
}

func (p *Provider) sign(userID string) string {
	mac := hmac.New(sha256.New, []byte(p.stateSecret))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}
