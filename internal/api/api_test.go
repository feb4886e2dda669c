package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/line"
	"github.com/hisho-bot/hisho/internal/models"
)

type fakeParser struct {
	events []models.Event
	err    error
}

func (f *fakeParser) ParseRequest(r *http.Request) ([]models.Event, error) {
	return f.events, f.err
}

type fakeHandler struct {
	handled []models.Event
}

func (f *fakeHandler) HandleEvent(ctx context.Context, ev models.Event) {
	f.handled = append(f.handled, ev)
}

type fakeLinker struct {
	userID      string
	callbackErr error
}

func (f *fakeLinker) DecodeState(state string) string {
	if state == "valid-state" {
		return f.userID
	}
	return ""
}

func (f *fakeLinker) HandleCallback(ctx context.Context, state, code string) (string, error) {
	if f.callbackErr != nil {
		return "", f.callbackErr
	}
	return f.userID, nil
}

type fakeDelivery struct {
	pushes  []string
	pushErr error
}

func (f *fakeDelivery) Reply(ctx context.Context, replyToken string, msgs []linebot.SendingMessage) error {
	return nil
}

func (f *fakeDelivery) Push(ctx context.Context, userID string, msgs []linebot.SendingMessage) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, userID)
	return nil
}

func (f *fakeDelivery) ShowLoading(ctx context.Context, chatID string) error {
	return nil
}

type serverFixture struct {
	srv     *Server
	parser  *fakeParser
	handler *fakeHandler
	linker  *fakeLinker
	line    *fakeDelivery
}

func newServerFixture() *serverFixture {
	parser := &fakeParser{}
	handler := &fakeHandler{}
	linker := &fakeLinker{userID: "U1"}
	delivery := &fakeDelivery{}
	return &serverFixture{
		srv:     NewServer(parser, handler, linker, delivery),
		parser:  parser,
		handler: handler,
		linker:  linker,
		line:    delivery,
	}
}

func TestWebhookDispatchesEvents(t *testing.T) {
	f := newServerFixture()
	f.parser.events = []models.Event{
		{Kind: models.EventText, UserID: "U1", Text: "a"},
		{Kind: models.EventPostback, UserID: "U2", PostbackData: "action=cancel"},
	}

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if len(f.handler.handled) != 2 {
		t.Errorf("handled %d events, want 2", len(f.handler.handled))
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	f := newServerFixture()
	f.parser.err = line.ErrInvalidSignature

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if len(f.handler.handled) != 0 {
		t.Errorf("handled %d events, want 0", len(f.handler.handled))
	}
}

func TestWebhookRejectsUnparsableBody(t *testing.T) {
	f := newServerFixture()
	f.parser.err = errors.New("unexpected EOF")

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader("???"))
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOAuthCallbackSuccess(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state=valid-state", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want HTML", ct)
	}
	if !strings.Contains(rec.Body.String(), "完了しました") {
		t.Errorf("body missing completion notice: %s", rec.Body.String())
	}
	if len(f.line.pushes) != 1 || f.line.pushes[0] != "U1" {
		t.Errorf("pushes = %v, want one to U1", f.line.pushes)
	}
}

func TestOAuthCallbackPushFailureStillSucceeds(t *testing.T) {
	f := newServerFixture()
	f.line.pushErr = errors.New("rate limited")

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state=valid-state", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite push failure", rec.Code)
	}
}

func TestOAuthCallbackDenied(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?error=access_denied", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "キャンセル") {
		t.Errorf("body missing cancellation notice: %s", rec.Body.String())
	}
}

func TestOAuthCallbackMissingParams(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=only-code", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOAuthCallbackInvalidState(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state=forged", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(f.line.pushes) != 0 {
		t.Errorf("pushes = %v, want none", f.line.pushes)
	}
}

func TestOAuthCallbackExchangeFailure(t *testing.T) {
	f := newServerFixture()
	f.linker.callbackErr = errors.New("exchange failed")

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state=valid-state", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "失敗しました") {
		t.Errorf("body missing failure notice: %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
