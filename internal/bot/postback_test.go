package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	"golang.org/x/oauth2"

	"github.com/hisho-bot/hisho/internal/models"
)

func postbackEvent(data string) models.Event {
	return models.Event{Kind: models.EventPostback, UserID: "U1", ReplyToken: "rt-1", PostbackData: data}
}

// withFakeCalendar wires cal as the per-user calendar client.
func withFakeCalendar(cal *fakeCalendar) Option {
	return WithCalendarFactory(func(ctx context.Context, ts oauth2.TokenSource) (Calendar, error) {
		return cal, nil
	})
}

func TestPostbackSelectTimeRendersConfirmation(t *testing.T) {
	f := newFixture(t)

	f.c.HandleEvent(context.Background(), postbackEvent("action=select_time&date=2026-02-09&start=10:00&end=11:00&summary=%E4%BC%9A%E8%AD%B0"))

	if f.agent.calls != 0 {
		t.Errorf("agent calls = %d, want 0", f.agent.calls)
	}
	if len(f.line.replies) != 1 || len(f.line.replies[0]) != 1 {
		t.Fatalf("replies = %v, want one confirmation", f.line.replies)
	}
	if _, ok := f.line.replies[0][0].(*linebot.FlexMessage); !ok {
		t.Errorf("message is %T, want flex confirmation", f.line.replies[0][0])
	}
}

func TestPostbackSelectDateRendersTimePicker(t *testing.T) {
	var gotFrom, gotTo string
	cal := &fakeCalendar{
		freeBusy: func(dateFrom, dateTo string) ([]models.BusySlot, error) {
			gotFrom, gotTo = dateFrom, dateTo
			return []models.BusySlot{{Start: "2026-02-09T10:00:00+09:00", End: "2026-02-09T11:00:00+09:00"}}, nil
		},
	}
	f := newFixture(t, withFakeCalendar(cal))
	if err := f.store.SaveState("U1", models.ConversationState{
		Action:         models.StateDateSelection,
		SuggestedTitle: "ランチ",
	}); err != nil {
		t.Fatal(err)
	}

	f.c.HandleEvent(context.Background(), postbackEvent("action=select_date&date=2026-02-09"))

	if gotFrom != "2026-02-09" || gotTo != "2026-02-09" {
		t.Errorf("free/busy queried %q-%q, want the tapped date twice", gotFrom, gotTo)
	}
	state, err := f.store.GetState("U1")
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.Action != models.StateSelectDate {
		t.Fatalf("state = %+v, want select_date", state)
	}
	if state.SuggestedTitle != "ランチ" {
		t.Errorf("SuggestedTitle = %q, want carried forward", state.SuggestedTitle)
	}
	if len(f.line.replies) != 1 || len(f.line.replies[0]) != 1 {
		t.Fatalf("replies = %v, want one time picker", f.line.replies)
	}
}

func TestPostbackConfirmCreate(t *testing.T) {
	var gotSummary, gotStart, gotEnd string
	cal := &fakeCalendar{
		createEvent: func(summary, start, end string) (*models.CalendarEvent, error) {
			gotSummary, gotStart, gotEnd = summary, start, end
			return &models.CalendarEvent{ID: "ev1", Summary: summary, Start: start, End: end}, nil
		},
	}
	f := newFixture(t, withFakeCalendar(cal))
	if err := f.store.SaveState("U1", models.ConversationState{Action: models.StateSelectDate}); err != nil {
		t.Fatal(err)
	}

	f.c.HandleEvent(context.Background(), postbackEvent("action=confirm_create&date=2026-02-09&start=10:00&end=11:00&summary=%E4%BC%9A%E8%AD%B0"))

	if gotSummary != "会議" {
		t.Errorf("summary = %q, want 会議", gotSummary)
	}
	if gotStart != "2026-02-09T10:00:00+09:00" || gotEnd != "2026-02-09T11:00:00+09:00" {
		t.Errorf("slot = %q-%q, want RFC3339 JST bounds", gotStart, gotEnd)
	}
	state, _ := f.store.GetState("U1")
	if state != nil {
		t.Errorf("state not cleared after creation: %+v", state)
	}
	got := singleReplyText(t, f.line)
	if !strings.Contains(got, "予定を作成しました") || !strings.Contains(got, "会議") {
		t.Errorf("reply = %q, want creation notice with title", got)
	}
}

func TestPostbackConfirmCreateDefaultsSummary(t *testing.T) {
	var gotSummary string
	cal := &fakeCalendar{
		createEvent: func(summary, start, end string) (*models.CalendarEvent, error) {
			gotSummary = summary
			return &models.CalendarEvent{ID: "ev1", Summary: summary}, nil
		},
	}
	f := newFixture(t, withFakeCalendar(cal))

	f.c.HandleEvent(context.Background(), postbackEvent("action=confirm_create&date=2026-02-09&start=10:00&end=11:00"))

	if gotSummary != defaultEventSummary {
		t.Errorf("summary = %q, want default %q", gotSummary, defaultEventSummary)
	}
}

func TestPostbackConfirmCreateAllDay(t *testing.T) {
	var gotStart, gotEnd string
	cal := &fakeCalendar{
		createEvent: func(summary, start, end string) (*models.CalendarEvent, error) {
			gotStart, gotEnd = start, end
			return &models.CalendarEvent{ID: "ev1", Summary: summary}, nil
		},
	}
	f := newFixture(t, withFakeCalendar(cal))

	f.c.HandleEvent(context.Background(), postbackEvent("action=confirm_create&date=2026-02-09&summary=%E7%A5%9D%E6%97%A5"))

	if gotStart != "2026-02-09" || gotEnd != "2026-02-09" {
		t.Errorf("slot = %q-%q, want bare dates for all-day", gotStart, gotEnd)
	}
	got := singleReplyText(t, f.line)
	if !strings.Contains(got, "終日") {
		t.Errorf("reply = %q, want all-day notice", got)
	}
}

func TestPostbackEditTitleStoresSlot(t *testing.T) {
	f := newFixture(t)

	f.c.HandleEvent(context.Background(), postbackEvent("action=edit_title&date=2026-02-09&start=10:00&end=11:00"))

	state, err := f.store.GetState("U1")
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.Action != models.StateEditTitle {
		t.Fatalf("state = %+v, want edit_title", state)
	}
	if state.Date != "2026-02-09" || state.Start != "10:00" || state.End != "11:00" {
		t.Errorf("stored slot = %q %q-%q", state.Date, state.Start, state.End)
	}
	got := singleReplyText(t, f.line)
	if !strings.Contains(got, "タイトル") {
		t.Errorf("reply = %q, want title prompt", got)
	}
}

func TestPostbackEventDetail(t *testing.T) {
	cal := &fakeCalendar{
		getEvent: func(eventID string) (*models.CalendarEvent, error) {
			return &models.CalendarEvent{
				ID:       eventID,
				Summary:  "定例会議",
				Start:    "2026-02-09T10:00:00+09:00",
				End:      "2026-02-09T11:00:00+09:00",
				Location: "会議室A",
			}, nil
		},
	}
	f := newFixture(t, withFakeCalendar(cal))

	f.c.HandleEvent(context.Background(), postbackEvent("action=event_detail&event_id=ev-7"))

	got := singleReplyText(t, f.line)
	for _, want := range []string{"定例会議", "会議室A"} {
		if !strings.Contains(got, want) {
			t.Errorf("detail %q missing %q", got, want)
		}
	}
}

func TestPostbackEventEditStoresTarget(t *testing.T) {
	f := newFixture(t)

	f.c.HandleEvent(context.Background(), postbackEvent("action=event_edit&event_id=ev-7"))

	state, err := f.store.GetState("U1")
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.Action != models.StateEventEdit || state.EventID != "ev-7" {
		t.Fatalf("state = %+v, want event_edit for ev-7", state)
	}
}

func TestPostbackEventDeleteAsksConfirmation(t *testing.T) {
	var deleted bool
	cal := &fakeCalendar{
		getEvent: func(eventID string) (*models.CalendarEvent, error) {
			return &models.CalendarEvent{ID: eventID, Summary: "定例会議"}, nil
		},
		deleteEvent: func(eventID string) error {
			deleted = true
			return nil
		},
	}
	f := newFixture(t, withFakeCalendar(cal))

	f.c.HandleEvent(context.Background(), postbackEvent("action=event_delete&event_id=ev-7"))

	if deleted {
		t.Error("event deleted before confirmation")
	}
	if len(f.line.replies) != 1 || len(f.line.replies[0]) != 1 {
		t.Fatalf("replies = %v, want one confirmation card", f.line.replies)
	}
	if _, ok := f.line.replies[0][0].(*linebot.FlexMessage); !ok {
		t.Errorf("message is %T, want flex confirmation", f.line.replies[0][0])
	}
}

func TestPostbackConfirmDelete(t *testing.T) {
	var deletedID string
	cal := &fakeCalendar{
		deleteEvent: func(eventID string) error {
			deletedID = eventID
			return nil
		},
	}
	f := newFixture(t, withFakeCalendar(cal))

	f.c.HandleEvent(context.Background(), postbackEvent("action=confirm_delete&event_id=ev-7"))

	if deletedID != "ev-7" {
		t.Errorf("deleted %q, want ev-7", deletedID)
	}
	if got := singleReplyText(t, f.line); got != "予定を削除しました。" {
		t.Errorf("reply = %q", got)
	}
}

func TestPostbackEmailActionsDelegateToAgent(t *testing.T) {
	cases := []struct {
		data       string
		wantInside []string
	}{
		{"action=email_detail&email_id=m-1", []string{"m-1", "詳細"}},
		{"action=email_delete&email_id=m-2", []string{"m-2", "削除"}},
		{"action=email_send&to=a%40example.com&subject=Hi&body=Thanks", []string{"a@example.com", "Hi", "Thanks"}},
	}
	for _, tc := range cases {
		f := newFixture(t)

		f.c.HandleEvent(context.Background(), postbackEvent(tc.data))

		if f.agent.calls != 1 {
			t.Fatalf("%s: agent calls = %d, want 1", tc.data, f.agent.calls)
		}
		for _, want := range tc.wantInside {
			if !strings.Contains(f.agent.prompts[0], want) {
				t.Errorf("%s: prompt %q missing %q", tc.data, f.agent.prompts[0], want)
			}
		}
	}
}

func TestPostbackCancelClearsStateSilently(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SaveState("U1", models.ConversationState{Action: models.StateSelectDate}); err != nil {
		t.Fatal(err)
	}

	f.c.HandleEvent(context.Background(), postbackEvent("action=cancel"))

	state, _ := f.store.GetState("U1")
	if state != nil {
		t.Errorf("state survived cancel: %+v", state)
	}
	if len(f.line.replies) != 0 || len(f.line.pushes) != 0 {
		t.Errorf("cancel emitted messages: replies=%v pushes=%v", f.line.replies, f.line.pushes)
	}
}

func TestPostbackUnknownActionIgnored(t *testing.T) {
	f := newFixture(t)

	f.c.HandleEvent(context.Background(), postbackEvent("action=dance"))

	if f.agent.calls != 0 {
		t.Errorf("agent calls = %d, want 0", f.agent.calls)
	}
	if len(f.line.replies) != 0 || len(f.line.pushes) != 0 {
		t.Errorf("unknown action emitted messages: replies=%v pushes=%v", f.line.replies, f.line.pushes)
	}
}

func TestPostbackMalformedDataIgnored(t *testing.T) {
	f := newFixture(t)

	f.c.HandleEvent(context.Background(), postbackEvent("no-action-here"))

	if len(f.line.replies) != 0 || len(f.line.pushes) != 0 {
		t.Errorf("malformed postback emitted messages: replies=%v pushes=%v", f.line.replies, f.line.pushes)
	}
}

func TestCalendarPostbackWithoutCredentialsRendersOAuthCard(t *testing.T) {
	f := newFixture(t)
	f.creds.linked = false

	f.c.HandleEvent(context.Background(), postbackEvent("action=confirm_create&date=2026-02-09&start=10:00&end=11:00"))

	if len(f.line.replies) != 1 || len(f.line.replies[0]) != 1 {
		t.Fatalf("replies = %v, want one link card", f.line.replies)
	}
	if _, ok := f.line.replies[0][0].(*linebot.FlexMessage); !ok {
		t.Errorf("message is %T, want flex link card", f.line.replies[0][0])
	}
}

func TestCalendarFailureRendersGenericError(t *testing.T) {
	cal := &fakeCalendar{
		createEvent: func(summary, start, end string) (*models.CalendarEvent, error) {
			return nil, context.DeadlineExceeded
		},
	}
	f := newFixture(t, withFakeCalendar(cal))

	f.c.HandleEvent(context.Background(), postbackEvent("action=confirm_create&date=2026-02-09&start=10:00&end=11:00"))

	if got := singleReplyText(t, f.line); got != errGenericMessage {
		t.Errorf("reply = %q, want generic error text", got)
	}
}
