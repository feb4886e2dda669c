package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/flex"
	"github.com/hisho-bot/hisho/internal/models"
)

// defaultEventSummary titles an event created without one.
const defaultEventSummary = "新しい予定"

// handlePostback parses the data payload and dispatches to the fixed set of
// action handlers. Calendar actions call the Calendar API directly since the
// payload already carries the needed parameters; email actions re-delegate a
// synthesized instruction to the agent, whose judgement is still needed
// there. An unknown action is logged and dropped.
func (c *Controller) handlePostback(ctx context.Context, ev models.Event, started time.Time) error {
	data, err := models.ParsePostback(ev.PostbackData)
	if err != nil {
		slog.Warn("bot: dropping malformed postback", "error", err, "data", ev.PostbackData, "userID", ev.UserID)
		return nil
	}

	switch data.Action {
	case models.PostbackSelectDate:
		return c.postbackSelectDate(ctx, ev, data, started)
	case models.PostbackSelectTime:
		msgs := []linebot.SendingMessage{flex.EventConfirmation(data.Date, data.Start, data.End, data.Summary)}
		c.deliver(ctx, ev.ReplyToken, ev.UserID, msgs, c.now().Sub(started))
		return nil
	case models.PostbackConfirmCreate:
		return c.postbackConfirmCreate(ctx, ev, data, started)
	case models.PostbackEditTitle:
		return c.postbackEditTitle(ctx, ev, data, started)
	case models.PostbackEventDetail:
		return c.postbackEventDetail(ctx, ev, data, started)
	case models.PostbackEventEdit:
		return c.postbackEventEdit(ctx, ev, data, started)
	case models.PostbackEventDelete:
		return c.postbackEventDelete(ctx, ev, data, started)
	case models.PostbackConfirmDelete:
		return c.postbackConfirmDelete(ctx, ev, data, started)
	case models.PostbackEmailDetail:
		prompt := fmt.Sprintf("ID %s のメールの詳細を表示して", data.EmailID)
		return c.delegate(ctx, ev, prompt, "", started)
	case models.PostbackEmailDelete:
		prompt := fmt.Sprintf("ID %s のメールを削除して", data.EmailID)
		return c.delegate(ctx, ev, prompt, "", started)
	case models.PostbackEmailSend:
		prompt := fmt.Sprintf("宛先 %s、件名「%s」、本文「%s」でメールを送信して", data.To, data.Subject, data.Body)
		return c.delegate(ctx, ev, prompt, "", started)
	case models.PostbackCancel:
		if err := c.store.ClearState(ev.UserID); err != nil {
			return fmt.Errorf("failed to clear conversation state: %w", err)
		}
		return nil
	default:
		slog.Warn("bot: unknown postback action", "action", data.Action, "userID", ev.UserID)
		return nil
	}
}

// postbackSelectDate answers a tapped date with the time picker for that
// day, marking occupied slots from a free/busy lookup. The suggested title
// from the preceding date_selection state is carried forward.
func (c *Controller) postbackSelectDate(ctx context.Context, ev models.Event, data models.PostbackData, started time.Time) error {
	cal, ok, err := c.calendarFor(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !ok {
		c.deliver(ctx, ev.ReplyToken, ev.UserID, c.oauthFallback(ev.UserID), c.now().Sub(started))
		return nil
	}

	var title string
	if state, err := c.store.GetState(ev.UserID); err != nil {
		return fmt.Errorf("failed to read conversation state: %w", err)
	} else if state != nil {
		title = state.SuggestedTitle
	}

	busySlots, err := cal.FreeBusy(ctx, data.Date, data.Date)
	if err != nil {
		return fmt.Errorf("free/busy lookup failed: %w", err)
	}

	next := models.ConversationState{
		Action:         models.StateSelectDate,
		SuggestedTitle: title,
	}
	if err := c.store.SaveState(ev.UserID, next); err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}

	msgs := []linebot.SendingMessage{flex.TimePicker(data.Date, title, busySlots)}
	c.deliver(ctx, ev.ReplyToken, ev.UserID, msgs, c.now().Sub(started))
	return nil
}

// postbackConfirmCreate creates the confirmed event. There is no retry: a
// failure surfaces once rather than risking a duplicate event.
func (c *Controller) postbackConfirmCreate(ctx context.Context, ev models.Event, data models.PostbackData, started time.Time) error {
	cal, ok, err := c.calendarFor(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !ok {
		c.deliver(ctx, ev.ReplyToken, ev.UserID, c.oauthFallback(ev.UserID), c.now().Sub(started))
		return nil
	}

	summary := data.Summary
	if summary == "" {
		summary = defaultEventSummary
	}

	created, err := cal.CreateEvent(ctx, summary, slotDateTime(data.Date, data.Start), slotDateTime(data.Date, data.End))
	if err != nil {
		return fmt.Errorf("event creation failed: %w", err)
	}
	if err := c.store.ClearState(ev.UserID); err != nil {
		return fmt.Errorf("failed to clear conversation state: %w", err)
	}

	var when string
	if data.Start == "" {
		when = fmt.Sprintf("%s（終日）", data.Date)
	} else {
		when = fmt.Sprintf("%s %s〜%s", data.Date, data.Start, data.End)
	}
	text := fmt.Sprintf("予定を作成しました。\n\n📅 %s\n%s", created.Summary, when)
	c.deliver(ctx, ev.ReplyToken, ev.UserID, textMessages(text), c.now().Sub(started))
	return nil
}

// postbackEditTitle stores the pending slot and asks for the new title. The
// next text message from the user completes the flow without an agent call.
func (c *Controller) postbackEditTitle(ctx context.Context, ev models.Event, data models.PostbackData, started time.Time) error {
	state := models.ConversationState{
		Action: models.StateEditTitle,
		Date:   data.Date,
		Start:  data.Start,
		End:    data.End,
	}
	if err := c.store.SaveState(ev.UserID, state); err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	c.deliver(ctx, ev.ReplyToken, ev.UserID, textMessages("新しいタイトルを入力してください。"), c.now().Sub(started))
	return nil
}

func (c *Controller) postbackEventDetail(ctx context.Context, ev models.Event, data models.PostbackData, started time.Time) error {
	cal, ok, err := c.calendarFor(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !ok {
		c.deliver(ctx, ev.ReplyToken, ev.UserID, c.oauthFallback(ev.UserID), c.now().Sub(started))
		return nil
	}

	event, err := cal.GetEvent(ctx, data.EventID)
	if err != nil {
		return fmt.Errorf("event lookup failed: %w", err)
	}
	c.deliver(ctx, ev.ReplyToken, ev.UserID, textMessages(eventDetailText(*event)), c.now().Sub(started))
	return nil
}

// postbackEventEdit remembers which event to change and asks how; the
// follow-up text is routed to the agent with the event id attached.
func (c *Controller) postbackEventEdit(ctx context.Context, ev models.Event, data models.PostbackData, started time.Time) error {
	state := models.ConversationState{
		Action:  models.StateEventEdit,
		EventID: data.EventID,
	}
	if err := c.store.SaveState(ev.UserID, state); err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	text := "どのように変更しますか？\n（例：「時間を15時に変更」「タイトルを会議に変更」）"
	c.deliver(ctx, ev.ReplyToken, ev.UserID, textMessages(text), c.now().Sub(started))
	return nil
}

// postbackEventDelete asks for confirmation before deleting.
func (c *Controller) postbackEventDelete(ctx context.Context, ev models.Event, data models.PostbackData, started time.Time) error {
	cal, ok, err := c.calendarFor(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !ok {
		c.deliver(ctx, ev.ReplyToken, ev.UserID, c.oauthFallback(ev.UserID), c.now().Sub(started))
		return nil
	}

	event, err := cal.GetEvent(ctx, data.EventID)
	if err != nil {
		return fmt.Errorf("event lookup failed: %w", err)
	}
	msgs := []linebot.SendingMessage{flex.DeleteConfirmation(*event)}
	c.deliver(ctx, ev.ReplyToken, ev.UserID, msgs, c.now().Sub(started))
	return nil
}

func (c *Controller) postbackConfirmDelete(ctx context.Context, ev models.Event, data models.PostbackData, started time.Time) error {
	cal, ok, err := c.calendarFor(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !ok {
		c.deliver(ctx, ev.ReplyToken, ev.UserID, c.oauthFallback(ev.UserID), c.now().Sub(started))
		return nil
	}

	if err := cal.DeleteEvent(ctx, data.EventID); err != nil {
		return fmt.Errorf("event deletion failed: %w", err)
	}
	c.deliver(ctx, ev.ReplyToken, ev.UserID, textMessages("予定を削除しました。"), c.now().Sub(started))
	return nil
}

// slotDateTime joins a date and an HH:MM clock into the RFC3339 JST form the
// Calendar wrapper expects. An empty clock leaves a bare date, which the
// wrapper treats as all-day.
func slotDateTime(date, clock string) string {
	if clock == "" {
		return date
	}
	return date + "T" + clock + ":00+09:00"
}

func eventDetailText(event models.CalendarEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s\n", event.Summary)
	fmt.Fprintf(&b, "日時: %s", event.Start)
	if event.End != "" {
		fmt.Fprintf(&b, " 〜 %s", event.End)
	}
	if event.Location != "" {
		fmt.Fprintf(&b, "\n場所: %s", event.Location)
	}
	if len(event.Attendees) > 0 {
		fmt.Fprintf(&b, "\n参加者: %s", strings.Join(event.Attendees, ", "))
	}
	if event.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", event.Description)
	}
	return b.String()
}
