package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/flex"
	"github.com/hisho-bot/hisho/internal/gsuite"
	"github.com/hisho-bot/hisho/internal/models"
)

// busyAllDayThreshold marks a date unavailable in the date picker when its
// total busy time reaches this duration.
const busyAllDayThreshold = 8 * time.Hour

// render maps a decoded agent response to the outbound message list. When a
// type carries both a message and a rich attachment, the plain text goes
// first as its own message; the platform requires them separate. Side
// effects: location_request and date_selection persist follow-up state.
func (c *Controller) render(ctx context.Context, userID, originalQuery string, resp models.AgentResponse) []linebot.SendingMessage {
	if !resp.ParsedOK {
		return textMessages(resp.Raw)
	}

	switch resp.Type {
	case models.ResponseText:
		return textMessages(messageOr(resp, "すみません、うまく応答できませんでした。"))

	case models.ResponseCalendarEvents:
		if len(resp.Events) == 0 {
			return textMessages(messageOr(resp, "予定はありません。"))
		}
		return withLeadingText(resp.Message, flex.EventsCarousel(resp.Events, resp.Message))

	case models.ResponseEventCreated:
		return textMessages(messageOr(resp, "予定を作成しました。"))

	case models.ResponseEventUpdated:
		return textMessages(messageOr(resp, "予定を更新しました。"))

	case models.ResponseEventDeleted:
		return textMessages(messageOr(resp, "予定を削除しました。"))

	case models.ResponseDateSelection:
		state := models.ConversationState{
			Action:         models.StateDateSelection,
			SuggestedTitle: resp.SuggestedTitle,
		}
		if err := c.store.SaveState(userID, state); err != nil {
			slog.Error("bot: failed to save date_selection state", "error", err, "userID", userID)
		}
		today := c.now().In(gsuite.JST)
		busyDates := busyAllDayDates(resp.BusySlots)
		return withLeadingText(resp.Message, flex.DatePicker(today, busyDates))

	case models.ResponseLocationRequest:
		if originalQuery != "" {
			state := models.ConversationState{
				Action:        models.StateWaitingLocation,
				OriginalQuery: originalQuery,
			}
			if err := c.store.SaveState(userID, state); err != nil {
				slog.Error("bot: failed to save waiting_location state", "error", err, "userID", userID)
			}
		}
		msg := linebot.NewTextMessage(messageOr(resp, "位置情報を送ってください。")).
			WithQuickReplies(linebot.NewQuickReplyItems(
				linebot.NewQuickReplyButton("", linebot.NewLocationAction("位置情報を送る")),
			))
		return []linebot.SendingMessage{msg}

	case models.ResponsePlaceSearch:
		if len(resp.Places) == 0 {
			return textMessages(messageOr(resp, "場所が見つかりませんでした。"))
		}
		return withLeadingText(resp.Message, flex.PlaceCarousel(resp.Places, resp.Message, false, c.mapsKey))

	case models.ResponsePlaceRecommend:
		if len(resp.Places) == 0 {
			return textMessages(messageOr(resp, "場所が見つかりませんでした。"))
		}
		return withLeadingText(resp.Message, flex.PlaceCarousel(resp.Places, resp.Message, true, c.mapsKey))

	case models.ResponseEmailList:
		if len(resp.Emails) == 0 {
			return textMessages(messageOr(resp, "メールはありません。"))
		}
		return withLeadingText(resp.Message, flex.EmailCarousel(resp.Emails, resp.Message))

	case models.ResponseEmailDetail:
		if resp.Email == nil {
			return textMessages(messageOr(resp, "メールが見つかりませんでした。"))
		}
		return withLeadingText(resp.Message, flex.EmailDetail(*resp.Email))

	case models.ResponseEmailConfirmSend:
		return withLeadingText(resp.Message, flex.EmailSendConfirm(resp.To, resp.Subject, resp.Body))

	case models.ResponseEmailSent:
		return textMessages(messageOr(resp, "メールを送信しました。"))

	case models.ResponseEmailDeleted:
		return textMessages(messageOr(resp, "メールを削除しました。"))

	case models.ResponseEmailLabelsUpdated:
		return textMessages(messageOr(resp, "ラベルを更新しました。"))

	case models.ResponseDraftSaved:
		return textMessages(messageOr(resp, "下書きを保存しました。"))

	case models.ResponseOAuthRequired:
		msgs := []linebot.SendingMessage{}
		if resp.Message != "" {
			msgs = append(msgs, linebot.NewTextMessage(resp.Message))
		}
		return append(msgs, flex.OAuthLink(c.creds.AuthURL(userID)))

	default:
		slog.Warn("bot: unknown agent response type", "type", resp.Type, "userID", userID)
		if resp.Message != "" {
			return textMessages(resp.Message)
		}
		return textMessages(resp.Raw)
	}
}

func messageOr(resp models.AgentResponse, fallback string) string {
	if resp.Message != "" {
		return resp.Message
	}
	return fallback
}

// withLeadingText returns [text, rich] when message is set, else [rich].
func withLeadingText(message string, rich linebot.SendingMessage) []linebot.SendingMessage {
	if message == "" {
		return []linebot.SendingMessage{rich}
	}
	return []linebot.SendingMessage{linebot.NewTextMessage(message), rich}
}

// busyAllDayDates returns the JST dates whose total busy time within the day
// reaches busyAllDayThreshold, formatted YYYY-MM-DD.
func busyAllDayDates(slots []models.BusySlot) []string {
	perDay := make(map[string]time.Duration)
	for _, slot := range slots {
		start, err1 := time.Parse(time.RFC3339, slot.Start)
		end, err2 := time.Parse(time.RFC3339, slot.End)
		if err1 != nil || err2 != nil || !end.After(start) {
			continue
		}
		start = start.In(gsuite.JST)
		end = end.In(gsuite.JST)

		// Split the interval at midnight so multi-day slots count per day.
		for cur := start; cur.Before(end); {
			dayEnd := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, gsuite.JST).AddDate(0, 0, 1)
			segEnd := end
			if dayEnd.Before(end) {
				segEnd = dayEnd
			}
			perDay[cur.Format("2006-01-02")] += segEnd.Sub(cur)
			cur = segEnd
		}
	}

	var dates []string
	for date, total := range perDay {
		if total >= busyAllDayThreshold {
			dates = append(dates, date)
		}
	}
	return dates
}
