package flex

import (
	"fmt"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/models"
)

// carouselMaxBubbles is the LINE platform limit for carousel contents.
const carouselMaxBubbles = 12

// EventsCarousel builds the events-list carousel. An empty list degrades to
// a plain-text message.
func EventsCarousel(events []models.CalendarEvent, message string) linebot.SendingMessage {
	if len(events) == 0 {
		if message == "" {
			message = "予定はありません。"
		}
		return linebot.NewTextMessage(message)
	}

	if len(events) > carouselMaxBubbles {
		events = events[:carouselMaxBubbles]
	}
	bubbles := make([]*linebot.BubbleContainer, 0, len(events))
	for _, ev := range events {
		bubbles = append(bubbles, eventBubble(ev))
	}

	alt := message
	if alt == "" {
		alt = "予定一覧"
	}
	return linebot.NewFlexMessage(alt, &linebot.CarouselContainer{
		Type:     linebot.FlexContainerTypeCarousel,
		Contents: bubbles,
	})
}

func eventBubble(ev models.CalendarEvent) *linebot.BubbleContainer {
	summary := ev.Summary
	if summary == "" {
		summary = "(タイトルなし)"
	}

	body := []linebot.FlexComponent{
		&linebot.TextComponent{
			Type:   linebot.FlexComponentTypeText,
			Text:   summary,
			Weight: linebot.FlexTextWeightTypeBold,
			Size:   linebot.FlexTextSizeTypeMd,
			Wrap:   true,
		},
	}
	if ev.Location != "" {
		body = append(body, iconRow("📍", ev.Location, false))
	}
	if len(ev.Attendees) > 0 {
		body = append(body, &linebot.TextComponent{
			Type:  linebot.FlexComponentTypeText,
			Text:  fmt.Sprintf("👥 %d人", len(ev.Attendees)),
			Size:  linebot.FlexTextSizeTypeSm,
			Color: colorMutedText,
		})
	}

	return &linebot.BubbleContainer{
		Type: linebot.FlexContainerTypeBubble,
		Size: linebot.FlexBubbleSizeTypeKilo,
		Header: &linebot.BoxComponent{
			Type:   linebot.FlexComponentTypeBox,
			Layout: linebot.FlexBoxLayoutTypeVertical,
			Contents: []linebot.FlexComponent{
				&linebot.TextComponent{
					Type:  linebot.FlexComponentTypeText,
					Text:  formatEventDate(ev.Start),
					Size:  linebot.FlexTextSizeTypeXs,
					Color: "#ffffff",
				},
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   formatTimeRange(ev.Start, ev.End),
					Weight: linebot.FlexTextWeightTypeBold,
					Size:   linebot.FlexTextSizeTypeLg,
					Color:  "#ffffff",
				},
			},
			BackgroundColor: colorAvailable,
			PaddingAll:      "15px",
		},
		Body: &linebot.BoxComponent{
			Type:       linebot.FlexComponentTypeBox,
			Layout:     linebot.FlexBoxLayoutTypeVertical,
			Contents:   body,
			Spacing:    linebot.FlexComponentSpacingTypeSm,
			PaddingAll: "15px",
		},
		Footer: &linebot.BoxComponent{
			Type:    linebot.FlexComponentTypeBox,
			Layout:  linebot.FlexBoxLayoutTypeHorizontal,
			Spacing: linebot.FlexComponentSpacingTypeSm,
			Contents: []linebot.FlexComponent{
				eventFooterButton("詳細", "action=event_detail&event_id="+ev.ID, "詳細を表示", ""),
				eventFooterButton("編集", "action=event_edit&event_id="+ev.ID, "予定を編集", ""),
				eventFooterButton("削除", "action=event_delete&event_id="+ev.ID, "予定を削除", colorDanger),
			},
		},
	}
}

func eventFooterButton(label, data, displayText, color string) *linebot.ButtonComponent {
	return &linebot.ButtonComponent{
		Type: linebot.FlexComponentTypeButton,
		Action: &linebot.PostbackAction{
			Label:       label,
			Data:        data,
			DisplayText: displayText,
		},
		Style:  linebot.FlexButtonStyleTypeSecondary,
		Color:  color,
		Height: linebot.FlexButtonHeightTypeSm,
		Flex:   linebot.IntPtr(1),
	}
}

func formatTimeRange(start, end string) string {
	s, err1 := time.Parse(time.RFC3339, start)
	e, err2 := time.Parse(time.RFC3339, end)
	if err1 != nil || err2 != nil {
		return "終日"
	}
	return fmt.Sprintf("%s - %s", s.Format("15:04"), e.Format("15:04"))
}

func formatEventDate(start string) string {
	dt, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d/%d(%s)", dt.Month(), dt.Day(), weekdayJP(dt))
}
