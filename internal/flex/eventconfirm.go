package flex

import (
	"fmt"
	"net/url"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/models"
)

// EventConfirmation builds the create-event confirmation card with
// edit-title and confirm-create buttons.
func EventConfirmation(date, start, end, summary string) linebot.SendingMessage {
	if summary == "" {
		summary = "新しい予定"
	}
	dateDisplay := date
	if dt, err := time.ParseInLocation("2006-01-02", date, time.UTC); err == nil {
		dateDisplay = fmt.Sprintf("%d月%d日（%s）", dt.Month(), dt.Day(), weekdayJP(dt))
	}
	timeDisplay := fmt.Sprintf("%s - %s", start, end)

	bubble := &linebot.BubbleContainer{
		Type: linebot.FlexContainerTypeBubble,
		Size: linebot.FlexBubbleSizeTypeKilo,
		Header: &linebot.BoxComponent{
			Type:   linebot.FlexComponentTypeBox,
			Layout: linebot.FlexBoxLayoutTypeVertical,
			Contents: []linebot.FlexComponent{
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   "予定の確認",
					Weight: linebot.FlexTextWeightTypeBold,
					Size:   linebot.FlexTextSizeTypeMd,
					Color:  colorAccent,
				},
			},
		},
		Body: &linebot.BoxComponent{
			Type:    linebot.FlexComponentTypeBox,
			Layout:  linebot.FlexBoxLayoutTypeVertical,
			Spacing: linebot.FlexComponentSpacingTypeLg,
			Contents: []linebot.FlexComponent{
				iconRow("📅", dateDisplay, false),
				iconRow("🕐", timeDisplay, false),
				iconRow("📝", summary, true),
			},
			PaddingAll: "15px",
		},
		Footer: &linebot.BoxComponent{
			Type:    linebot.FlexComponentTypeBox,
			Layout:  linebot.FlexBoxLayoutTypeHorizontal,
			Spacing: linebot.FlexComponentSpacingTypeSm,
			Contents: []linebot.FlexComponent{
				&linebot.ButtonComponent{
					Type: linebot.FlexComponentTypeButton,
					Action: &linebot.PostbackAction{
						Label:       "タイトル編集",
						Data:        fmt.Sprintf("action=edit_title&date=%s&start=%s&end=%s", date, start, end),
						DisplayText: "タイトルを変更します。新しいタイトルを入力してください。",
					},
					Style:  linebot.FlexButtonStyleTypeSecondary,
					Height: linebot.FlexButtonHeightTypeSm,
					Flex:   linebot.IntPtr(1),
				},
				&linebot.ButtonComponent{
					Type: linebot.FlexComponentTypeButton,
					Action: &linebot.PostbackAction{
						Label: "作成",
						Data: fmt.Sprintf("action=confirm_create&date=%s&start=%s&end=%s&summary=%s",
							date, start, end, url.QueryEscape(summary)),
						DisplayText: "予定を作成します",
					},
					Style:  linebot.FlexButtonStyleTypePrimary,
					Color:  colorAvailable,
					Height: linebot.FlexButtonHeightTypeSm,
					Flex:   linebot.IntPtr(1),
				},
			},
		},
	}

	alt := fmt.Sprintf("予定の確認: %s (%s %s)", summary, dateDisplay, timeDisplay)
	return linebot.NewFlexMessage(alt, bubble)
}

// DeleteConfirmation builds the delete-event confirmation card.
func DeleteConfirmation(event models.CalendarEvent) linebot.SendingMessage {
	summary := event.Summary
	if summary == "" {
		summary = "(タイトルなし)"
	}
	dateDisplay := event.Start
	if dt, err := time.Parse(time.RFC3339, event.Start); err == nil {
		dateDisplay = fmt.Sprintf("%d/%d(%s) %s", dt.Month(), dt.Day(), weekdayJP(dt), dt.Format("15:04"))
	}

	bubble := &linebot.BubbleContainer{
		Type: linebot.FlexContainerTypeBubble,
		Size: linebot.FlexBubbleSizeTypeKilo,
		Body: &linebot.BoxComponent{
			Type:    linebot.FlexComponentTypeBox,
			Layout:  linebot.FlexBoxLayoutTypeVertical,
			Spacing: linebot.FlexComponentSpacingTypeSm,
			Contents: []linebot.FlexComponent{
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   "この予定を削除しますか？",
					Weight: linebot.FlexTextWeightTypeBold,
					Size:   linebot.FlexTextSizeTypeSm,
					Color:  colorDanger,
				},
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   "📅 " + dateDisplay,
					Size:   linebot.FlexTextSizeTypeSm,
					Margin: linebot.FlexComponentMarginTypeMd,
				},
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   "📝 " + summary,
					Size:   linebot.FlexTextSizeTypeSm,
					Weight: linebot.FlexTextWeightTypeBold,
				},
			},
			PaddingAll: "15px",
		},
		Footer: &linebot.BoxComponent{
			Type:    linebot.FlexComponentTypeBox,
			Layout:  linebot.FlexBoxLayoutTypeHorizontal,
			Spacing: linebot.FlexComponentSpacingTypeSm,
			Contents: []linebot.FlexComponent{
				&linebot.ButtonComponent{
					Type: linebot.FlexComponentTypeButton,
					Action: &linebot.PostbackAction{
						Label:       "キャンセル",
						Data:        "action=cancel",
						DisplayText: "キャンセルしました",
					},
					Style:  linebot.FlexButtonStyleTypeSecondary,
					Height: linebot.FlexButtonHeightTypeSm,
					Flex:   linebot.IntPtr(1),
				},
				&linebot.ButtonComponent{
					Type: linebot.FlexComponentTypeButton,
					Action: &linebot.PostbackAction{
						Label:       "削除する",
						Data:        "action=confirm_delete&event_id=" + event.ID,
						DisplayText: "予定を削除します",
					},
					Style:  linebot.FlexButtonStyleTypePrimary,
					Color:  colorDanger,
					Height: linebot.FlexButtonHeightTypeSm,
					Flex:   linebot.IntPtr(1),
				},
			},
		},
	}

	return linebot.NewFlexMessage("削除確認: "+summary, bubble)
}
