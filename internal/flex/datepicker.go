package flex

import (
	"fmt"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// datePickerWeeks is how many week bubbles the date picker shows.
const datePickerWeeks = 2

// DatePicker builds the date-selection carousel starting at today. Dates in
// busyDates (YYYY-MM-DD) render grey to signal a fully booked day.
func DatePicker(today time.Time, busyDates []string) linebot.SendingMessage {
	busySet := make(map[string]bool, len(busyDates))
	for _, d := range busyDates {
		busySet[d] = true
	}

	current := today
	bubbles := make([]*linebot.BubbleContainer, 0, datePickerWeeks)
	for week := 0; week < datePickerWeeks; week++ {
		buttons := make([]linebot.FlexComponent, 0, 7)
		for day := 0; day < 7; day++ {
			dateStr := current.Format("2006-01-02")
			label := fmt.Sprintf("%d/%d(%s)", current.Month(), current.Day(), weekdayJP(current))
			color := colorAvailable
			if busySet[dateStr] {
				color = colorBusy
			}
			buttons = append(buttons, &linebot.ButtonComponent{
				Type: linebot.FlexComponentTypeButton,
				Action: &linebot.PostbackAction{
					Label:       label,
					Data:        fmt.Sprintf("action=select_date&date=%s", dateStr),
					DisplayText: label + " を選択",
				},
				Style:  linebot.FlexButtonStyleTypePrimary,
				Color:  color,
				Height: linebot.FlexButtonHeightTypeSm,
				Margin: linebot.FlexComponentMarginTypeSm,
			})
			current = current.AddDate(0, 0, 1)
		}

		bubbles = append(bubbles, &linebot.BubbleContainer{
			Type: linebot.FlexContainerTypeBubble,
			Size: linebot.FlexBubbleSizeTypeKilo,
			Header: &linebot.BoxComponent{
				Type:   linebot.FlexComponentTypeBox,
				Layout: linebot.FlexBoxLayoutTypeVertical,
				Contents: []linebot.FlexComponent{
					&linebot.TextComponent{
						Type:   linebot.FlexComponentTypeText,
						Text:   fmt.Sprintf("日付を選択（%d週目）", week+1),
						Weight: linebot.FlexTextWeightTypeBold,
						Size:   linebot.FlexTextSizeTypeMd,
						Color:  colorAccent,
					},
					&linebot.TextComponent{
						Type:  linebot.FlexComponentTypeText,
						Text:  "緑が予約可能な日です",
						Size:  linebot.FlexTextSizeTypeXs,
						Color: "#999999",
					},
				},
			},
			Body: &linebot.BoxComponent{
				Type:     linebot.FlexComponentTypeBox,
				Layout:   linebot.FlexBoxLayoutTypeVertical,
				Contents: buttons,
				Spacing:  linebot.FlexComponentSpacingTypeNone,
			},
		})
	}

	return linebot.NewFlexMessage("日付を選択してください", &linebot.CarouselContainer{
		Type:     linebot.FlexContainerTypeCarousel,
		Contents: bubbles,
	})
}
