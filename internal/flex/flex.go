// Package flex builds LINE Flex Messages for the assistant's rich replies:
// date/time pickers, event and email carousels, confirmation cards, and the
// Google-link prompt.
package flex

import (
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// Brand colors shared across builders.
const (
	colorAvailable = "#06C755" // LINE green
	colorBusy      = "#CCCCCC"
	colorAccent    = "#1a73e8"
	colorDanger    = "#ff4444"
	colorMutedText = "#666666"
)

var weekdaysJP = []string{"月", "火", "水", "木", "金", "土", "日"}

// weekdayJP maps Go's Sunday-first weekday to the Japanese Monday-first list.
func weekdayJP(t time.Time) string {
	return weekdaysJP[(int(t.Weekday())+6)%7]
}

func textComponent(text string) *linebot.TextComponent {
	return &linebot.TextComponent{
		Type: linebot.FlexComponentTypeText,
		Text: text,
	}
}

// infoRow renders a small label/value line used by the email cards.
func infoRow(label, value string) *linebot.BoxComponent {
	if value == "" {
		value = "-"
	}
	return &linebot.BoxComponent{
		Type:   linebot.FlexComponentTypeBox,
		Layout: linebot.FlexBoxLayoutTypeHorizontal,
		Contents: []linebot.FlexComponent{
			&linebot.TextComponent{
				Type:  linebot.FlexComponentTypeText,
				Text:  label,
				Size:  linebot.FlexTextSizeTypeXs,
				Color: "#999999",
				Flex:  linebot.IntPtr(2),
			},
			&linebot.TextComponent{
				Type:  linebot.FlexComponentTypeText,
				Text:  value,
				Size:  linebot.FlexTextSizeTypeXs,
				Color: "#333333",
				Wrap:  true,
				Flex:  linebot.IntPtr(5),
			},
		},
	}
}

// iconRow renders an emoji-prefixed value line used by event cards.
func iconRow(icon, value string, bold bool) *linebot.BoxComponent {
	valueText := &linebot.TextComponent{
		Type:  linebot.FlexComponentTypeText,
		Text:  value,
		Size:  linebot.FlexTextSizeTypeSm,
		Color: "#333333",
		Wrap:  true,
		Flex:  linebot.IntPtr(1),
	}
	if bold {
		valueText.Weight = linebot.FlexTextWeightTypeBold
	}
	return &linebot.BoxComponent{
		Type:    linebot.FlexComponentTypeBox,
		Layout:  linebot.FlexBoxLayoutTypeBaseline,
		Spacing: linebot.FlexComponentSpacingTypeSm,
		Contents: []linebot.FlexComponent{
			&linebot.TextComponent{
				Type: linebot.FlexComponentTypeText,
				Text: icon,
				Size: linebot.FlexTextSizeTypeSm,
				Flex: linebot.IntPtr(0),
			},
			valueText,
		},
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
