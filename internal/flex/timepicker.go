package flex

import (
	"fmt"
	"net/url"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/models"
)

// timeSlots are the selectable one-hour slots (lunch hour excluded).
var timeSlots = [][2]string{
	{"09:00", "10:00"},
	{"10:00", "11:00"},
	{"11:00", "12:00"},
	{"13:00", "14:00"},
	{"14:00", "15:00"},
	{"15:00", "16:00"},
	{"16:00", "17:00"},
	{"17:00", "18:00"},
}

// TimePicker builds the time-slot selection card for the chosen date. Slots
// overlapping a busy interval render as unpressable grey boxes. The optional
// title is carried through to the select_time postback.
func TimePicker(date, title string, busySlots []models.BusySlot) linebot.SendingMessage {
	dateDisplay := date
	if dt, err := time.ParseInLocation("2006-01-02", date, time.UTC); err == nil {
		dateDisplay = fmt.Sprintf("%d月%d日（%s）", dt.Month(), dt.Day(), weekdayJP(dt))
	}

	var amSlots, pmSlots []linebot.FlexComponent
	for _, slot := range timeSlots {
		start, end := slot[0], slot[1]
		var element linebot.FlexComponent
		if slotBusy(date, start, end, busySlots) {
			element = &linebot.BoxComponent{
				Type:   linebot.FlexComponentTypeBox,
				Layout: linebot.FlexBoxLayoutTypeVertical,
				Contents: []linebot.FlexComponent{
					&linebot.TextComponent{
						Type:  linebot.FlexComponentTypeText,
						Text:  fmt.Sprintf("%s - %s", start, end),
						Align: linebot.FlexComponentAlignTypeCenter,
						Color: "#FFFFFF",
						Size:  linebot.FlexTextSizeTypeSm,
					},
				},
				BackgroundColor: colorBusy,
				CornerRadius:    "md",
				Height:          "40px",
				JustifyContent:  linebot.FlexComponentJustifyContentTypeCenter,
				Margin:          linebot.FlexComponentMarginTypeSm,
			}
		} else {
			data := fmt.Sprintf("action=select_time&date=%s&start=%s&end=%s", date, start, end)
			if title != "" {
				data += "&summary=" + url.QueryEscape(title)
			}
			element = &linebot.ButtonComponent{
				Type: linebot.FlexComponentTypeButton,
				Action: &linebot.PostbackAction{
					Label:       fmt.Sprintf("%s - %s", start, end),
					Data:        data,
					DisplayText: fmt.Sprintf("%s - %s を選択", start, end),
				},
				Style:  linebot.FlexButtonStyleTypePrimary,
				Color:  colorAvailable,
				Height: linebot.FlexButtonHeightTypeSm,
				Margin: linebot.FlexComponentMarginTypeSm,
			}
		}
		if start < "12:00" {
			amSlots = append(amSlots, element)
		} else {
			pmSlots = append(pmSlots, element)
		}
	}

	contents := []linebot.FlexComponent{}
	if len(amSlots) > 0 {
		contents = append(contents, sectionLabel("午前"))
		contents = append(contents, amSlots...)
	}
	if len(pmSlots) > 0 {
		contents = append(contents, sectionLabel("午後"))
		contents = append(contents, pmSlots...)
	}

	bubble := &linebot.BubbleContainer{
		Type: linebot.FlexContainerTypeBubble,
		Size: linebot.FlexBubbleSizeTypeKilo,
		Header: &linebot.BoxComponent{
			Type:   linebot.FlexComponentTypeBox,
			Layout: linebot.FlexBoxLayoutTypeVertical,
			Contents: []linebot.FlexComponent{
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   dateDisplay + " の時間を選択",
					Weight: linebot.FlexTextWeightTypeBold,
					Size:   linebot.FlexTextSizeTypeMd,
					Color:  colorAccent,
				},
				&linebot.TextComponent{
					Type:  linebot.FlexComponentTypeText,
					Text:  "緑が空いている時間帯です",
					Size:  linebot.FlexTextSizeTypeXs,
					Color: "#999999",
				},
			},
		},
		Body: &linebot.BoxComponent{
			Type:     linebot.FlexComponentTypeBox,
			Layout:   linebot.FlexBoxLayoutTypeVertical,
			Contents: contents,
			Spacing:  linebot.FlexComponentSpacingTypeNone,
		},
	}

	return linebot.NewFlexMessage("時間帯を選択してください", bubble)
}

func sectionLabel(label string) *linebot.TextComponent {
	return &linebot.TextComponent{
		Type:   linebot.FlexComponentTypeText,
		Text:   label,
		Size:   linebot.FlexTextSizeTypeXs,
		Color:  colorMutedText,
		Margin: linebot.FlexComponentMarginTypeMd,
	}
}

// slotBusy reports whether the [start,end) slot on date overlaps any busy
// interval. Busy slot bounds are RFC 3339 timestamps.
func slotBusy(date, start, end string, busySlots []models.BusySlot) bool {
	slotStart, err := time.Parse(time.RFC3339, fmt.Sprintf("%sT%s:00+09:00", date, start))
	if err != nil {
		return false
	}
	slotEnd, err := time.Parse(time.RFC3339, fmt.Sprintf("%sT%s:00+09:00", date, end))
	if err != nil {
		return false
	}
	for _, slot := range busySlots {
		busyStart, err := time.Parse(time.RFC3339, slot.Start)
		if err != nil {
			continue
		}
		busyEnd, err := time.Parse(time.RFC3339, slot.End)
		if err != nil {
			continue
		}
		if slotStart.Before(busyEnd) && busyStart.Before(slotEnd) {
			return true
		}
	}
	return false
}
