package flex

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/models"
)

// EmailCarousel builds the email-list carousel. An empty list degrades to a
// plain-text message.
func EmailCarousel(emails []models.Email, message string) linebot.SendingMessage {
	if len(emails) == 0 {
		if message == "" {
			message = "メールはありません。"
		}
		return linebot.NewTextMessage(message)
	}

	if len(emails) > carouselMaxBubbles {
		emails = emails[:carouselMaxBubbles]
	}
	bubbles := make([]*linebot.BubbleContainer, 0, len(emails))
	for _, email := range emails {
		bubbles = append(bubbles, emailBubble(email))
	}

	alt := message
	if alt == "" {
		alt = "メール一覧"
	}
	return linebot.NewFlexMessage(alt, &linebot.CarouselContainer{
		Type:     linebot.FlexContainerTypeCarousel,
		Contents: bubbles,
	})
}

func emailBubble(email models.Email) *linebot.BubbleContainer {
	subject := email.Subject
	if subject == "" {
		subject = "(件名なし)"
	}

	body := []linebot.FlexComponent{
		&linebot.TextComponent{
			Type:   linebot.FlexComponentTypeText,
			Text:   subject,
			Weight: linebot.FlexTextWeightTypeBold,
			Size:   linebot.FlexTextSizeTypeMd,
			Wrap:   true,
		},
		iconRow("👤", extractDisplayName(email.From), false),
	}
	if email.Snippet != "" {
		body = append(body, &linebot.TextComponent{
			Type:  linebot.FlexComponentTypeText,
			Text:  truncate(email.Snippet, 80),
			Size:  linebot.FlexTextSizeTypeXs,
			Color: "#999999",
			Wrap:  true,
		})
	}

	headerColor := "#888888"
	statusLabel := "既読"
	if email.Unread() {
		headerColor = colorAccent
		statusLabel = "未読"
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
					Text:  formatEmailDate(email.Date),
					Size:  linebot.FlexTextSizeTypeXs,
					Color: "#ffffff",
				},
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   statusLabel,
					Weight: linebot.FlexTextWeightTypeBold,
					Size:   linebot.FlexTextSizeTypeSm,
					Color:  "#ffffff",
				},
			},
			BackgroundColor: headerColor,
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
				eventFooterButton("詳細", "action=email_detail&email_id="+email.ID, "メールの詳細を表示", ""),
				eventFooterButton("削除", "action=email_delete&email_id="+email.ID, "メールを削除", colorDanger),
			},
		},
	}
}

// EmailDetail builds the single-email detail card with a summarized body.
func EmailDetail(email models.Email) linebot.SendingMessage {
	subject := email.Subject
	if subject == "" {
		subject = "(件名なし)"
	}

	meta := &linebot.BoxComponent{
		Type:    linebot.FlexComponentTypeBox,
		Layout:  linebot.FlexBoxLayoutTypeVertical,
		Spacing: linebot.FlexComponentSpacingTypeSm,
		Margin:  linebot.FlexComponentMarginTypeMd,
		Contents: []linebot.FlexComponent{
			infoRow("差出人", email.From),
			infoRow("宛先", email.To),
		},
	}
	if email.CC != "" {
		meta.Contents = append(meta.Contents, infoRow("CC", email.CC))
	}
	if email.Date != "" {
		meta.Contents = append(meta.Contents, infoRow("日時", truncate(email.Date, 25)))
	}

	body := []linebot.FlexComponent{
		&linebot.TextComponent{
			Type:   linebot.FlexComponentTypeText,
			Text:   subject,
			Weight: linebot.FlexTextWeightTypeBold,
			Size:   linebot.FlexTextSizeTypeLg,
			Wrap:   true,
		},
		&linebot.SeparatorComponent{
			Type:   linebot.FlexComponentTypeSeparator,
			Margin: linebot.FlexComponentMarginTypeMd,
		},
		meta,
	}
	if email.Summary != "" {
		body = append(body,
			&linebot.SeparatorComponent{
				Type:   linebot.FlexComponentTypeSeparator,
				Margin: linebot.FlexComponentMarginTypeMd,
			},
			&linebot.TextComponent{
				Type:   linebot.FlexComponentTypeText,
				Text:   email.Summary,
				Size:   linebot.FlexTextSizeTypeSm,
				Color:  "#333333",
				Wrap:   true,
				Margin: linebot.FlexComponentMarginTypeMd,
			},
		)
	}
	if email.HasAttachments {
		body = append(body, &linebot.TextComponent{
			Type:   linebot.FlexComponentTypeText,
			Text:   fmt.Sprintf("📎 添付ファイル %d件", email.AttachmentCount),
			Size:   linebot.FlexTextSizeTypeXs,
			Color:  colorAccent,
			Margin: linebot.FlexComponentMarginTypeMd,
		})
	}

	bubble := &linebot.BubbleContainer{
		Type:   linebot.FlexContainerTypeBubble,
		Size:   linebot.FlexBubbleSizeTypeMega,
		Header: emailCardHeader("メール詳細"),
		Body: &linebot.BoxComponent{
			Type:       linebot.FlexComponentTypeBox,
			Layout:     linebot.FlexBoxLayoutTypeVertical,
			Contents:   body,
			Spacing:    linebot.FlexComponentSpacingTypeSm,
			PaddingAll: "15px",
		},
		Footer: &linebot.BoxComponent{
			Type:   linebot.FlexComponentTypeBox,
			Layout: linebot.FlexBoxLayoutTypeHorizontal,
			Contents: []linebot.FlexComponent{
				eventFooterButton("削除", "action=email_delete&email_id="+email.ID, "メールを削除", colorDanger),
			},
		},
	}

	return linebot.NewFlexMessage("メール: "+subject, bubble)
}

// EmailSendConfirm builds the outgoing-mail confirmation card. The postback
// body is capped so the payload stays inside the platform's data limit.
func EmailSendConfirm(to, subject, body string) linebot.SendingMessage {
	bubble := &linebot.BubbleContainer{
		Type:   linebot.FlexContainerTypeBubble,
		Size:   linebot.FlexBubbleSizeTypeMega,
		Header: emailCardHeader("メール送信確認"),
		Body: &linebot.BoxComponent{
			Type:    linebot.FlexComponentTypeBox,
			Layout:  linebot.FlexBoxLayoutTypeVertical,
			Spacing: linebot.FlexComponentSpacingTypeSm,
			Contents: []linebot.FlexComponent{
				infoRow("宛先", to),
				infoRow("件名", subject),
				&linebot.SeparatorComponent{
					Type:   linebot.FlexComponentTypeSeparator,
					Margin: linebot.FlexComponentMarginTypeMd,
				},
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   truncate(body, 200),
					Size:   linebot.FlexTextSizeTypeSm,
					Color:  "#333333",
					Wrap:   true,
					Margin: linebot.FlexComponentMarginTypeMd,
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
						Label: "送信",
						Data: fmt.Sprintf("action=email_send&to=%s&subject=%s&body=%s",
							url.QueryEscape(to), url.QueryEscape(subject), url.QueryEscape(truncate(body, 500))),
						DisplayText: "メールを送信",
					},
					Style:  linebot.FlexButtonStyleTypePrimary,
					Color:  colorAccent,
					Height: linebot.FlexButtonHeightTypeSm,
					Flex:   linebot.IntPtr(1),
				},
				&linebot.ButtonComponent{
					Type: linebot.FlexComponentTypeButton,
					Action: &linebot.PostbackAction{
						Label:       "キャンセル",
						Data:        "action=cancel",
						DisplayText: "キャンセル",
					},
					Style:  linebot.FlexButtonStyleTypeSecondary,
					Height: linebot.FlexButtonHeightTypeSm,
					Flex:   linebot.IntPtr(1),
				},
			},
		},
	}

	return linebot.NewFlexMessage("メール送信確認: "+subject, bubble)
}

func emailCardHeader(title string) *linebot.BoxComponent {
	return &linebot.BoxComponent{
		Type:   linebot.FlexComponentTypeBox,
		Layout: linebot.FlexBoxLayoutTypeVertical,
		Contents: []linebot.FlexComponent{
			&linebot.TextComponent{
				Type:   linebot.FlexComponentTypeText,
				Text:   title,
				Weight: linebot.FlexTextWeightTypeBold,
				Size:   linebot.FlexTextSizeTypeMd,
				Color:  "#ffffff",
			},
		},
		BackgroundColor: colorAccent,
		PaddingAll:      "15px",
	}
}

func extractDisplayName(from string) string {
	if name, _, ok := strings.Cut(from, "<"); ok {
		return strings.Trim(strings.TrimSpace(name), `"`)
	}
	return from
}

// formatEmailDate renders an RFC 2822 date as "2/8(土) 10:30".
func formatEmailDate(date string) string {
	formats := []string{
		time.RFC1123Z,
		"2 Jan 2006 15:04:05 -0700",
		time.RFC1123,
	}
	for _, layout := range formats {
		if dt, err := time.Parse(layout, strings.TrimSpace(date)); err == nil {
			return fmt.Sprintf("%d/%d(%s) %s", dt.Month(), dt.Day(), weekdayJP(dt), dt.Format("15:04"))
		}
	}
	return truncate(date, 20)
}
