package flex

import "github.com/line/line-bot-sdk-go/v7/linebot"

// OAuthLink builds the Google-account link prompt with a login button.
func OAuthLink(authURL string) linebot.SendingMessage {
	bubble := &linebot.BubbleContainer{
		Type: linebot.FlexContainerTypeBubble,
		Size: linebot.FlexBubbleSizeTypeKilo,
		Header: &linebot.BoxComponent{
			Type:   linebot.FlexComponentTypeBox,
			Layout: linebot.FlexBoxLayoutTypeVertical,
			Contents: []linebot.FlexComponent{
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   "Google Calendar 連携",
					Weight: linebot.FlexTextWeightTypeBold,
					Size:   linebot.FlexTextSizeTypeLg,
					Color:  colorAccent,
				},
			},
		},
		Body: &linebot.BoxComponent{
			Type:   linebot.FlexComponentTypeBox,
			Layout: linebot.FlexBoxLayoutTypeVertical,
			Contents: []linebot.FlexComponent{
				&linebot.TextComponent{
					Type:  linebot.FlexComponentTypeText,
					Text:  "カレンダー機能を使うには\nGoogleアカウントの連携が\n必要です。",
					Wrap:  true,
					Size:  linebot.FlexTextSizeTypeSm,
					Color: colorMutedText,
				},
			},
			Spacing: linebot.FlexComponentSpacingTypeMd,
		},
		Footer: &linebot.BoxComponent{
			Type:   linebot.FlexComponentTypeBox,
			Layout: linebot.FlexBoxLayoutTypeVertical,
			Contents: []linebot.FlexComponent{
				&linebot.ButtonComponent{
					Type: linebot.FlexComponentTypeButton,
					Action: &linebot.URIAction{
						Label: "Google で連携する",
						URI:   authURL,
					},
					Style: linebot.FlexButtonStyleTypePrimary,
					Color: colorAccent,
				},
			},
		},
	}
	return linebot.NewFlexMessage("Google Calendar 連携", bubble)
}
