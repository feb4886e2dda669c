package flex

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/hisho-bot/hisho/internal/models"
)

// PlaceCarousel builds the place-list carousel. recommend switches the bubble
// layout from plain search results to the richer recommendation card.
// staticMapsKey enables a static-map hero image; empty disables it.
func PlaceCarousel(places []models.Place, message string, recommend bool, staticMapsKey string) linebot.SendingMessage {
	if len(places) == 0 {
		if message == "" {
			message = "場所が見つかりませんでした。"
		}
		return linebot.NewTextMessage(message)
	}

	if len(places) > carouselMaxBubbles {
		places = places[:carouselMaxBubbles]
	}
	bubbles := make([]*linebot.BubbleContainer, 0, len(places))
	for _, place := range places {
		if recommend {
			bubbles = append(bubbles, recommendBubble(place, staticMapsKey))
		} else {
			bubbles = append(bubbles, searchBubble(place, staticMapsKey))
		}
	}

	alt := message
	if alt == "" {
		alt = "場所の検索結果"
	}
	return linebot.NewFlexMessage(alt, &linebot.CarouselContainer{
		Type:     linebot.FlexContainerTypeCarousel,
		Contents: bubbles,
	})
}

func searchBubble(place models.Place, staticMapsKey string) *linebot.BubbleContainer {
	name := place.Name
	if name == "" {
		name = "(不明)"
	}

	bubble := &linebot.BubbleContainer{
		Type: linebot.FlexContainerTypeBubble,
		Size: linebot.FlexBubbleSizeTypeKilo,
		Body: &linebot.BoxComponent{
			Type:   linebot.FlexComponentTypeBox,
			Layout: linebot.FlexBoxLayoutTypeVertical,
			Contents: []linebot.FlexComponent{
				&linebot.TextComponent{
					Type:   linebot.FlexComponentTypeText,
					Text:   name,
					Weight: linebot.FlexTextWeightTypeBold,
					Size:   linebot.FlexTextSizeTypeMd,
					Wrap:   true,
				},
			},
			Spacing:    linebot.FlexComponentSpacingTypeSm,
			PaddingAll: "15px",
		},
	}
	decoratePlaceBubble(bubble, place, staticMapsKey)
	return bubble
}

func recommendBubble(place models.Place, staticMapsKey string) *linebot.BubbleContainer {
	name := place.Name
	if name == "" {
		name = "(不明)"
	}

	body := []linebot.FlexComponent{
		&linebot.TextComponent{
			Type:   linebot.FlexComponentTypeText,
			Text:   name,
			Weight: linebot.FlexTextWeightTypeBold,
			Size:   linebot.FlexTextSizeTypeMd,
			Wrap:   true,
		},
	}
	if place.Description != "" {
		body = append(body, &linebot.TextComponent{
			Type:  linebot.FlexComponentTypeText,
			Text:  place.Description,
			Size:  linebot.FlexTextSizeTypeSm,
			Color: colorMutedText,
			Wrap:  true,
		})
	}

	var info []string
	if place.Rating != nil {
		info = append(info, "★ "+strconv.FormatFloat(*place.Rating, 'f', -1, 64))
	}
	if place.MinPrice != nil {
		info = append(info, fmt.Sprintf("¥%d〜", *place.MinPrice))
	}
	if len(info) > 0 {
		body = append(body, &linebot.TextComponent{
			Type:  linebot.FlexComponentTypeText,
			Text:  strings.Join(info, "  "),
			Size:  linebot.FlexTextSizeTypeSm,
			Color: "#999999",
		})
	}

	bubble := &linebot.BubbleContainer{
		Type: linebot.FlexContainerTypeBubble,
		Size: linebot.FlexBubbleSizeTypeKilo,
		Body: &linebot.BoxComponent{
			Type:       linebot.FlexComponentTypeBox,
			Layout:     linebot.FlexBoxLayoutTypeVertical,
			Contents:   body,
			Spacing:    linebot.FlexComponentSpacingTypeSm,
			PaddingAll: "15px",
		},
	}
	decoratePlaceBubble(bubble, place, staticMapsKey)
	return bubble
}

// decoratePlaceBubble attaches the static-map hero and the map-link footer
// when the place carries coordinates.
func decoratePlaceBubble(bubble *linebot.BubbleContainer, place models.Place, staticMapsKey string) {
	lat, lon, ok := place.Coordinates()
	if !ok {
		return
	}
	if staticMapsKey != "" {
		bubble.Hero = &linebot.ImageComponent{
			Type:        linebot.FlexComponentTypeImage,
			URL:         staticMapURL(lat, lon, staticMapsKey),
			Size:        linebot.FlexImageSizeTypeFull,
			AspectRatio: linebot.FlexImageAspectRatioType2to1,
			AspectMode:  linebot.FlexImageAspectModeTypeCover,
		}
	}
	bubble.Footer = &linebot.BoxComponent{
		Type:   linebot.FlexComponentTypeBox,
		Layout: linebot.FlexBoxLayoutTypeVertical,
		Contents: []linebot.FlexComponent{
			&linebot.ButtonComponent{
				Type: linebot.FlexComponentTypeButton,
				Action: &linebot.URIAction{
					Label: "地図を開く",
					URI:   mapsSearchURL(lat, lon),
				},
				Style:  linebot.FlexButtonStyleTypePrimary,
				Color:  colorAvailable,
				Height: linebot.FlexButtonHeightTypeSm,
			},
		},
	}
}

func staticMapURL(lat, lon, key string) string {
	markers := url.QueryEscape(fmt.Sprintf("color:red|%s,%s", lat, lon))
	return fmt.Sprintf(
		"https://maps.googleapis.com/maps/api/staticmap?center=%s,%s&zoom=15&size=600x300&markers=%s&key=%s",
		lat, lon, markers, key)
}

func mapsSearchURL(lat, lon string) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s,%s", lat, lon)
}
