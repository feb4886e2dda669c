package models

import "testing"

func TestDecodeAgentResponseKnownType(t *testing.T) {
	in := `{"type":"calendar_events","message":"今日の予定です","events":[{"id":"ev1","summary":"会議","start":"2026-02-09T10:00:00+09:00","end":"2026-02-09T11:00:00+09:00"}]}`
	got := DecodeAgentResponse(in)
	if !got.ParsedOK {
		t.Fatal("ParsedOK = false, want true")
	}
	if got.Type != ResponseCalendarEvents {
		t.Errorf("Type = %q, want calendar_events", got.Type)
	}
	if len(got.Events) != 1 || got.Events[0].Summary != "会議" {
		t.Errorf("Events = %+v, want one event titled 会議", got.Events)
	}
}

func TestDecodeAgentResponseUnknownTypeKeepsTag(t *testing.T) {
	got := DecodeAgentResponse(`{"type":"weather_report","message":"hello"}`)
	if !got.ParsedOK {
		t.Fatal("ParsedOK = false, want true")
	}
	if got.Type.Known() {
		t.Errorf("Type %q reported as known", got.Type)
	}
	if got.Message != "hello" {
		t.Errorf("Message = %q, want hello", got.Message)
	}
}

func TestDecodeAgentResponseNonJSON(t *testing.T) {
	in := "すみません、わかりませんでした。"
	got := DecodeAgentResponse(in)
	if got.ParsedOK {
		t.Error("ParsedOK = true for plain text")
	}
	if got.Raw != in {
		t.Errorf("Raw = %q, want verbatim input", got.Raw)
	}
}

func TestDecodeAgentResponseMissingType(t *testing.T) {
	got := DecodeAgentResponse(`{"message":"typeless"}`)
	if !got.ParsedOK {
		t.Fatal("ParsedOK = false, want true")
	}
	if got.Type != "" {
		t.Errorf("Type = %q, want empty", got.Type)
	}
}

func TestEmailUnread(t *testing.T) {
	unread := Email{LabelIDs: []string{"INBOX", "UNREAD"}}
	read := Email{LabelIDs: []string{"INBOX"}}
	if !unread.Unread() {
		t.Error("email with UNREAD label reported read")
	}
	if read.Unread() {
		t.Error("email without UNREAD label reported unread")
	}
}

func TestPlaceCoordinates(t *testing.T) {
	lat, lon := 35.68, 139.76
	searchShape := Place{Lat: "35.68", Lon: "139.76"}
	recommendShape := Place{Latitude: &lat, Longitude: &lon}
	none := Place{}

	if got, _, ok := searchShape.Coordinates(); !ok || got != "35.68" {
		t.Errorf("search shape coordinates = %q ok=%v", got, ok)
	}
	if _, _, ok := recommendShape.Coordinates(); !ok {
		t.Error("recommend shape coordinates not ok")
	}
	if _, _, ok := none.Coordinates(); ok {
		t.Error("empty place reported coordinates")
	}
}
