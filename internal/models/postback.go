// Package models defines the postback payload and its parser.
package models

import (
	"fmt"
	"net/url"
)

// PostbackAction selects one of the fixed postback handlers.
type PostbackAction string

// Postback actions carried in tapped-button data payloads.
const (
	PostbackSelectDate    PostbackAction = "select_date"
	PostbackSelectTime    PostbackAction = "select_time"
	PostbackConfirmCreate PostbackAction = "confirm_create"
	PostbackEditTitle     PostbackAction = "edit_title"
	PostbackEventDetail   PostbackAction = "event_detail"
	PostbackEventEdit     PostbackAction = "event_edit"
	PostbackEventDelete   PostbackAction = "event_delete"
	PostbackConfirmDelete PostbackAction = "confirm_delete"
	PostbackEmailDetail   PostbackAction = "email_detail"
	PostbackEmailDelete   PostbackAction = "email_delete"
	PostbackEmailSend     PostbackAction = "email_send"
	PostbackCancel        PostbackAction = "cancel"
)

// PostbackData is the parsed form of a postback data payload. The payload is
// a flat query string (action=<name>&k=v...); values are percent-decoded.
type PostbackData struct {
	Action  PostbackAction
	Date    string
	Start   string
	End     string
	Summary string
	EventID string
	EmailID string
	To      string
	Subject string
	Body    string
}

// ParsePostback parses the flat query-string-encoded postback payload.
// Unknown keys are ignored; an absent or empty action is an error so the
// dispatcher can log and drop the event.
func ParsePostback(data string) (PostbackData, error) {
	values, err := url.ParseQuery(data)
	if err != nil {
		return PostbackData{}, fmt.Errorf("malformed postback data: %w", err)
	}
	action := values.Get("action")
	if action == "" {
		return PostbackData{}, fmt.Errorf("postback data missing action: %q", data)
	}
	return PostbackData{
		Action:  PostbackAction(action),
		Date:    values.Get("date"),
		Start:   values.Get("start"),
		End:     values.Get("end"),
		Summary: values.Get("summary"),
		EventID: values.Get("event_id"),
		EmailID: values.Get("email_id"),
		To:      values.Get("to"),
		Subject: values.Get("subject"),
		Body:    values.Get("body"),
	}, nil
}
