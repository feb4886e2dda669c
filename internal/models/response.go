// Package models defines the agent response document and its decoder.
package models

import "encoding/json"

// ResponseType tags an agent response document.
type ResponseType string

// The closed vocabulary of agent response types. Anything outside this set
// (or undecodable input) becomes ResponseUnknown and renders as plain text.
const (
	ResponseCalendarEvents     ResponseType = "calendar_events"
	ResponseEventCreated       ResponseType = "event_created"
	ResponseEventUpdated       ResponseType = "event_updated"
	ResponseEventDeleted       ResponseType = "event_deleted"
	ResponseDateSelection      ResponseType = "date_selection"
	ResponseLocationRequest    ResponseType = "location_request"
	ResponsePlaceSearch        ResponseType = "place_search"
	ResponsePlaceRecommend     ResponseType = "place_recommend"
	ResponseEmailList          ResponseType = "email_list"
	ResponseEmailDetail        ResponseType = "email_detail"
	ResponseEmailConfirmSend   ResponseType = "email_confirm_send"
	ResponseEmailSent          ResponseType = "email_sent"
	ResponseEmailDeleted       ResponseType = "email_deleted"
	ResponseEmailLabelsUpdated ResponseType = "email_labels_updated"
	ResponseDraftSaved         ResponseType = "draft_saved"
	ResponseOAuthRequired      ResponseType = "oauth_required"
	ResponseText               ResponseType = "text"
	ResponseUnknown            ResponseType = ""
)

// AgentResponse is the decoded JSON document an agent returns. Fields beyond
// Type and Message are populated per type; missing fields keep their zero
// values rather than failing the decode.
type AgentResponse struct {
	Type    ResponseType `json:"type"`
	Message string       `json:"message"`

	Events         []CalendarEvent `json:"events,omitempty"`
	Event          *CalendarEvent  `json:"event,omitempty"`
	BusySlots      []BusySlot      `json:"busy_slots,omitempty"`
	SuggestedTitle string          `json:"suggested_title,omitempty"`
	Places         []Place         `json:"places,omitempty"`
	Emails         []Email         `json:"emails,omitempty"`
	Email          *Email          `json:"email,omitempty"`
	To             string          `json:"to,omitempty"`
	Subject        string          `json:"subject,omitempty"`
	Body           string          `json:"body,omitempty"`

	// ParsedOK is false when the input was not a JSON object at all; Raw then
	// holds the verbatim text for plain-text rendering.
	ParsedOK bool   `json:"-"`
	Raw      string `json:"-"`
}

var knownResponseTypes = map[ResponseType]bool{
	ResponseCalendarEvents:     true,
	ResponseEventCreated:       true,
	ResponseEventUpdated:       true,
	ResponseEventDeleted:       true,
	ResponseDateSelection:      true,
	ResponseLocationRequest:    true,
	ResponsePlaceSearch:        true,
	ResponsePlaceRecommend:     true,
	ResponseEmailList:          true,
	ResponseEmailDetail:        true,
	ResponseEmailConfirmSend:   true,
	ResponseEmailSent:          true,
	ResponseEmailDeleted:       true,
	ResponseEmailLabelsUpdated: true,
	ResponseDraftSaved:         true,
	ResponseOAuthRequired:      true,
	ResponseText:               true,
}

// Known reports whether the response type is part of the closed vocabulary.
func (t ResponseType) Known() bool {
	return knownResponseTypes[t]
}

// DecodeAgentResponse decodes sanitized agent output into an AgentResponse.
// Input that is not a JSON object yields ParsedOK=false with Raw set; a JSON
// object with an unknown or missing type keeps Type as-is so the renderer can
// degrade to the text path. This function never fails.
func DecodeAgentResponse(s string) AgentResponse {
	var resp AgentResponse
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		return AgentResponse{Raw: s}
	}
	resp.ParsedOK = true
	resp.Raw = s
	return resp
}
