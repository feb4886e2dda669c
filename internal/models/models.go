// Package models defines the core data structures shared across hisho modules.
//
// It contains the platform-neutral inbound event, the conversation state
// record, the agent response document, and the postback payload, along with
// the record shapes the agents embed in their JSON responses.
package models

import "strconv"

// EventKind classifies an inbound webhook event.
type EventKind string

// Inbound event kinds.
const (
	EventText     EventKind = "text"
	EventLocation EventKind = "location"
	EventPostback EventKind = "postback"
)

// Event is a platform-neutral inbound webhook event. Exactly one of the
// kind-specific field groups is populated, selected by Kind.
type Event struct {
	Kind           EventKind
	UserID         string
	ReplyToken     string
	WebhookEventID string

	// Text events.
	Text string

	// Location events.
	Latitude  float64
	Longitude float64
	Address   string

	// Postback events: the raw query-string-encoded data payload.
	PostbackData string
}

// CalendarEvent is the simplified calendar event record exchanged with the
// agents and the Calendar API wrapper.
type CalendarEvent struct {
	ID          string   `json:"id"`
	Summary     string   `json:"summary"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	HTMLLink    string   `json:"html_link,omitempty"`
}

// BusySlot is one occupied interval from a free/busy query.
type BusySlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Email is the simplified Gmail message record exchanged with the agents.
type Email struct {
	ID              string   `json:"id"`
	ThreadID        string   `json:"thread_id,omitempty"`
	Subject         string   `json:"subject"`
	From            string   `json:"from"`
	To              string   `json:"to,omitempty"`
	CC              string   `json:"cc,omitempty"`
	Date            string   `json:"date"`
	Snippet         string   `json:"snippet,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Body            string   `json:"body,omitempty"`
	LabelIDs        []string `json:"label_ids,omitempty"`
	HasAttachments  bool     `json:"has_attachments,omitempty"`
	AttachmentCount int      `json:"attachment_count,omitempty"`
}

// Unread reports whether the email still carries the UNREAD label.
func (e Email) Unread() bool {
	for _, l := range e.LabelIDs {
		if l == "UNREAD" {
			return true
		}
	}
	return false
}

// Place is one location record from the maps tools. Search results use
// Lat/Lon, recommendation results use Latitude/Longitude plus the richer
// descriptive fields; both shapes decode into this struct.
type Place struct {
	PlaceID     string   `json:"place_id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Address     string   `json:"address,omitempty"`
	URL         string   `json:"url,omitempty"`
	Lat         string   `json:"lat,omitempty"`
	Lon         string   `json:"lon,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	MinPrice    *int     `json:"minPrice,omitempty"`
}

// Coordinates returns the place coordinates as strings, preferring the
// search-result string fields over the recommendation float fields.
func (p Place) Coordinates() (lat, lon string, ok bool) {
	if p.Lat != "" && p.Lon != "" {
		return p.Lat, p.Lon, true
	}
	if p.Latitude != nil && p.Longitude != nil {
		return trimFloat(*p.Latitude), trimFloat(*p.Longitude), true
	}
	return "", "", false
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
