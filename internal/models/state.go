// Package models defines conversation state structures for hisho flows.
package models

import "time"

// StateAction tags the discriminated conversation state record.
type StateAction string

// Conversation state actions. At most one state is active per user; the tag
// decides how the next inbound event from that user is interpreted.
const (
	StateWaitingLocation StateAction = "waiting_location"
	StateEditTitle       StateAction = "edit_title"
	StateDateSelection   StateAction = "date_selection"
	StateSelectDate      StateAction = "select_date"
	StateEventEdit       StateAction = "event_edit"
)

// StateTTL bounds how long a pending conversation state stays live. A state
// older than this is treated as absent so stale flows cannot resurface.
const StateTTL = 10 * time.Minute

// ConversationState is the per-user multi-turn flow record. Only the fields
// relevant to Action are populated.
type ConversationState struct {
	Action StateAction `json:"action"`

	// edit_title: the pending event slot awaiting a new title.
	Date  string `json:"date,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	// date_selection / select_date: title proposed by the agent.
	SuggestedTitle string `json:"suggested_title,omitempty"`

	// waiting_location: the text query that triggered the location request.
	OriginalQuery string `json:"original_query,omitempty"`

	// event_edit: the calendar event being edited.
	EventID string `json:"event_id,omitempty"`
}
