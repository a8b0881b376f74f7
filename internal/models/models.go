package models

import "time"

// ConversationState tracks where a volunteer is in their dialogue with the bot.
type ConversationState string

const (
	StateExpectingPhoneNumber     ConversationState = "expecting_phone_number"
	StateAvailable                ConversationState = "available"
	StateRequestSent              ConversationState = "request_sent"
	StateRequestAssigned          ConversationState = "request_assigned"
	StateRequestInProgress        ConversationState = "request_in_progress"
	StateExpectingAmount          ConversationState = "expecting_amount"
	StateExpectingReceipt         ConversationState = "expecting_receipt"
	StateExpectingExitSurvey      ConversationState = "expecting_exit_survey"
	StateExpectingFurtherComments ConversationState = "expecting_further_comments"
)

// Busy reports whether the volunteer is tied up with a request and should be
// skipped when a new one is broadcast.
func (s ConversationState) Busy() bool {
	switch s {
	case StateRequestSent, StateRequestAssigned, StateRequestInProgress,
		StateExpectingAmount, StateExpectingReceipt,
		StateExpectingExitSurvey, StateExpectingFurtherComments:
		return true
	}
	return false
}

// Request status values pushed to the backend as a request moves along.
const (
	StatusOnProgress = "onProgress"
	StatusDone       = "done"
	StatusCancelled  = "CANCELLED"
)

// Volunteer is one person who can be offered and can execute requests.
// Identified by their Telegram chat ID.
type Volunteer struct {
	ChatID            int64
	Username          string
	FullName          string
	Phone             string
	State             ConversationState
	CurrentRequestID  string // request they are actively executing
	ReviewedRequestID string // request they were offered but haven't taken yet
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Offer is a single volunteer's proposed handling time for a request. Offers
// are advisory; the backend arbitrates and assigns separately.
type Offer struct {
	ChatID int64  `json:"chat_id"`
	Time   string `json:"time"` // "HH:MM", UTC
}

// Request is one unit of help needed by a beneficiary.
type Request struct {
	ID          string
	Address     string
	Beneficiary string
	Needs       []string
	Remarks     []string
	HasLocation bool
	Latitude    float64
	Longitude   float64

	Candidates    []int64 // chat IDs the request was broadcast to
	Offers        []Offer
	Assignee      int64 // 0 while unassigned
	ScheduledTime string

	// Outcome fields, accumulated during the in-progress and survey phases.
	Amount          string
	Symptoms        []string // deduplicated symptom codes
	Wellbeing       int      // 0..4
	WellbeingSet    bool
	WouldReturn     bool
	FurtherComments string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCandidate reports whether the chat ID was among those the request was
// broadcast to.
func (r *Request) HasCandidate(chatID int64) bool {
	for _, id := range r.Candidates {
		if id == chatID {
			return true
		}
	}
	return false
}

// ToggleSymptom flips the presence of a symptom code: absent becomes present,
// present becomes absent. Toggling twice is a no-op.
func (r *Request) ToggleSymptom(code string) {
	for i, s := range r.Symptoms {
		if s == code {
			r.Symptoms = append(r.Symptoms[:i], r.Symptoms[i+1:]...)
			return
		}
	}
	r.Symptoms = append(r.Symptoms, code)
}

// OutcomeRecord is the clean summary reported to the backend when a request
// completes. Internal bookkeeping (candidates, offers) is deliberately absent.
type OutcomeRecord struct {
	RequestID       string   `json:"request_id"`
	Amount          string   `json:"amount"`
	Symptoms        []string `json:"symptoms"`
	Wellbeing       int      `json:"wellbeing"`
	WouldReturn     bool     `json:"would_return"`
	FurtherComments string   `json:"further_comments"`
}
