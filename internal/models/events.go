package models

// Event identifies an inbound volunteer interaction, normalised by the chat
// transport before it reaches the conversation layer.
type Event string

const (
	EventStart               Event = "start"
	EventContact             Event = "contact"
	EventAccept              Event = "accept"
	EventReject              Event = "reject"
	EventEtaChoice           Event = "eta-choice"
	EventEtaLater            Event = "eta-later"
	EventEtaCancel           Event = "eta-cancel"
	EventHealthOK            Event = "health-ok"
	EventHealthCancel        Event = "health-cancel"
	EventOnMyWay             Event = "onmyway"
	EventDone                Event = "done"
	EventNoExpenses          Event = "no-expenses"
	EventCancelInProgress    Event = "cancel-in-progress"
	EventAmountText          Event = "amount-text"
	EventReceiptPhoto        Event = "receipt-photo"
	EventWellbeingChoice     Event = "wellbeing-choice"
	EventSymptomToggle       Event = "symptom-toggle"
	EventWouldReturnChoice   Event = "would-return-choice"
	EventFurtherComments     Event = "further-comments-text"
	EventFurtherCommentsNone Event = "further-comments-none"
)

// Symptom codes a volunteer can toggle during the exit survey, plus the
// choices that terminate the symptom step.
const (
	SymptomFever          = "fever"
	SymptomCough          = "cough"
	SymptomHeavyBreathing = "heavybreathing"

	SymptomNone   = "none"
	SymptomNoIdea = "noidea"
	SymptomNext   = "next"
)

// MessageKind tells the chat transport which message and keyboard to render.
// The coordination core never deals in user-facing text.
type MessageKind string

const (
	MsgPhoneQuery        MessageKind = "phone-query"
	MsgStandby           MessageKind = "standby"
	MsgHelp              MessageKind = "help"
	MsgAbout             MessageKind = "about"
	MsgBroadcast         MessageKind = "broadcast"
	MsgEtaOptions        MessageKind = "eta-options"
	MsgEtaFullDay        MessageKind = "eta-full-day"
	MsgOfferAck          MessageKind = "offer-ack"
	MsgThanksNoThanks    MessageKind = "thanks-nothanks"
	MsgAnotherAssignee   MessageKind = "another-assignee"
	MsgHealthCaution     MessageKind = "health-caution"
	MsgFullDetails       MessageKind = "full-details"
	MsgInProgressPrompt  MessageKind = "in-progress-prompt"
	MsgExpensesPrompt    MessageKind = "expenses-prompt"
	MsgReceiptPrompt     MessageKind = "receipt-prompt"
	MsgWellbeingQuery    MessageKind = "wellbeing-query"
	MsgSymptomQuery      MessageKind = "symptom-query"
	MsgSymptomUpdate     MessageKind = "symptom-update"
	MsgWouldReturnQuery  MessageKind = "would-return-query"
	MsgFurtherComments   MessageKind = "further-comments-query"
	MsgThanksFinal       MessageKind = "thanks-final"
	MsgNoWorriesLater    MessageKind = "no-worries-later"
	MsgRequestCancelled  MessageKind = "request-cancelled"
)

// MessageContext carries the data a rendered message may need: the request
// being talked about, the proposed time, the currently selected symptoms and,
// for keyboard edits, the message being updated.
type MessageContext struct {
	Request   *Request
	OfferTime string
	Symptoms  []string
	MessageID int
}
