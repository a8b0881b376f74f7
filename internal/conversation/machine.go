package conversation

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/code4md/ajubot/internal/directory"
	"github.com/code4md/ajubot/internal/engine"
	"github.com/code4md/ajubot/internal/models"
	"github.com/code4md/ajubot/internal/store"
)

// Notifier delivers a rendered message to a volunteer.
type Notifier interface {
	Notify(chatID int64, kind models.MessageKind, ctx models.MessageContext) error
}

// Backend is the slice of the backend client the conversation layer needs.
type Backend interface {
	LinkVolunteer(username string, chatID int64, phone string) error
	UpdateRequestStatus(requestID, status string) error
	UploadReceipt(requestID string, photo []byte) error
}

// Reporter finalizes a completed request: assembles the outcome record, hands
// it to the backend and removes the request from the store.
type Reporter interface {
	Finalize(requestID string) (*models.OutcomeRecord, error)
}

// Payload carries the data attached to an inbound event. Only the fields
// relevant to the event kind are set.
type Payload struct {
	Username    string
	FullName    string
	Phone       string
	Text        string
	Code        string // eta time, symptom code
	Wellbeing   int
	WouldReturn bool
	Photos      [][]byte
	MessageID   int // message whose keyboard is being updated
}

// Machine drives the per-volunteer question sequence and validates that each
// inbound event is legal for the volunteer's current state. An event that
// doesn't match any transition is logged and ignored; it never changes state.
type Machine struct {
	log      zerolog.Logger
	dir      *directory.Directory
	store    *store.Store
	engine   *engine.Engine
	reporter Reporter
	notifier Notifier
	backend  Backend
}

func New(dir *directory.Directory, st *store.Store, eng *engine.Engine, rep Reporter, n Notifier, b Backend, log zerolog.Logger) *Machine {
	return &Machine{
		log:      log.With().Str("component", "conversation").Logger(),
		dir:      dir,
		store:    st,
		engine:   eng,
		reporter: rep,
		notifier: n,
		backend:  b,
	}
}

// HandleEvent routes one inbound volunteer interaction. Tolerated conditions
// (unknown volunteer, stale request, out-of-state event) are logged no-ops;
// only persistence failures come back as errors.
func (m *Machine) HandleEvent(chatID int64, ev models.Event, p Payload) error {
	switch ev {
	case models.EventStart:
		return m.onStart(chatID, p)
	case models.EventContact:
		return m.onContact(chatID, p)
	}

	vol, err := m.dir.Get(chatID)
	if err != nil {
		m.log.Warn().Int64("chat_id", chatID).Str("event", string(ev)).
			Msg("event from unknown volunteer, ignoring")
		return nil
	}

	switch ev {
	case models.EventAccept:
		return m.onAccept(vol)
	case models.EventReject, models.EventEtaCancel:
		return m.onDecline(vol)
	case models.EventEtaLater:
		return m.onEtaLater(vol)
	case models.EventEtaChoice:
		return m.onEtaChoice(vol, p.Code)
	case models.EventHealthOK:
		return m.onHealthOK(vol)
	case models.EventHealthCancel:
		return m.onHealthCancel(vol)
	case models.EventOnMyWay:
		return m.onOnMyWay(vol)
	case models.EventDone:
		return m.onDone(vol)
	case models.EventCancelInProgress:
		return m.onCancelInProgress(vol)
	case models.EventNoExpenses:
		return m.onNoExpenses(vol)
	case models.EventAmountText:
		return m.onAmount(vol, p.Text)
	case models.EventReceiptPhoto:
		return m.onReceipt(vol, p.Photos)
	case models.EventWellbeingChoice:
		return m.onWellbeing(vol, p.Wellbeing)
	case models.EventSymptomToggle:
		return m.onSymptom(vol, p.Code, p.MessageID)
	case models.EventWouldReturnChoice:
		return m.onWouldReturn(vol, p.WouldReturn)
	case models.EventFurtherComments:
		return m.onFurtherComments(vol, p.Text)
	case models.EventFurtherCommentsNone:
		return m.finalize(vol)
	default:
		m.unexpected(vol, ev)
		return nil
	}
}

// unexpected records an event that has no transition from the current state.
// Accepted without state change, per the edge-case policy.
func (m *Machine) unexpected(vol *models.Volunteer, ev models.Event) {
	m.log.Warn().Int64("chat_id", vol.ChatID).Str("event", string(ev)).
		Str("state", string(vol.State)).Msg("unexpected event, state unchanged")
}

// advance applies a state transition only if the volunteer is still exactly
// where the handler observed them. A backend cancel or assignment that landed
// in between wins: the stale transition is skipped and the caller must send
// no message for it.
func (m *Machine) advance(vol *models.Volunteer, next func(*models.Volunteer)) (bool, error) {
	applied := false
	cur, err := m.dir.Upsert(vol.ChatID, func(v *models.Volunteer) {
		if v.State != vol.State || v.CurrentRequestID != vol.CurrentRequestID ||
			v.ReviewedRequestID != vol.ReviewedRequestID {
			return
		}
		applied = true
		next(v)
	})
	if err != nil {
		return false, err
	}
	if !applied {
		m.log.Info().Int64("chat_id", vol.ChatID).Str("state", string(cur.State)).
			Msg("volunteer moved on, transition skipped")
	}
	return applied, nil
}

// patchOutcome applies a survey mutation to the volunteer's current request,
// tolerating a request that was cancelled underneath the survey.
func (m *Machine) patchOutcome(vol *models.Volunteer, mutate func(*models.Request)) (*models.Request, bool, error) {
	req, err := m.store.Patch(vol.CurrentRequestID, mutate)
	if errors.Is(err, models.ErrNotFound) {
		m.log.Info().Int64("chat_id", vol.ChatID).Str("request_id", vol.CurrentRequestID).
			Msg("request gone mid-survey, ignoring")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return req, true, nil
}

func (m *Machine) onStart(chatID int64, p Payload) error {
	_, err := m.dir.Upsert(chatID, func(v *models.Volunteer) {
		v.Username = p.Username
		v.FullName = p.FullName
		if v.Phone == "" {
			v.State = models.StateExpectingPhoneNumber
		}
	})
	if err != nil {
		return err
	}

	m.log.Info().Int64("chat_id", chatID).Str("username", p.Username).Msg("volunteer onboarding")
	return m.notifier.Notify(chatID, models.MsgPhoneQuery, models.MessageContext{})
}

func (m *Machine) onContact(chatID int64, p Payload) error {
	vol, err := m.dir.Upsert(chatID, func(v *models.Volunteer) {
		v.Phone = p.Phone
		if p.Username != "" {
			v.Username = p.Username
		}
		// A contact card resent mid-request must not tear down the assignment.
		if !v.State.Busy() {
			v.State = models.StateAvailable
		}
	})
	if err != nil {
		return err
	}

	if err := m.backend.LinkVolunteer(vol.Username, chatID, p.Phone); err != nil {
		m.log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to link volunteer to backend")
	}

	m.log.Info().Int64("chat_id", chatID).Msg("volunteer registered")
	return m.notifier.Notify(chatID, models.MsgStandby, models.MessageContext{})
}

func (m *Machine) onAccept(vol *models.Volunteer) error {
	if vol.State != models.StateRequestSent {
		m.unexpected(vol, models.EventAccept)
		return nil
	}
	return m.notifier.Notify(vol.ChatID, models.MsgEtaOptions, models.MessageContext{})
}

// onDecline handles both the explicit "Nu" reply and the eta_never button:
// the volunteer passes on the offer and goes back to the available pool.
func (m *Machine) onDecline(vol *models.Volunteer) error {
	if vol.State != models.StateRequestSent {
		m.unexpected(vol, models.EventReject)
		return nil
	}
	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateAvailable
		v.ReviewedRequestID = ""
	})
	if err != nil || !applied {
		return err
	}
	return m.notifier.Notify(vol.ChatID, models.MsgThanksNoThanks, models.MessageContext{})
}

func (m *Machine) onEtaLater(vol *models.Volunteer) error {
	if vol.State != models.StateRequestSent {
		m.unexpected(vol, models.EventEtaLater)
		return nil
	}
	return m.notifier.Notify(vol.ChatID, models.MsgEtaFullDay, models.MessageContext{})
}

func (m *Machine) onEtaChoice(vol *models.Volunteer, offerTime string) error {
	if vol.State != models.StateRequestSent || vol.ReviewedRequestID == "" {
		m.unexpected(vol, models.EventEtaChoice)
		return nil
	}

	err := m.engine.RelayOffer(vol.ReviewedRequestID, vol.ChatID, offerTime)
	if errors.Is(err, models.ErrNotFound) {
		// The request was resolved while they were picking a time.
		applied, uerr := m.advance(vol, func(v *models.Volunteer) {
			v.State = models.StateAvailable
			v.ReviewedRequestID = ""
		})
		if uerr != nil || !applied {
			return uerr
		}
		return m.notifier.Notify(vol.ChatID, models.MsgAnotherAssignee, models.MessageContext{})
	}
	if err != nil {
		return err
	}

	// The volunteer stays in REQUEST_SENT until the backend assigns.
	return m.notifier.Notify(vol.ChatID, models.MsgOfferAck, models.MessageContext{OfferTime: offerTime})
}

func (m *Machine) onHealthOK(vol *models.Volunteer) error {
	if vol.State != models.StateRequestAssigned {
		m.unexpected(vol, models.EventHealthOK)
		return nil
	}

	req, err := m.store.Get(vol.CurrentRequestID)
	if err != nil {
		m.log.Warn().Int64("chat_id", vol.ChatID).Str("request_id", vol.CurrentRequestID).
			Msg("assigned request vanished, resetting volunteer")
		_, uerr := m.advance(vol, func(v *models.Volunteer) {
			v.State = models.StateAvailable
			v.CurrentRequestID = ""
			v.ReviewedRequestID = ""
		})
		return uerr
	}

	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateRequestInProgress
	})
	if err != nil || !applied {
		return err
	}

	// Full address and details are only revealed after the health check.
	return m.notifier.Notify(vol.ChatID, models.MsgFullDetails, models.MessageContext{Request: req})
}

// onHealthCancel reverts the request to unassigned so the backend can pick
// somebody else, and frees the volunteer.
func (m *Machine) onHealthCancel(vol *models.Volunteer) error {
	if vol.State != models.StateRequestAssigned {
		m.unexpected(vol, models.EventHealthCancel)
		return nil
	}

	requestID := vol.CurrentRequestID
	_, err := m.store.Patch(requestID, func(r *models.Request) {
		r.Assignee = 0
		r.ScheduledTime = ""
	})
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateAvailable
		v.CurrentRequestID = ""
		v.ReviewedRequestID = ""
	})
	if err != nil || !applied {
		return err
	}

	if err := m.backend.UpdateRequestStatus(requestID, models.StatusCancelled); err != nil {
		m.log.Warn().Err(err).Str("request_id", requestID).Msg("status update failed")
	}
	return m.notifier.Notify(vol.ChatID, models.MsgNoWorriesLater, models.MessageContext{})
}

func (m *Machine) onOnMyWay(vol *models.Volunteer) error {
	if vol.State != models.StateRequestInProgress {
		m.unexpected(vol, models.EventOnMyWay)
		return nil
	}

	if err := m.backend.UpdateRequestStatus(vol.CurrentRequestID, models.StatusOnProgress); err != nil {
		m.log.Warn().Err(err).Str("request_id", vol.CurrentRequestID).Msg("status update failed")
	}
	return m.notifier.Notify(vol.ChatID, models.MsgInProgressPrompt, models.MessageContext{})
}

func (m *Machine) onDone(vol *models.Volunteer) error {
	if vol.State != models.StateRequestInProgress {
		m.unexpected(vol, models.EventDone)
		return nil
	}

	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateExpectingAmount
	})
	if err != nil || !applied {
		return err
	}

	if err := m.backend.UpdateRequestStatus(vol.CurrentRequestID, models.StatusDone); err != nil {
		m.log.Warn().Err(err).Str("request_id", vol.CurrentRequestID).Msg("status update failed")
	}
	return m.notifier.Notify(vol.ChatID, models.MsgExpensesPrompt, models.MessageContext{})
}

// onCancelInProgress dissolves the assignment from anywhere in the execution
// phase. The request is reported CANCELLED and removed.
func (m *Machine) onCancelInProgress(vol *models.Volunteer) error {
	switch vol.State {
	case models.StateRequestAssigned, models.StateRequestInProgress, models.StateExpectingAmount:
	default:
		m.unexpected(vol, models.EventCancelInProgress)
		return nil
	}

	requestID := vol.CurrentRequestID
	if err := m.store.Delete(requestID); err != nil {
		return err
	}

	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateAvailable
		v.CurrentRequestID = ""
		v.ReviewedRequestID = ""
	})
	if err != nil || !applied {
		return err
	}

	if err := m.backend.UpdateRequestStatus(requestID, models.StatusCancelled); err != nil {
		m.log.Warn().Err(err).Str("request_id", requestID).Msg("status update failed")
	}

	m.log.Info().Int64("chat_id", vol.ChatID).Str("request_id", requestID).
		Msg("volunteer bailed out, request cancelled")
	return m.notifier.Notify(vol.ChatID, models.MsgNoWorriesLater, models.MessageContext{})
}

func (m *Machine) onNoExpenses(vol *models.Volunteer) error {
	if vol.State != models.StateExpectingAmount {
		m.unexpected(vol, models.EventNoExpenses)
		return nil
	}

	// Skip both amount and receipt, straight to the exit survey.
	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateExpectingExitSurvey
	})
	if err != nil || !applied {
		return err
	}
	return m.askWellbeing(vol.ChatID, vol.CurrentRequestID)
}

func (m *Machine) onAmount(vol *models.Volunteer, text string) error {
	if vol.State != models.StateExpectingAmount {
		m.unexpected(vol, models.EventAmountText)
		return nil
	}

	_, ok, err := m.patchOutcome(vol, func(r *models.Request) {
		r.Amount = text
	})
	if err != nil || !ok {
		return err
	}

	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateExpectingReceipt
	})
	if err != nil || !applied {
		return err
	}
	return m.notifier.Notify(vol.ChatID, models.MsgReceiptPrompt, models.MessageContext{})
}

// onReceipt moves the volunteer to the exit survey before the uploads run, so
// a cancel landing during the slow backend calls cannot be overwritten by a
// stale handler write afterwards.
func (m *Machine) onReceipt(vol *models.Volunteer, photos [][]byte) error {
	if vol.State != models.StateExpectingReceipt {
		m.log.Debug().Int64("chat_id", vol.ChatID).Msg("got photo when not expecting one")
		return nil
	}

	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateExpectingExitSurvey
	})
	if err != nil || !applied {
		return err
	}

	for _, photo := range photos {
		if err := m.backend.UploadReceipt(vol.CurrentRequestID, photo); err != nil {
			m.log.Warn().Err(err).Str("request_id", vol.CurrentRequestID).
				Msg("receipt upload failed")
		}
	}

	return m.askWellbeing(vol.ChatID, vol.CurrentRequestID)
}

func (m *Machine) askWellbeing(chatID int64, requestID string) error {
	req, err := m.store.Get(requestID)
	if errors.Is(err, models.ErrNotFound) {
		// Cancelled before the survey started; the cancel already told them.
		m.log.Info().Int64("chat_id", chatID).Str("request_id", requestID).
			Msg("request gone before exit survey, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	return m.notifier.Notify(chatID, models.MsgWellbeingQuery, models.MessageContext{Request: req})
}

func (m *Machine) onWellbeing(vol *models.Volunteer, score int) error {
	if vol.State != models.StateExpectingExitSurvey {
		m.unexpected(vol, models.EventWellbeingChoice)
		return nil
	}
	if score < 0 || score > 4 {
		return fmt.Errorf("wellbeing score %d out of range", score)
	}

	req, ok, err := m.patchOutcome(vol, func(r *models.Request) {
		r.Wellbeing = score
		r.WellbeingSet = true
	})
	if err != nil || !ok {
		return err
	}
	return m.notifier.Notify(vol.ChatID, models.MsgSymptomQuery, models.MessageContext{Request: req})
}

func (m *Machine) onSymptom(vol *models.Volunteer, code string, messageID int) error {
	if vol.State != models.StateExpectingExitSurvey {
		m.unexpected(vol, models.EventSymptomToggle)
		return nil
	}

	switch code {
	case models.SymptomNone, models.SymptomNoIdea, models.SymptomNext:
		// The symptom step is over, move on to the next question.
		req, err := m.store.Get(vol.CurrentRequestID)
		if errors.Is(err, models.ErrNotFound) {
			m.log.Info().Int64("chat_id", vol.ChatID).Msg("request gone mid-survey, ignoring")
			return nil
		}
		if err != nil {
			return err
		}
		return m.notifier.Notify(vol.ChatID, models.MsgWouldReturnQuery, models.MessageContext{Request: req})
	}

	req, ok, err := m.patchOutcome(vol, func(r *models.Request) {
		r.ToggleSymptom(code)
	})
	if err != nil || !ok {
		return err
	}

	// Refresh the checkbox keyboard so the volunteer sees the tick flip.
	return m.notifier.Notify(vol.ChatID, models.MsgSymptomUpdate, models.MessageContext{
		Request:   req,
		Symptoms:  req.Symptoms,
		MessageID: messageID,
	})
}

func (m *Machine) onWouldReturn(vol *models.Volunteer, again bool) error {
	if vol.State != models.StateExpectingExitSurvey {
		m.unexpected(vol, models.EventWouldReturnChoice)
		return nil
	}

	req, ok, err := m.patchOutcome(vol, func(r *models.Request) {
		r.WouldReturn = again
	})
	if err != nil || !ok {
		return err
	}

	applied, err := m.advance(vol, func(v *models.Volunteer) {
		v.State = models.StateExpectingFurtherComments
	})
	if err != nil || !applied {
		return err
	}
	return m.notifier.Notify(vol.ChatID, models.MsgFurtherComments, models.MessageContext{Request: req})
}

func (m *Machine) onFurtherComments(vol *models.Volunteer, text string) error {
	if vol.State != models.StateExpectingFurtherComments {
		m.unexpected(vol, models.EventFurtherComments)
		return nil
	}

	_, ok, err := m.patchOutcome(vol, func(r *models.Request) {
		r.FurtherComments = text
	})
	if err != nil || !ok {
		return err
	}
	return m.finalize(vol)
}

// finalize hands the request to the reporter and, only once the outcome has
// been delivered, resets the volunteer for new assignments. A reporting
// failure leaves everything in place so the event is safe to redeliver.
func (m *Machine) finalize(vol *models.Volunteer) error {
	if vol.State != models.StateExpectingFurtherComments {
		m.unexpected(vol, models.EventFurtherCommentsNone)
		return nil
	}

	free := func(v *models.Volunteer) {
		v.State = models.StateAvailable
		v.CurrentRequestID = ""
		v.ReviewedRequestID = ""
	}

	requestID := vol.CurrentRequestID
	if _, err := m.reporter.Finalize(requestID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Cancelled underneath the survey; just free the volunteer.
			_, uerr := m.advance(vol, free)
			return uerr
		}
		return fmt.Errorf("finalize %s: %w", requestID, err)
	}

	applied, err := m.advance(vol, free)
	if err != nil || !applied {
		return err
	}

	m.log.Info().Int64("chat_id", vol.ChatID).Str("request_id", requestID).
		Msg("request completed")
	return m.notifier.Notify(vol.ChatID, models.MsgThanksFinal, models.MessageContext{})
}
