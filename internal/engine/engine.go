package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/code4md/ajubot/internal/directory"
	"github.com/code4md/ajubot/internal/models"
	"github.com/code4md/ajubot/internal/store"
)

// Notifier delivers a rendered message to a volunteer. Implemented by the
// Telegram adapter; failures are the transport's problem and never roll back
// engine state.
type Notifier interface {
	Notify(chatID int64, kind models.MessageKind, ctx models.MessageContext) error
}

// Backend is the slice of the backend client the engine needs.
type Backend interface {
	RelayOffer(requestID string, chatID int64, offer string) error
}

// Engine fans new requests out to eligible volunteers, records their
// advisory offers, and applies the backend's authoritative assignment
// decisions. State is mutated and persisted first; notifications go out after
// the locks are released.
type Engine struct {
	log      zerolog.Logger
	store    *store.Store
	dir      *directory.Directory
	notifier Notifier
	backend  Backend
}

func New(st *store.Store, dir *directory.Directory, n Notifier, b Backend, log zerolog.Logger) *Engine {
	return &Engine{
		log:      log.With().Str("component", "engine").Logger(),
		store:    st,
		dir:      dir,
		notifier: n,
		backend:  b,
	}
}

// Broadcast persists the request and offers it to every backend-supplied
// candidate who is registered and currently AVAILABLE. Busy or unknown
// volunteers are silently skipped. When the backend names no candidates the
// request goes to the whole available pool. Each recipient's reviewed request
// is stamped and their state moves to REQUEST_SENT.
func (e *Engine) Broadcast(req *models.Request) error {
	candidates := req.Candidates
	if len(candidates) == 0 {
		candidates = e.dir.ListEligible()
	}

	var recipients []int64
	for _, chatID := range candidates {
		v, err := e.dir.Get(chatID)
		if err != nil {
			e.log.Debug().Int64("chat_id", chatID).Str("request_id", req.ID).
				Msg("candidate not registered, skipping")
			continue
		}
		if v.State != models.StateAvailable {
			e.log.Debug().Int64("chat_id", chatID).Str("request_id", req.ID).
				Str("state", string(v.State)).Msg("candidate busy, skipping")
			continue
		}
		recipients = append(recipients, chatID)
	}

	req.Candidates = recipients
	if err := e.store.Create(req); err != nil {
		return fmt.Errorf("broadcast %s: %w", req.ID, err)
	}

	for _, chatID := range recipients {
		stamped := false
		_, err := e.dir.Upsert(chatID, func(v *models.Volunteer) {
			if v.State != models.StateAvailable {
				return
			}
			stamped = true
			v.State = models.StateRequestSent
			v.ReviewedRequestID = req.ID
		})
		if err != nil {
			e.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to stamp recipient")
			continue
		}
		if !stamped {
			e.log.Debug().Int64("chat_id", chatID).Str("request_id", req.ID).
				Msg("candidate became busy, skipping")
			continue
		}
		if err := e.notifier.Notify(chatID, models.MsgBroadcast, models.MessageContext{Request: req}); err != nil {
			e.log.Warn().Err(err).Int64("chat_id", chatID).Msg("broadcast delivery failed")
		}
	}

	e.log.Info().Str("request_id", req.ID).Int("recipients", len(recipients)).
		Msg("request broadcast")
	return nil
}

// RelayOffer records a volunteer's proposed time against the request and
// forwards it to the backend. Offers accumulate; the engine never picks a
// winner itself. Returns ErrNotFound when the request is already gone.
func (e *Engine) RelayOffer(requestID string, chatID int64, offerTime string) error {
	_, err := e.store.Patch(requestID, func(r *models.Request) {
		r.Offers = append(r.Offers, models.Offer{ChatID: chatID, Time: offerTime})
	})
	if err != nil {
		return err
	}

	if err := e.backend.RelayOffer(requestID, chatID, offerTime); err != nil {
		e.log.Warn().Err(err).Str("request_id", requestID).Int64("chat_id", chatID).
			Msg("failed to relay offer to backend")
	}

	e.log.Info().Str("request_id", requestID).Int64("chat_id", chatID).
		Str("offer", offerTime).Msg("offer relayed")
	return nil
}

// Assign applies the backend's authoritative choice of volunteer. Everyone
// else who was reviewing the request is reset to AVAILABLE and told another
// volunteer got it; the assignee is advanced to the health-caution prompt.
// An unknown request is a tolerated race (already cancelled or expired) and is
// logged and ignored, as is an assignee the directory has never seen.
func (e *Engine) Assign(requestID string, assignee int64, scheduledTime string) error {
	if _, err := e.dir.Get(assignee); err != nil {
		e.log.Warn().Str("request_id", requestID).Int64("chat_id", assignee).
			Msg("assign to unknown volunteer, ignoring")
		return nil
	}

	req, err := e.store.Patch(requestID, func(r *models.Request) {
		r.Assignee = assignee
		r.ScheduledTime = scheduledTime
	})
	if errors.Is(err, models.ErrNotFound) {
		e.log.Info().Str("request_id", requestID).Msg("assign for unknown request, ignoring")
		return nil
	}
	if err != nil {
		return err
	}

	for _, chatID := range req.Candidates {
		if chatID == assignee {
			continue
		}
		_, err := e.dir.Upsert(chatID, func(v *models.Volunteer) {
			if v.ReviewedRequestID != requestID {
				return
			}
			v.State = models.StateAvailable
			v.ReviewedRequestID = ""
		})
		if err != nil {
			e.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to reset loser")
			continue
		}
		if err := e.notifier.Notify(chatID, models.MsgAnotherAssignee, models.MessageContext{Request: req}); err != nil {
			e.log.Warn().Err(err).Int64("chat_id", chatID).Msg("loser notification failed")
		}
	}

	_, err = e.dir.Upsert(assignee, func(v *models.Volunteer) {
		v.State = models.StateRequestAssigned
		v.CurrentRequestID = requestID
		v.ReviewedRequestID = requestID
	})
	if err != nil {
		return fmt.Errorf("assign %s: %w", requestID, err)
	}

	if err := e.notifier.Notify(assignee, models.MsgHealthCaution, models.MessageContext{Request: req}); err != nil {
		e.log.Warn().Err(err).Int64("chat_id", assignee).Msg("caution delivery failed")
	}

	e.log.Info().Str("request_id", requestID).Int64("assignee", assignee).
		Str("time", scheduledTime).Msg("request assigned")
	return nil
}

// Cancel removes the request. When the backend names a volunteer only that
// volunteer is reset; otherwise everyone still tracking the request is. A
// cancellation for an already-finalized request is a no-op.
func (e *Engine) Cancel(requestID string, chatID int64) error {
	req, err := e.store.Get(requestID)
	if errors.Is(err, models.ErrNotFound) {
		e.log.Info().Str("request_id", requestID).Msg("cancel for unknown request, ignoring")
		return nil
	}
	if err != nil {
		return err
	}

	var affected []int64
	if chatID != 0 {
		affected = []int64{chatID}
	} else {
		affected = append(affected, req.Candidates...)
		if req.Assignee != 0 && !req.HasCandidate(req.Assignee) {
			affected = append(affected, req.Assignee)
		}
	}

	if err := e.store.Delete(requestID); err != nil {
		return err
	}

	for _, id := range affected {
		_, err := e.dir.Upsert(id, func(v *models.Volunteer) {
			if v.ReviewedRequestID != requestID && v.CurrentRequestID != requestID {
				return
			}
			v.State = models.StateAvailable
			v.CurrentRequestID = ""
			v.ReviewedRequestID = ""
		})
		if err != nil {
			e.log.Error().Err(err).Int64("chat_id", id).Msg("failed to reset volunteer on cancel")
			continue
		}
		if err := e.notifier.Notify(id, models.MsgRequestCancelled, models.MessageContext{}); err != nil {
			e.log.Warn().Err(err).Int64("chat_id", id).Msg("cancel notification failed")
		}
	}

	e.log.Info().Str("request_id", requestID).Msg("request cancelled")
	return nil
}
