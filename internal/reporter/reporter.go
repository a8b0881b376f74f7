package reporter

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/code4md/ajubot/internal/models"
	"github.com/code4md/ajubot/internal/store"
)

// Backend receives the finalized outcome record.
type Backend interface {
	ReportOutcome(requestID string, outcome *models.OutcomeRecord) error
}

// Reporter assembles the structured result of a completed request and hands
// it to the backend. The request is only deleted after the handoff succeeds;
// a crash in between leaves the request in place and the outcome is reported
// again on redelivery.
type Reporter struct {
	log     zerolog.Logger
	store   *store.Store
	backend Backend
}

func New(st *store.Store, b Backend, log zerolog.Logger) *Reporter {
	return &Reporter{
		log:     log.With().Str("component", "reporter").Logger(),
		store:   st,
		backend: b,
	}
}

// Finalize reads the request, reports the outcome and deregisters the
// request. Only reporting-relevant fields are copied; internal bookkeeping
// such as the candidate list stays out of the record.
func (r *Reporter) Finalize(requestID string) (*models.OutcomeRecord, error) {
	req, err := r.store.Get(requestID)
	if err != nil {
		return nil, fmt.Errorf("finalize %s: %w", requestID, err)
	}

	outcome := &models.OutcomeRecord{
		RequestID:       req.ID,
		Amount:          req.Amount,
		Symptoms:        req.Symptoms,
		Wellbeing:       req.Wellbeing,
		WouldReturn:     req.WouldReturn,
		FurtherComments: req.FurtherComments,
	}

	if err := r.backend.ReportOutcome(requestID, outcome); err != nil {
		return nil, fmt.Errorf("report outcome %s: %w", requestID, err)
	}

	if err := r.store.Delete(requestID); err != nil {
		return nil, err
	}

	r.log.Info().Str("request_id", requestID).Msg("outcome reported")
	return outcome, nil
}
