package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/code4md/ajubot/internal/models"
)

// Coordinator is the slice of the assignment engine driven by backend events.
type Coordinator interface {
	Broadcast(*models.Request) error
	Assign(requestID string, chatID int64, scheduledTime string) error
	Cancel(requestID string, chatID int64) error
}

// Introspector produces the read-only operational state dump.
type Introspector interface {
	Volunteers() []*models.Volunteer
	Requests() []*models.Request
}

// Server is the mini web server through which the backend feeds events into
// the bot: new help requests, assignments and cancellations.
type Server struct {
	log  zerolog.Logger
	eng  Coordinator
	insp Introspector
	srv  *http.Server
}

func NewServer(addr string, eng Coordinator, insp Introspector, log zerolog.Logger) *Server {
	s := &Server{
		log:  log.With().Str("component", "restapi").Logger(),
		eng:  eng,
		insp: insp,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/help_request", s.handleHelpRequest)
	mux.HandleFunc("/assign_help_request", s.handleAssign)
	mux.HandleFunc("/cancel_help_request", s.handleCancel)
	mux.HandleFunc("/introspect", s.handleIntrospect)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start listens in the current goroutine until the server is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("REST API listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// helpRequestPayload is the backend's "a beneficiary needs help" event.
type helpRequestPayload struct {
	RequestID   string   `json:"request_id"`
	Address     string   `json:"address"`
	Beneficiary string   `json:"beneficiary"`
	Needs       []string `json:"needs"`
	Volunteers  []int64  `json:"volunteers"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Remarks     []string `json:"remarks,omitempty"`
}

func (s *Server) handleHelpRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload helpRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "request malformed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.RequestID == "" {
		http.Error(w, "request_id is required", http.StatusBadRequest)
		return
	}

	req := &models.Request{
		ID:          payload.RequestID,
		Address:     payload.Address,
		Beneficiary: payload.Beneficiary,
		Needs:       payload.Needs,
		Remarks:     payload.Remarks,
		Candidates:  payload.Volunteers,
	}
	if payload.Latitude != nil && payload.Longitude != nil {
		req.HasLocation = true
		req.Latitude = *payload.Latitude
		req.Longitude = *payload.Longitude
	}

	if err := s.eng.Broadcast(req); err != nil {
		if errors.Is(err, models.ErrDuplicateID) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.log.Error().Err(err).Str("request_id", payload.RequestID).Msg("broadcast failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Write([]byte("Request handled"))
}

type assignPayload struct {
	RequestID string `json:"request_id"`
	Volunteer int64  `json:"volunteer"`
	Time      string `json:"time"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload assignPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "request malformed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.eng.Assign(payload.RequestID, payload.Volunteer, payload.Time); err != nil {
		s.log.Error().Err(err).Str("request_id", payload.RequestID).Msg("assign failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Write([]byte("Request handled"))
}

type cancelPayload struct {
	RequestID string `json:"request_id"`
	Volunteer int64  `json:"volunteer"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload cancelPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "request malformed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.eng.Cancel(payload.RequestID, payload.Volunteer); err != nil {
		s.log.Error().Err(err).Str("request_id", payload.RequestID).Msg("cancel failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Write([]byte("Request handled"))
}

// handleIntrospect dumps the live state. Development aid only; bind the
// server to localhost in any real deployment.
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"volunteers": s.insp.Volunteers(),
		"requests":   s.insp.Requests(),
	})
}
