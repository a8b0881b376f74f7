package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code4md/ajubot/internal/models"
)

type fakeCoordinator struct {
	broadcasts []*models.Request
	assigns    []string
	cancels    []string
	err        error
}

func (f *fakeCoordinator) Broadcast(req *models.Request) error {
	if f.err != nil {
		return f.err
	}
	f.broadcasts = append(f.broadcasts, req)
	return nil
}

func (f *fakeCoordinator) Assign(requestID string, chatID int64, scheduledTime string) error {
	if f.err != nil {
		return f.err
	}
	f.assigns = append(f.assigns, requestID)
	return nil
}

func (f *fakeCoordinator) Cancel(requestID string, chatID int64) error {
	if f.err != nil {
		return f.err
	}
	f.cancels = append(f.cancels, requestID)
	return nil
}

type fakeIntrospector struct {
	volunteers []*models.Volunteer
	requests   []*models.Request
}

func (f *fakeIntrospector) Volunteers() []*models.Volunteer { return f.volunteers }
func (f *fakeIntrospector) Requests() []*models.Request     { return f.requests }

func newTestServer(coord *fakeCoordinator, insp *fakeIntrospector) *Server {
	if insp == nil {
		insp = &fakeIntrospector{}
	}
	return NewServer("127.0.0.1:0", coord, insp, zerolog.Nop())
}

func TestHelpRequest(t *testing.T) {
	coord := &fakeCoordinator{}
	srv := newTestServer(coord, nil)

	body := `{
		"request_id": "req-1",
		"address": "str. Pushkin 22",
		"beneficiary": "Ion C",
		"needs": ["bread", "milk"],
		"volunteers": [1, 2, 3],
		"latitude": 47.02,
		"longitude": 28.83,
		"remarks": ["third floor"]
	}`
	rec := httptest.NewRecorder()
	srv.handleHelpRequest(rec, httptest.NewRequest(http.MethodPost, "/help_request", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Request handled", rec.Body.String())

	require.Len(t, coord.broadcasts, 1)
	req := coord.broadcasts[0]
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, "Ion C", req.Beneficiary)
	assert.Equal(t, []int64{1, 2, 3}, req.Candidates)
	assert.True(t, req.HasLocation)
	assert.Equal(t, 47.02, req.Latitude)
}

func TestHelpRequestWithoutLocation(t *testing.T) {
	coord := &fakeCoordinator{}
	srv := newTestServer(coord, nil)

	rec := httptest.NewRecorder()
	srv.handleHelpRequest(rec, httptest.NewRequest(http.MethodPost, "/help_request",
		strings.NewReader(`{"request_id": "req-1", "volunteers": [1]}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, coord.broadcasts, 1)
	assert.False(t, coord.broadcasts[0].HasLocation)
}

func TestHelpRequestMalformed(t *testing.T) {
	srv := newTestServer(&fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.handleHelpRequest(rec, httptest.NewRequest(http.MethodPost, "/help_request",
		strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHelpRequestMissingID(t *testing.T) {
	srv := newTestServer(&fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.handleHelpRequest(rec, httptest.NewRequest(http.MethodPost, "/help_request",
		strings.NewReader(`{"address": "somewhere"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHelpRequestDuplicate(t *testing.T) {
	coord := &fakeCoordinator{err: models.ErrDuplicateID}
	srv := newTestServer(coord, nil)

	rec := httptest.NewRecorder()
	srv.handleHelpRequest(rec, httptest.NewRequest(http.MethodPost, "/help_request",
		strings.NewReader(`{"request_id": "req-1"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHelpRequestWrongMethod(t *testing.T) {
	srv := newTestServer(&fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.handleHelpRequest(rec, httptest.NewRequest(http.MethodGet, "/help_request", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAssign(t *testing.T) {
	coord := &fakeCoordinator{}
	srv := newTestServer(coord, nil)

	rec := httptest.NewRecorder()
	srv.handleAssign(rec, httptest.NewRequest(http.MethodPost, "/assign_help_request",
		strings.NewReader(`{"request_id": "req-1", "volunteer": 42, "time": "15:00"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"req-1"}, coord.assigns)
}

func TestAssignMalformed(t *testing.T) {
	srv := newTestServer(&fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.handleAssign(rec, httptest.NewRequest(http.MethodPost, "/assign_help_request",
		strings.NewReader(`[]`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancel(t *testing.T) {
	coord := &fakeCoordinator{}
	srv := newTestServer(coord, nil)

	rec := httptest.NewRecorder()
	srv.handleCancel(rec, httptest.NewRequest(http.MethodPost, "/cancel_help_request",
		strings.NewReader(`{"request_id": "req-1", "volunteer": 42}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"req-1"}, coord.cancels)
}

func TestIntrospect(t *testing.T) {
	insp := &fakeIntrospector{
		volunteers: []*models.Volunteer{{ChatID: 42, Username: "maria", State: models.StateAvailable}},
		requests:   []*models.Request{{ID: "req-1", Assignee: 42}},
	}
	srv := newTestServer(&fakeCoordinator{}, insp)

	rec := httptest.NewRecorder()
	srv.handleIntrospect(rec, httptest.NewRequest(http.MethodGet, "/introspect", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var dump struct {
		Volunteers []*models.Volunteer `json:"volunteers"`
		Requests   []*models.Request   `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dump))
	require.Len(t, dump.Volunteers, 1)
	assert.Equal(t, int64(42), dump.Volunteers[0].ChatID)
	require.Len(t, dump.Requests, 1)
	assert.Equal(t, "req-1", dump.Requests[0].ID)
}

func TestIntrospectWrongMethod(t *testing.T) {
	srv := newTestServer(&fakeCoordinator{}, nil)

	rec := httptest.NewRecorder()
	srv.handleIntrospect(rec, httptest.NewRequest(http.MethodPost, "/introspect", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
