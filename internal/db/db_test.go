package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code4md/ajubot/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestVolunteerRoundTrip(t *testing.T) {
	database := newTestDB(t)

	vol := &models.Volunteer{
		ChatID:            42,
		Username:          "maria",
		FullName:          "Maria P",
		Phone:             "+37360000000",
		State:             models.StateAvailable,
		CurrentRequestID:  "req-1",
		ReviewedRequestID: "req-1",
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, database.SaveVolunteer(vol))

	got, err := database.GetVolunteer(42)
	require.NoError(t, err)
	assert.Equal(t, vol.Username, got.Username)
	assert.Equal(t, vol.Phone, got.Phone)
	assert.Equal(t, models.StateAvailable, got.State)
	assert.Equal(t, "req-1", got.CurrentRequestID)
}

func TestVolunteerNotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetVolunteer(99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSaveVolunteerReplaces(t *testing.T) {
	database := newTestDB(t)

	vol := &models.Volunteer{ChatID: 42, State: models.StateExpectingPhoneNumber}
	require.NoError(t, database.SaveVolunteer(vol))

	vol.Phone = "+37360000000"
	vol.State = models.StateAvailable
	require.NoError(t, database.SaveVolunteer(vol))

	got, err := database.GetVolunteer(42)
	require.NoError(t, err)
	assert.Equal(t, models.StateAvailable, got.State)
	assert.Equal(t, "+37360000000", got.Phone)

	all, err := database.ListVolunteers()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRequestRoundTrip(t *testing.T) {
	database := newTestDB(t)

	req := &models.Request{
		ID:            "req-1",
		Address:       "str. Pushkin 22",
		Beneficiary:   "Ion C",
		Needs:         []string{"bread", "paracetamol"},
		Remarks:       []string{"third floor", "no elevator"},
		HasLocation:   true,
		Latitude:      47.02,
		Longitude:     28.83,
		Candidates:    []int64{1, 2, 3},
		Offers:        []models.Offer{{ChatID: 1, Time: "14:30"}},
		Assignee:      1,
		ScheduledTime: "14:30",
		Amount:        "137.50",
		Symptoms:      []string{models.SymptomCough},
		Wellbeing:     3,
		WellbeingSet:  true,
		WouldReturn:   true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, database.SaveRequest(req))

	got, err := database.GetRequest("req-1")
	require.NoError(t, err)
	assert.Equal(t, req.Needs, got.Needs)
	assert.Equal(t, req.Remarks, got.Remarks)
	assert.Equal(t, req.Candidates, got.Candidates)
	assert.Equal(t, req.Offers, got.Offers)
	assert.Equal(t, req.Symptoms, got.Symptoms)
	assert.True(t, got.HasLocation)
	assert.Equal(t, 47.02, got.Latitude)
	assert.Equal(t, int64(1), got.Assignee)
	assert.Equal(t, 3, got.Wellbeing)
	assert.True(t, got.WellbeingSet)
	assert.True(t, got.WouldReturn)
}

func TestRequestNotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetRequest("gone")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteRequest(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SaveRequest(&models.Request{ID: "req-1", Address: "somewhere"}))
	require.NoError(t, database.DeleteRequest("req-1"))

	_, err := database.GetRequest("req-1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Deleting again is harmless.
	require.NoError(t, database.DeleteRequest("req-1"))
}

func TestListRequestsSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	database, err := New(path)
	require.NoError(t, err)
	require.NoError(t, database.SaveRequest(&models.Request{
		ID: "req-1", Address: "a", Needs: []string{"bread"},
	}))
	require.NoError(t, database.SaveRequest(&models.Request{
		ID: "req-2", Address: "b", Candidates: []int64{1},
	}))
	require.NoError(t, database.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.ListRequests()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
