package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/code4md/ajubot/internal/models"
)

// DB is the durable key-value layer behind the volunteer directory and the
// request store. Each record is written with replace semantics, so a crash
// never leaves a partially updated row.
type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS volunteers (
		chat_id INTEGER PRIMARY KEY,
		username TEXT,
		full_name TEXT,
		phone TEXT,
		state TEXT NOT NULL,
		current_request_id TEXT,
		reviewed_request_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		beneficiary TEXT,
		needs TEXT NOT NULL,
		remarks TEXT,
		has_location INTEGER DEFAULT 0,
		latitude REAL,
		longitude REAL,
		candidates TEXT,
		offers TEXT,
		assignee INTEGER DEFAULT 0,
		scheduled_time TEXT,
		amount TEXT,
		symptoms TEXT,
		wellbeing INTEGER DEFAULT 0,
		wellbeing_set INTEGER DEFAULT 0,
		would_return INTEGER DEFAULT 0,
		further_comments TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_requests_assignee ON requests(assignee);
	CREATE INDEX IF NOT EXISTS idx_volunteers_state ON volunteers(state);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveVolunteer writes the full volunteer record, replacing any previous one.
func (db *DB) SaveVolunteer(v *models.Volunteer) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO volunteers
		 (chat_id, username, full_name, phone, state, current_request_id, reviewed_request_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ChatID, v.Username, v.FullName, v.Phone, string(v.State),
		v.CurrentRequestID, v.ReviewedRequestID, v.CreatedAt, time.Now().UTC(),
	)
	return err
}

// GetVolunteer retrieves a volunteer by chat ID.
func (db *DB) GetVolunteer(chatID int64) (*models.Volunteer, error) {
	var v models.Volunteer
	var state string

	err := db.conn.QueryRow(
		`SELECT chat_id, username, full_name, phone, state,
		        current_request_id, reviewed_request_id, created_at, updated_at
		 FROM volunteers WHERE chat_id = ?`, chatID,
	).Scan(
		&v.ChatID, &v.Username, &v.FullName, &v.Phone, &state,
		&v.CurrentRequestID, &v.ReviewedRequestID, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	v.State = models.ConversationState(state)
	return &v, nil
}

// ListVolunteers returns every registered volunteer.
func (db *DB) ListVolunteers() ([]*models.Volunteer, error) {
	rows, err := db.conn.Query(
		`SELECT chat_id, username, full_name, phone, state,
		        current_request_id, reviewed_request_id, created_at, updated_at
		 FROM volunteers ORDER BY chat_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volunteers []*models.Volunteer
	for rows.Next() {
		var v models.Volunteer
		var state string
		err := rows.Scan(
			&v.ChatID, &v.Username, &v.FullName, &v.Phone, &state,
			&v.CurrentRequestID, &v.ReviewedRequestID, &v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		v.State = models.ConversationState(state)
		volunteers = append(volunteers, &v)
	}

	return volunteers, rows.Err()
}

// SaveRequest writes the full request record, replacing any previous one.
// Slice-valued fields are stored as JSON.
func (db *DB) SaveRequest(r *models.Request) error {
	needs, err := json.Marshal(r.Needs)
	if err != nil {
		return err
	}
	remarks, err := json.Marshal(r.Remarks)
	if err != nil {
		return err
	}
	candidates, err := json.Marshal(r.Candidates)
	if err != nil {
		return err
	}
	offers, err := json.Marshal(r.Offers)
	if err != nil {
		return err
	}
	symptoms, err := json.Marshal(r.Symptoms)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT OR REPLACE INTO requests
		 (id, address, beneficiary, needs, remarks, has_location, latitude, longitude,
		  candidates, offers, assignee, scheduled_time, amount, symptoms,
		  wellbeing, wellbeing_set, would_return, further_comments, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Address, r.Beneficiary, string(needs), string(remarks),
		r.HasLocation, r.Latitude, r.Longitude,
		string(candidates), string(offers), r.Assignee, r.ScheduledTime,
		r.Amount, string(symptoms), r.Wellbeing, r.WellbeingSet,
		r.WouldReturn, r.FurtherComments, r.CreatedAt, time.Now().UTC(),
	)
	return err
}

// GetRequest retrieves a request by ID.
func (db *DB) GetRequest(id string) (*models.Request, error) {
	row := db.conn.QueryRow(
		`SELECT id, address, beneficiary, needs, remarks, has_location, latitude, longitude,
		        candidates, offers, assignee, scheduled_time, amount, symptoms,
		        wellbeing, wellbeing_set, would_return, further_comments, created_at, updated_at
		 FROM requests WHERE id = ?`, id,
	)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return req, err
}

// ListRequests returns every live request.
func (db *DB) ListRequests() ([]*models.Request, error) {
	rows, err := db.conn.Query(
		`SELECT id, address, beneficiary, needs, remarks, has_location, latitude, longitude,
		        candidates, offers, assignee, scheduled_time, amount, symptoms,
		        wellbeing, wellbeing_set, would_return, further_comments, created_at, updated_at
		 FROM requests ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// DeleteRequest removes a completed or cancelled request.
func (db *DB) DeleteRequest(id string) error {
	_, err := db.conn.Exec(`DELETE FROM requests WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*models.Request, error) {
	var r models.Request
	var needs, remarks, candidates, offers, symptoms sql.NullString

	err := s.Scan(
		&r.ID, &r.Address, &r.Beneficiary, &needs, &remarks,
		&r.HasLocation, &r.Latitude, &r.Longitude,
		&candidates, &offers, &r.Assignee, &r.ScheduledTime,
		&r.Amount, &symptoms, &r.Wellbeing, &r.WellbeingSet,
		&r.WouldReturn, &r.FurtherComments, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, col := range []struct {
		raw  sql.NullString
		into any
	}{
		{needs, &r.Needs},
		{remarks, &r.Remarks},
		{candidates, &r.Candidates},
		{offers, &r.Offers},
		{symptoms, &r.Symptoms},
	} {
		if !col.raw.Valid || col.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw.String), col.into); err != nil {
			return nil, fmt.Errorf("corrupt request %s: %w", r.ID, err)
		}
	}

	return &r, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
