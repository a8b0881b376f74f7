package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/code4md/ajubot/internal/models"
)

// Client talks to the coordination backend over its REST API. Every call has
// a bounded timeout; a slow backend must never stall the state machine.
type Client struct {
	log      zerolog.Logger
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(baseURL, username, password string, log zerolog.Logger) *Client {
	return &Client{
		log:      log.With().Str("component", "backend").Logger(),
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) post(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend POST %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// LinkVolunteer tells the backend which chat session belongs to a volunteer,
// so future broadcasts can address them.
func (c *Client) LinkVolunteer(username string, chatID int64, phone string) error {
	return c.post("/volunteer/link", map[string]any{
		"volunteer": username,
		"chat_id":   chatID,
		"phone":     phone,
	})
}

// RelayOffer forwards a volunteer's proposed handling time. Called once per
// responding volunteer; the backend arbitrates between them.
func (c *Client) RelayOffer(requestID string, chatID int64, offer string) error {
	return c.post("/offer", map[string]any{
		"request_id": requestID,
		"volunteer":  chatID,
		"offer":      offer,
	})
}

// UpdateRequestStatus pushes a status change (onProgress, done, CANCELLED).
func (c *Client) UpdateRequestStatus(requestID, status string) error {
	return c.post("/request/status", map[string]any{
		"request_id": requestID,
		"status":     status,
	})
}

// ReportOutcome delivers the finalized outcome record.
func (c *Client) ReportOutcome(requestID string, outcome *models.OutcomeRecord) error {
	return c.post("/request/result", outcome)
}

// UploadReceipt sends one shopping receipt photo. A volunteer may send
// several photos for the same request, so each part gets a unique name.
func (c *Client) UploadReceipt(requestID string, photo []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("request_id", requestID); err != nil {
		return err
	}
	part, err := w.CreateFormFile("receipt", fmt.Sprintf("%s-%s.jpg", requestID, uuid.NewString()))
	if err != nil {
		return err
	}
	if _, err := part.Write(photo); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/receipt", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend receipt upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend receipt upload: unexpected status %d", resp.StatusCode)
	}

	c.log.Debug().Str("request_id", requestID).Int("bytes", len(photo)).Msg("receipt uploaded")
	return nil
}
