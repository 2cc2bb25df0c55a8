package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"turnera/pkg/config"
	"turnera/pkg/contracts"
)

// Client talks to the external calendar provider. Event identifiers are
// opaque strings assigned by the provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.CalendarBaseURL,
		apiKey:  cfg.CalendarAPIKey,
		httpClient: &http.Client{
			Timeout: cfg.CalendarRequestTimeout,
		},
	}
}

type createEventRequest struct {
	Summary   string    `json:"summary"`
	Notes     string    `json:"notes,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type createEventResponse struct {
	ID string `json:"id"`
}

// CreateEvent mirrors a confirmed reservation as a calendar event and
// returns the provider-assigned event ID.
func (c *Client) CreateEvent(ctx context.Context, cmd contracts.MirrorCommand) (string, error) {
	body := createEventRequest{
		Summary:   cmd.Summary,
		Notes:     cmd.Notes,
		StartTime: cmd.StartTime,
		EndTime:   cmd.EndTime,
	}

	path := fmt.Sprintf("/v1/calendars/%s/events", cmd.ProfessionalID)
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("calendar create event returned status %d: %s", resp.StatusCode, resp.Body)
	}

	var created createEventResponse
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return "", fmt.Errorf("failed to decode calendar response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("calendar response missing event id")
	}

	return created.ID, nil
}

// DeleteEvent removes a mirrored event. A 404 from the provider is treated
// as success so deletes stay idempotent.
func (c *Client) DeleteEvent(ctx context.Context, professionalID, eventID string) error {
	path := fmt.Sprintf("/v1/calendars/%s/events/%s", professionalID, eventID)
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("calendar delete event returned status %d: %s", resp.StatusCode, resp.Body)
	}

	return nil
}

type response struct {
	StatusCode int
	Body       []byte
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
