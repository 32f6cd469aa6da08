// Package apiclient is the HTTP consumer of the meeting engagement API:
// visit bootstrap, engagement snapshot fallback, duration updates, the
// legacy status path, and city/meeting-room resources. Transient
// failures (network errors, 5xx) are retried with exponential backoff.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/engagement"
)

// Client talks to the engagement API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	maxTries   uint
}

// envelope is the server's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StatusError reports a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Code, e.Message)
}

// New creates an API client for the given base URL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		maxTries:   3,
	}
}

// VisitRequest selects the meeting context: a meeting room or an MS
// Teams invite. Fingerprint identifies the visitor across reconnects.
type VisitRequest struct {
	MeetingRoomID string `json:"meeting_room_id,omitempty"`
	MSTeams       string `json:"ms_teams,omitempty"`
	Fingerprint   string `json:"fingerprint"`
}

// VisitResponse bootstraps a meeting session. SessionToken is the
// identity token for the WebSocket join.
type VisitResponse struct {
	MeetingID    string    `json:"meeting_id"`
	MeetingStart time.Time `json:"meeting_start"`
	MeetingEnd   time.Time `json:"meeting_end"`
	SessionToken string    `json:"session_token"`
}

// Meeting is the meeting resource DTO.
type Meeting struct {
	ID              string    `json:"id"`
	StartTS         time.Time `json:"start_ts"`
	EndTS           time.Time `json:"end_ts"`
	CityID          string    `json:"city_id,omitempty"`
	CityName        string    `json:"city_name,omitempty"`
	MeetingRoomID   string    `json:"meeting_room_id,omitempty"`
	MeetingRoomName string    `json:"meeting_room_name,omitempty"`
	MSTeamsThreadID string    `json:"ms_teams_thread_id,omitempty"`
	MSTeamsInvite   string    `json:"ms_teams_invite_url,omitempty"`
}

// City is the city resource DTO.
type City struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MeetingRoom is the meeting room resource DTO.
type MeetingRoom struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	CityID string `json:"city_id"`
}

// Page is the paginated list wrapper.
type Page[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// Visit finds or creates the meeting for the current time slot.
func (c *Client) Visit(ctx context.Context, req VisitRequest) (*VisitResponse, error) {
	return doJSON[VisitResponse](ctx, c, http.MethodPost, "/visit", req)
}

// EngagementSummary fetches the full engagement snapshot for a meeting,
// the HTTP fallback to the WebSocket snapshot frame.
func (c *Client) EngagementSummary(ctx context.Context, meetingID string) (*engagement.Summary, error) {
	return doJSON[engagement.Summary](ctx, c, http.MethodGet, "/meetings/"+url.PathEscape(meetingID)+"/engagement", nil)
}

// UpdateDuration extends or shortens a meeting.
func (c *Client) UpdateDuration(ctx context.Context, meetingID string, durationMinutes int) (*Meeting, error) {
	body := map[string]int{"duration_minutes": durationMinutes}
	return doJSON[Meeting](ctx, c, http.MethodPatch, "/meetings/"+url.PathEscape(meetingID)+"/duration", body)
}

// SendStatus is the legacy HTTP status update path, superseded by the
// WebSocket status frame.
func (c *Client) SendStatus(ctx context.Context, participantID string, status engagement.Status) error {
	body := map[string]string{"participant_id": participantID, "status": string(status)}
	_, err := doJSON[struct{}](ctx, c, http.MethodPost, "/users/status", body)
	return err
}

// Cities lists cities, paginated.
func (c *Client) Cities(ctx context.Context, page, pageSize int) (*Page[City], error) {
	return doJSON[Page[City]](ctx, c, http.MethodGet, "/cities"+pageQuery(page, pageSize), nil)
}

// CreateCity adds a city.
func (c *Client) CreateCity(ctx context.Context, name string) (*City, error) {
	return doJSON[City](ctx, c, http.MethodPost, "/cities", map[string]string{"name": name})
}

// MeetingRooms lists rooms for a city, paginated.
func (c *Client) MeetingRooms(ctx context.Context, cityID string, page, pageSize int) (*Page[MeetingRoom], error) {
	path := "/meeting-rooms" + pageQuery(page, pageSize) + "&city_id=" + url.QueryEscape(cityID)
	return doJSON[Page[MeetingRoom]](ctx, c, http.MethodGet, path, nil)
}

// CreateMeetingRoom adds a meeting room to a city.
func (c *Client) CreateMeetingRoom(ctx context.Context, name, cityID string) (*MeetingRoom, error) {
	body := map[string]string{"name": name, "city_id": cityID}
	return doJSON[MeetingRoom](ctx, c, http.MethodPost, "/meeting-rooms", body)
}

func pageQuery(page, pageSize int) string {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	return "?page=" + strconv.Itoa(page) + "&page_size=" + strconv.Itoa(pageSize)
}

func doJSON[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	operation := func() (*T, error) {
		raw, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
		var out T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}
		return &out, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (json.RawMessage, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed, will retry", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	message := ""
	if len(raw) > 0 && json.Unmarshal(raw, &env) == nil {
		message = env.Error
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if env.Data != nil {
			return env.Data, nil
		}
		return raw, nil
	}

	statusErr := &StatusError{Code: resp.StatusCode, Message: message}
	if resp.StatusCode >= 500 {
		// Server faults are worth retrying; client errors are not.
		return nil, statusErr
	}
	return nil, backoff.Permanent(statusErr)
}
