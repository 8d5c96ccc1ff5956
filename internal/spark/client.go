package spark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	domerrors "github.com/imapex/tacbot-go/internal/errors"
)

const apiName = "spark"

var _ Gateway = (*Client)(nil)

// Recorder records upstream request metrics. Satisfied by *metrics.Metrics.
type Recorder interface {
	RecordUpstream(api, status string, duration float64)
}

// Client is an HTTP client for the Spark REST API.
// It implements Gateway. A Client is built for one bearer token; when
// the bot credentials are swapped at runtime a new Client replaces it.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	recorder   Recorder
}

// NewClient creates a new Spark API client.
// recorder may be nil when metrics are not wanted (tests).
func NewClient(baseURL, token string, timeout time.Duration, recorder Recorder) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		recorder: recorder,
	}
}

// errorBody is the error payload the Spark API returns on failures.
type errorBody struct {
	Message string `json:"message"`
}

// do performs a request and decodes the JSON response body into out
// (skipped when out is nil). Non-2xx responses map to UpstreamError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	start := time.Now()
	err := c.doOnce(ctx, method, path, query, body, out)

	if c.recorder != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.recorder.RecordUpstream(apiName, status, time.Since(start).Seconds())
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domerrors.UpstreamError{API: apiName, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return domerrors.NewUpstreamError(apiName, resp.StatusCode, eb.Message)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// SendMessage posts markdown text to a room.
func (c *Client) SendMessage(ctx context.Context, roomID, markdown string) error {
	payload := map[string]string{"roomId": roomID, "markdown": markdown}
	return c.do(ctx, http.MethodPost, "/messages", nil, payload, nil)
}

// SendMessageToPerson posts markdown text as a 1:1 message.
func (c *Client) SendMessageToPerson(ctx context.Context, email, markdown string) error {
	payload := map[string]string{"toPersonEmail": email, "markdown": markdown}
	return c.do(ctx, http.MethodPost, "/messages", nil, payload, nil)
}

// GetMessage fetches the full content of a message by id.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(messageID), nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetRoom fetches a room by id.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID), nil, nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms lists the rooms the bot is a member of.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var page struct {
		Items []Room `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// CreateRoom creates a room with the given title.
func (c *Client) CreateRoom(ctx context.Context, title string) (*Room, error) {
	var room Room
	payload := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/rooms", nil, payload, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListMemberships lists the memberships of a room.
func (c *Client) ListMemberships(ctx context.Context, roomID string) ([]Membership, error) {
	var page struct {
		Items []Membership `json:"items"`
	}
	query := url.Values{"roomId": {roomID}}
	if err := c.do(ctx, http.MethodGet, "/memberships", query, nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// CreateMembership adds a person to a room by person id.
func (c *Client) CreateMembership(ctx context.Context, roomID, personID string) (*Membership, error) {
	var membership Membership
	payload := map[string]string{"roomId": roomID, "personId": personID}
	if err := c.do(ctx, http.MethodPost, "/memberships", nil, payload, &membership); err != nil {
		return nil, err
	}
	return &membership, nil
}

// InviteByEmail adds a person to a room by email address.
func (c *Client) InviteByEmail(ctx context.Context, roomID, email string) (*Membership, error) {
	var membership Membership
	payload := map[string]string{"roomId": roomID, "personEmail": email}
	if err := c.do(ctx, http.MethodPost, "/memberships", nil, payload, &membership); err != nil {
		return nil, err
	}
	return &membership, nil
}

// GetPerson fetches a person by id.
func (c *Client) GetPerson(ctx context.Context, personID string) (*Person, error) {
	var person Person
	if err := c.do(ctx, http.MethodGet, "/people/"+url.PathEscape(personID), nil, nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// GetPersonByEmail looks up a person by email address.
// Returns (nil, nil) when no account matches.
func (c *Client) GetPersonByEmail(ctx context.Context, email string) (*Person, error) {
	var page struct {
		Items []Person `json:"items"`
	}
	query := url.Values{"email": {email}}
	if err := c.do(ctx, http.MethodGet, "/people", query, nil, &page); err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, nil
	}
	return &page.Items[0], nil
}

// Me returns the bot's own account.
func (c *Client) Me(ctx context.Context) (*Person, error) {
	var person Person
	if err := c.do(ctx, http.MethodGet, "/people/me", nil, nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}
