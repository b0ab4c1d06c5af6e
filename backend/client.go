package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hompy/monitoring"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// LikeDirection selects whether updateLike increments or decrements.
type LikeDirection string

const (
	LikeIncrement LikeDirection = "increment"
	LikeDecrement LikeDirection = "decrement"
)

// BackendError is the {success:false} envelope reported by the backend.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend reported failure: %s", e.Message)
}

// envelope is the non-array response shape of the backend. All mutating
// actions answer with it; list actions only produce it on failure.
type envelope struct {
	Success   *bool  `json:"success"`
	Error     string `json:"error"`
	NewLikes  int64  `json:"newLikes"`
	NewShares int64  `json:"newShares"`
}

// Client talks to the spreadsheet backend. Every operation is one
// request/response round trip against the single configured endpoint,
// multiplexed through the "action" parameter. No operation retries;
// callers decide what to do on failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListPosts fetches every post for the given tag ("all" for no filter).
func (c *Client) ListPosts(ctx context.Context, tag string) ([]Post, error) {
	if tag == "" {
		tag = "all"
	}
	params := url.Values{
		"action": {"getPosts"},
		"tag":    {tag},
	}

	var posts []Post
	if err := c.get(ctx, "getPosts", params, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListComments fetches chat messages at or after lastTimestamp (epoch ms).
// A mark of 0 requests the full history.
func (c *Client) ListComments(ctx context.Context, lastTimestamp int64) ([]ChatMessage, error) {
	params := url.Values{
		"action":        {"getComments"},
		"lastTimestamp": {strconv.FormatInt(lastTimestamp, 10)},
	}

	var messages []ChatMessage
	if err := c.get(ctx, "getComments", params, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// AddComment appends a guestbook entry. Username, age, location and
// message must all be non-empty; that is checked here before any network
// traffic happens.
func (c *Client) AddComment(ctx context.Context, username, age, location, message string) error {
	if username == "" || age == "" || location == "" || message == "" {
		return fmt.Errorf("addComment: missing required field")
	}

	form := url.Values{
		"action":   {"addComment"},
		"username": {username},
		"message":  {message},
		"age":      {age},
		"location": {location},
	}
	_, err := c.post(ctx, "addComment", form)
	return err
}

// UpdateLike adjusts a post's like counter and returns the new count.
func (c *Client) UpdateLike(ctx context.Context, rowIndex int, direction LikeDirection) (int64, error) {
	form := url.Values{
		"action":     {"updateLike"},
		"rowIndex":   {strconv.Itoa(rowIndex)},
		"likeAction": {string(direction)},
	}
	result, err := c.post(ctx, "updateLike", form)
	if err != nil {
		return 0, err
	}
	return result.NewLikes, nil
}

// UpdateShare increments a post's share counter and returns the new count.
// Shares only ever go up: there is no direction parameter.
func (c *Client) UpdateShare(ctx context.Context, rowIndex int) (int64, error) {
	form := url.Values{
		"action":   {"updateShare"},
		"rowIndex": {strconv.Itoa(rowIndex)},
	}
	result, err := c.post(ctx, "updateShare", form)
	if err != nil {
		return 0, err
	}
	return result.NewShares, nil
}

// get issues a list request and decodes the array response into dest.
// A JSON object in place of the array is the backend failure envelope.
func (c *Client) get(ctx context.Context, action string, params url.Values, dest any) error {
	timer := prometheus.NewTimer(monitoring.BackendRequestDuration.WithLabelValues(action))
	defer timer.ObserveDuration()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	body, err := c.do(action, req)
	if err != nil {
		return err
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			c.countOutcome(action, "malformed")
			return fmt.Errorf("%s: malformed response: %w", action, err)
		}
		c.countOutcome(action, "backend_error")
		return &BackendError{Message: env.Error}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		c.countOutcome(action, "malformed")
		return fmt.Errorf("%s: malformed response: %w", action, err)
	}
	c.countOutcome(action, "ok")
	return nil
}

// post issues a mutating request as a url-encoded form and decodes the
// result envelope.
func (c *Client) post(ctx context.Context, action string, form url.Values) (*envelope, error) {
	timer := prometheus.NewTimer(monitoring.BackendRequestDuration.WithLabelValues(action))
	defer timer.ObserveDuration()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL,
		bytes.NewBufferString(form.Encode()),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(action, req)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.countOutcome(action, "malformed")
		return nil, fmt.Errorf("%s: malformed response: %w", action, err)
	}
	if env.Success == nil || !*env.Success {
		c.countOutcome(action, "backend_error")
		return nil, &BackendError{Message: env.Error}
	}
	c.countOutcome(action, "ok")
	return &env, nil
}

func (c *Client) do(action string, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countOutcome(action, "transport_error")
		log.Errorf("Error calling backend (%s): %v", action, err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countOutcome(action, "transport_error")
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.countOutcome(action, "http_error")
		log.Errorf("Backend returned status %d for action %s", resp.StatusCode, action)
		return nil, fmt.Errorf("%s: unexpected status %d", action, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) countOutcome(action, outcome string) {
	monitoring.BackendRequestsTotal.WithLabelValues(action, outcome).Inc()
}
