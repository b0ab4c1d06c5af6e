package chat

import (
	"context"
	"fmt"
	"hompy/backend"
	"hompy/monitoring"
	"hompy/storage"
	"sync"

	log "github.com/sirupsen/logrus"
)

// UserColors is the rotating palette of css classes handed out to
// usernames in first-seen order.
var UserColors = []string{
	"user-color-0", "user-color-1", "user-color-2",
	"user-color-3", "user-color-4", "user-color-5",
}

const (
	EntryMessage = "message"
	EntryDivider = "divider"
)

// Entry is one rendered line of the guestbook: either a chat message or a
// date divider emitted on date transitions.
type Entry struct {
	Kind       string `json:"kind"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	Username   string `json:"username,omitempty"`
	Age        string `json:"age,omitempty"`
	Location   string `json:"location,omitempty"`
	Message    string `json:"message,omitempty"`
	ColorClass string `json:"colorClass,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// ValidationError is reported to the user before any network call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// CommentsAPI is the subset of the backend client the chat controller needs.
type CommentsAPI interface {
	ListComments(ctx context.Context, lastTimestamp int64) ([]backend.ChatMessage, error)
	AddComment(ctx context.Context, username, age, location, message string) error
}

// Controller owns the append-only guestbook view: it fetches messages
// incrementally from the high-water mark, deduplicates them by composite
// key, and renders date-separated entries.
type Controller struct {
	mu sync.Mutex

	client CommentsAPI
	store  storage.Gateway

	entries    []Entry
	seen       map[string]struct{}
	colors     map[string]string
	lastDate   string
	mark       int64
	refreshing bool

	notify func([]Entry)
}

func NewController(client CommentsAPI, store storage.Gateway) *Controller {
	c := &Controller{
		client: client,
		store:  store,
		seen:   make(map[string]struct{}),
		colors: make(map[string]string),
	}

	// A previously stored profile keeps its color across sessions
	if profile, ok := store.Profile(); ok && profile.Username != "" && profile.ColorClass != "" {
		c.colors[profile.Username] = profile.ColorClass
	}
	return c
}

// SetNotify installs a hook invoked with every batch of newly rendered
// entries. Used to push updates to connected frontends.
func (c *Controller) SetNotify(fn func([]Entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = fn
}

// Refresh fetches messages from the backend and merges them into the
// rendered view. A full refresh drops all rendered entries, the dedup set
// and the divider tracker, then fetches the complete history (mark 0);
// otherwise only messages at or after the current mark are requested.
// A refresh already in flight makes this call a no-op.
func (c *Controller) Refresh(ctx context.Context, full bool) ([]Entry, error) {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return nil, nil
	}
	c.refreshing = true
	since := c.mark
	if full {
		since = 0
	}
	c.mu.Unlock()

	messages, err := c.client.ListComments(ctx, since)

	c.mu.Lock()
	c.refreshing = false
	if err != nil {
		c.mu.Unlock()
		log.Errorf("Error fetching chat messages: %v", err)
		return nil, err
	}

	if full {
		c.entries = nil
		c.seen = make(map[string]struct{})
		c.lastDate = ""
	}

	appended := c.mergeLocked(messages)
	notify := c.notify
	c.mu.Unlock()

	if len(appended) > 0 && notify != nil {
		notify(appended)
	}
	return appended, nil
}

// mergeLocked advances the high-water mark and appends the not-yet-seen
// messages in arrival order, with a date divider on every date transition.
func (c *Controller) mergeLocked(messages []backend.ChatMessage) []Entry {
	latest := c.mark
	for _, msg := range messages {
		if ts := msg.Timestamp.UnixMilli(); ts > latest {
			latest = ts
		}
	}
	if latest > c.mark {
		c.mark = latest
	}

	var appended []Entry
	for _, msg := range messages {
		key := dedupKey(msg)
		if _, ok := c.seen[key]; ok {
			continue
		}

		when := msg.Timestamp.UTC()
		date := when.Format("2006-01-02")
		if date != c.lastDate {
			appended = append(appended, Entry{Kind: EntryDivider, Date: date})
			c.lastDate = date
		}

		appended = append(appended, Entry{
			Kind:       EntryMessage,
			Date:       date,
			Time:       when.Format("15:04"),
			Username:   msg.Username,
			Age:        msg.Age,
			Location:   msg.Location,
			Message:    msg.Message,
			ColorClass: c.colorForLocked(msg.Username),
			Timestamp:  msg.Timestamp.UnixMilli(),
		})
		c.seen[key] = struct{}{}
		monitoring.ChatMessagesMerged.Inc()
	}

	c.entries = append(c.entries, appended...)
	return appended
}

// Entries returns a copy of the rendered guestbook.
func (c *Controller) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	return entries
}

// Mark returns the current high-water mark in epoch milliseconds.
func (c *Controller) Mark() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mark
}

// Send validates and submits a guestbook message as the stored profile,
// then performs a full refresh so the view matches the backend. A
// non-empty honeypot value is logged and silently dropped.
func (c *Controller) Send(ctx context.Context, message string, honeypot string) error {
	if honeypot != "" {
		log.Warning("Honeypot triggered, likely spam attempt")
		return nil
	}

	profile, _ := c.store.Profile()
	if profile.Username == "" || profile.Age == "" || profile.Location == "" {
		return &ValidationError{Reason: "username, age and location are all required"}
	}
	if message == "" {
		return &ValidationError{Reason: "message must not be empty"}
	}

	// The sender keeps (or gets) a palette color before the message goes out
	c.mu.Lock()
	profile.ColorClass = c.colorForLocked(profile.Username)
	c.mu.Unlock()
	c.store.SaveProfile(profile)

	if err := c.client.AddComment(ctx, profile.Username, profile.Age, profile.Location, message); err != nil {
		log.Errorf("Error sending chat message: %v", err)
		return err
	}

	_, err := c.Refresh(ctx, true)
	return err
}

// SetProfile assigns the username its palette color and persists the
// profile through the gateway (which drops incomplete profiles).
func (c *Controller) SetProfile(profile storage.UserProfile) storage.UserProfile {
	if profile.Username != "" {
		c.mu.Lock()
		profile.ColorClass = c.colorForLocked(profile.Username)
		c.mu.Unlock()
	}
	c.store.SaveProfile(profile)
	return profile
}

// ColorFor returns the palette color assigned to a username, assigning the
// next free one on first sight. Colors are never reassigned once handed out.
func (c *Controller) ColorFor(username string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.colorForLocked(username)
}

func (c *Controller) colorForLocked(username string) string {
	if username == "" {
		return ""
	}
	if color, ok := c.colors[username]; ok {
		return color
	}
	color := UserColors[len(c.colors)%len(UserColors)]
	c.colors[username] = color
	return color
}

func dedupKey(msg backend.ChatMessage) string {
	return fmt.Sprintf(
		"%d-%s-%s-%s-%s",
		msg.Timestamp.UnixMilli(),
		msg.Username,
		msg.Age,
		msg.Location,
		msg.Message,
	)
}
