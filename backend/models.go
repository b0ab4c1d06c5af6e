package backend

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Post is one feed entry as returned by the spreadsheet backend.
type Post struct {
	RowIndex int    `json:"rowIndex"`
	Title    string `json:"title"`
	Note     string `json:"note"`
	Tag      string `json:"tag"`
	Link     string `json:"link"`
	Type     string `json:"type"`
	Id       string `json:"id"`
	Date     string `json:"date"`
	Pin      bool   `json:"pin"`
	Like     int64  `json:"like"`
	Share    int64  `json:"share"`
}

// ChatMessage is one guestbook entry. There is no server-assigned id:
// identity is the composite of timestamp, username, age, location and
// message body.
type ChatMessage struct {
	Username  string    `json:"username"`
	Age       string    `json:"age"`
	Location  string    `json:"location"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp tolerates both RFC3339 strings and epoch-millisecond numbers.
// The backend is a spreadsheet: both shapes occur in practice.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}

	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			// Spreadsheet date cells serialize without an offset
			parsed, err = time.Parse("2006-01-02T15:04:05", raw)
		}
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	millis, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(millis)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UnixMilli())
}
