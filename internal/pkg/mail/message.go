package mail

import (
	"strconv"
	"strings"
	"time"
)

// MessageRef is one search hit; only the id is needed to fetch the message.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type PartBody struct {
	Size int    `json:"size"`
	Data string `json:"data"` // base64url
}

// Part is a node of the MIME tree. Leaves carry Body.Data, containers carry Parts.
type Part struct {
	PartID   string   `json:"partId"`
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Headers  []Header `json:"headers"`
	Body     PartBody `json:"body"`
	Parts    []Part   `json:"parts"`
}

// RawMessage mirrors the Gmail "format=full" message resource.
type RawMessage struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	InternalDate string `json:"internalDate"` // epoch millis as a string
	Snippet      string `json:"snippet"`
	Payload      Part   `json:"payload"`
}

// Header returns the first header matching name, case-insensitively.
func (m *RawMessage) Header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (m *RawMessage) Subject() string {
	return m.Header("Subject")
}

// ReceivedAt parses the Date header, falling back to InternalDate.
// The zero time is returned when neither is usable.
func (m *RawMessage) ReceivedAt() time.Time {
	if t, err := parseDate(m.Header("Date")); err == nil {
		return t
	}

	if ms, err := strconv.ParseInt(m.InternalDate, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}

	return time.Time{}
}
