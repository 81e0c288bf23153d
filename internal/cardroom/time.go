package cardroom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// HubLayout is the timestamp layout the hub uses on the wire.
const HubLayout = "2006-01-02 15:04:05"

// Time is a timestamp encoded in HubLayout. The zero value encodes as null.
// Decoding also accepts RFC 3339 and null.
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// ParseTime parses s in HubLayout, falling back to RFC 3339.
func ParseTime(s string) (Time, error) {
	if s == "" {
		return Time{}, nil
	}
	if t, err := time.ParseInLocation(HubLayout, s, time.Local); err == nil {
		return Time{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Time{}, fmt.Errorf("cardroom: invalid timestamp %q", s)
	}
	return Time{Time: t}, nil
}

// String formats t in HubLayout, or "" when zero.
func (t Time) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(HubLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cardroom: timestamp must be a string: %w", err)
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
