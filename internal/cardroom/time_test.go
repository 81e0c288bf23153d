package cardroom

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTime_JSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "hub layout", input: `"2026-03-01 19:30:00"`, want: time.Date(2026, 3, 1, 19, 30, 0, 0, time.Local)},
		{name: "rfc3339", input: `"2026-03-01T19:30:00Z"`, want: time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)},
		{name: "null", input: `null`},
		{name: "empty string", input: `""`},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
		{name: "number", input: `12`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Time
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !got.Equal(tt.want) {
				t.Errorf("Unmarshal() = %v, want %v", got.Time, tt.want)
			}
		})
	}
}

func TestTime_MarshalJSON(t *testing.T) {
	ts := NewTime(time.Date(2026, 3, 1, 8, 5, 9, 0, time.Local))
	data, err := json.Marshal(struct {
		At    Time `json:"at"`
		Empty Time `json:"empty"`
	}{At: ts})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"at":"2026-03-01 08:05:09","empty":null}`; string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
