package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"08:00", "08:00"},
		{"8:05", "08:05"},
		{"13:45:30", "13:45"},
		{"2024-09-02T08:30:00Z", "08:30"},
		{"2024-09-02T08:30:00.000Z", "08:30"},
		{"2024-09-02T17:15:00+02:00", "17:15"},
		{"1970-01-01T23:59", "23:59"},
		{"noon", ""},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.raw)
		if tc.want == "" {
			assert.ErrorIs(t, err, ErrInvalidTimeOfDay, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got.String(), tc.raw)
	}

	_, err := ParseTimeOfDay("")
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
	_, err = ParseTimeOfDay("25:00")
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
}

func TestTimeOfDayJSON(t *testing.T) {
	var payload struct {
		Start TimeOfDay `json:"start"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2024-01-01T09:10:00Z"}`), &payload))
	assert.Equal(t, TimeOfDay(9*60+10), payload.Start)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"09:10"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"start":910}`), &payload))
}

func TestTimeOfDayScanAndValue(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan([]byte("07:45:00")))
	assert.Equal(t, "07:45", tod.String())

	require.NoError(t, tod.Scan("10:00:00"))
	assert.Equal(t, 10, tod.Hour())
	assert.Equal(t, 0, tod.Minute())

	require.NoError(t, tod.Scan(time.Date(0, 1, 1, 14, 20, 0, 0, time.UTC)))
	assert.Equal(t, "14:20", tod.String())

	assert.Error(t, tod.Scan(nil))
	assert.Error(t, tod.Scan(42))

	v, err := MustTimeOfDay("06:05").Value()
	require.NoError(t, err)
	assert.Equal(t, "06:05:00", v)
}
