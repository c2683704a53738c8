package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	for _, et := range AllEventTypes {
		got, err := ParseEventType(string(et))
		require.NoError(t, err)
		assert.Equal(t, et, got)
	}

	_, err := ParseEventType("crying")
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestEventType_Categories(t *testing.T) {
	assert.True(t, EventSide.IsBadPosition())
	assert.True(t, EventProne.IsBadPosition())
	assert.False(t, EventSupine.IsBadPosition())
	assert.True(t, EventCrying.IsCrying())
	assert.False(t, EventNoCrying.IsCrying())

	for _, et := range []EventType{EventSupine, EventBlanket, EventNoBlanket, EventNoCrying} {
		assert.False(t, et.IsBadPosition() || et.IsCrying(), "%s is status-only", et)
	}
}

func TestDecodeEvent_Aliases(t *testing.T) {
	doc := map[string]any{
		"id":       "evt-1",
		"deviceId": "dev-1",
		"type":     "Prone",
		"time":     "2026-10-19T10:00:00Z",
	}
	ev, err := DecodeEvent(doc)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", ev.DeviceID)
	assert.Equal(t, EventProne, ev.Type)
	assert.True(t, ev.Time.Equal(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)))
}

func TestDecodeEvent_TimestampForms(t *testing.T) {
	want := time.Unix(1760000000, 0)

	cases := map[string]any{
		"seconds":      float64(1760000000),
		"millis":       float64(1760000000000),
		"string":       "1760000000",
		"json.Number":  json.Number("1760000000"),
		"firestore":    map[string]any{"seconds": float64(1760000000), "nanoseconds": float64(0)},
		"firestore_ts": map[string]any{"_seconds": float64(1760000000)},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := DecodeEvent(map[string]any{
				"id": "e", "device_id": "d", "type": "Crying", "timestamp": raw,
			})
			require.NoError(t, err)
			assert.True(t, ev.Time.Equal(want), "got %v", ev.Time)
		})
	}
}

func TestDecodeEvent_Rejects(t *testing.T) {
	_, err := DecodeEvent(map[string]any{"id": "e", "device_id": "d", "type": "Laughing", "time": float64(1760000000)})
	assert.ErrorIs(t, err, ErrUnknownEventType)

	_, err = DecodeEvent(map[string]any{"id": "e", "type": "Crying", "time": float64(1760000000)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = DecodeEvent(map[string]any{"id": "e", "device_id": "d", "type": "Crying"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = DecodeEvent(map[string]any{"id": "e", "device_id": "d", "type": "Crying", "time": true})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDecodeConnection(t *testing.T) {
	c, err := DecodeConnection(map[string]any{"userId": "u1", "deviceId": "d1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)

	_, err = DecodeConnection(map[string]any{"userId": "u1"})
	assert.Error(t, err)
}

func TestFilterWindowAndCategory(t *testing.T) {
	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "1", DeviceID: "d", Type: EventSide, Time: base.Add(-time.Minute)},
		{ID: "2", DeviceID: "d", Type: EventProne, Time: base},
		{ID: "3", DeviceID: "d", Type: EventCrying, Time: base.Add(time.Hour)},
		{ID: "4", DeviceID: "d", Type: EventSupine, Time: base.Add(2 * time.Hour)},
	}

	inDay := FilterWindow(events, base, base.Add(24*time.Hour))
	assert.Len(t, inDay, 3)

	bad := FilterCategory(inDay, CategoryBadPosition)
	require.Len(t, bad, 1)
	assert.Equal(t, "2", bad[0].ID)
	assert.Len(t, FilterCategory(events, CategoryCrying), 1)
}
