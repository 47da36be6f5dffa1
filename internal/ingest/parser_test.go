package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

func TestParser_Parse_Topic(t *testing.T) {
	logger := utils.NewLogger("info", "text")
	parser := NewParser(logger)

	payload := []byte(`{"time":"2024-06-01T10:00:00Z","latitude":60.0,"longitude":10.0,"speed":180,"course":15}`)

	tests := []struct {
		name        string
		topic       string
		expectError bool
	}{
		{
			name:        "valid topic format",
			topic:       "tracking/tracker-17/position",
			expectError: false,
		},
		{
			name:        "wrong prefix",
			topic:       "telemetry/tracker-17/position",
			expectError: true,
		},
		{
			name:        "missing parts",
			topic:       "tracking/tracker-17",
			expectError: true,
		},
		{
			name:        "wrong suffix",
			topic:       "tracking/tracker-17/status",
			expectError: true,
		},
		{
			name:        "empty device id",
			topic:       "tracking//position",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			position, err := parser.Parse(tt.topic, payload)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, position)
			} else {
				require.NoError(t, err)
				require.NotNil(t, position)
				assert.Equal(t, "tracker-17", position.DeviceID)
			}
		})
	}
}

func TestParser_Parse_Payload(t *testing.T) {
	logger := utils.NewLogger("info", "text")
	parser := NewParser(logger)

	t.Run("full payload", func(t *testing.T) {
		payload := []byte(`{
			"time": "2024-06-01T10:00:05Z",
			"latitude": 60.123,
			"longitude": 10.456,
			"altitude": 350.5,
			"speed": 185.2,
			"course": 92.4,
			"battery": 78
		}`)

		position, err := parser.Parse("tracking/tracker-1/position", payload)
		require.NoError(t, err)

		assert.Equal(t, "tracker-1", position.DeviceID)
		assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 5, 0, time.UTC), position.Time)
		assert.Equal(t, 60.123, position.Latitude)
		assert.Equal(t, 10.456, position.Longitude)
		assert.Equal(t, 350.5, position.Altitude)
		assert.Equal(t, 185.2, position.Speed)
		assert.Equal(t, 92.4, position.Course)
		assert.Equal(t, 78.0, position.Battery)
		assert.False(t, position.Interpolated)
		assert.False(t, position.ProcessorReceivedTime.IsZero())
	})

	t.Run("unix millisecond fallback", func(t *testing.T) {
		// 2024-06-01 10:00:00 UTC
		payload := []byte(`{"timestamp":1717236000000,"latitude":60.0,"longitude":10.0}`)

		position, err := parser.Parse("tracking/tracker-1/position", payload)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), position.Time)
	})

	t.Run("time string wins over timestamp", func(t *testing.T) {
		payload := []byte(`{"time":"2024-06-01T11:00:00Z","timestamp":1717236000000,"latitude":60.0,"longitude":10.0}`)

		position, err := parser.Parse("tracking/tracker-1/position", payload)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), position.Time)
	})

	t.Run("non-utc time converted", func(t *testing.T) {
		payload := []byte(`{"time":"2024-06-01T12:00:00+02:00","latitude":60.0,"longitude":10.0}`)

		position, err := parser.Parse("tracking/tracker-1/position", payload)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), position.Time)
	})

	t.Run("negative course normalized", func(t *testing.T) {
		payload := []byte(`{"time":"2024-06-01T10:00:00Z","latitude":60.0,"longitude":10.0,"course":-90}`)

		position, err := parser.Parse("tracking/tracker-1/position", payload)
		require.NoError(t, err)
		assert.Equal(t, 270.0, position.Course)
	})

	t.Run("course 360 wraps to zero", func(t *testing.T) {
		payload := []byte(`{"time":"2024-06-01T10:00:00Z","latitude":60.0,"longitude":10.0,"course":360}`)

		position, err := parser.Parse("tracking/tracker-1/position", payload)
		require.NoError(t, err)
		assert.Equal(t, 0.0, position.Course)
	})
}

func TestParser_Parse_Invalid(t *testing.T) {
	logger := utils.NewLogger("info", "text")
	parser := NewParser(logger)

	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "broken json",
			payload: `{"latitude": 60.0,`,
		},
		{
			name:    "no time at all",
			payload: `{"latitude":60.0,"longitude":10.0}`,
		},
		{
			name:    "bad time format",
			payload: `{"time":"01.06.2024 10:00","latitude":60.0,"longitude":10.0}`,
		},
		{
			name:    "latitude out of range",
			payload: `{"time":"2024-06-01T10:00:00Z","latitude":91.0,"longitude":10.0}`,
		},
		{
			name:    "longitude out of range",
			payload: `{"time":"2024-06-01T10:00:00Z","latitude":60.0,"longitude":181.0}`,
		},
		{
			name:    "negative speed",
			payload: `{"time":"2024-06-01T10:00:00Z","latitude":60.0,"longitude":10.0,"speed":-5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			position, err := parser.Parse("tracking/tracker-1/position", []byte(tt.payload))
			assert.Error(t, err)
			assert.Nil(t, position)
		})
	}
}
