package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCompetitor() *Competitor {
	return &Competitor{
		ID:               1,
		TaskID:           1,
		Name:             "Test Pilot",
		ContestNumber:    "11",
		TrackerDeviceIDs: []string{"tracker-1", "tracker-2"},
		TrackerStartTime: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		TakeoffTime:      time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		FinishedByTime:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		AirSpeed:         60,
		RouteID:          1,
		ScorecardName:    ScorecardFAIPrecision2020,
	}
}

func TestCompetitor_Validate(t *testing.T) {
	t.Run("valid competitor", func(t *testing.T) {
		assert.NoError(t, validCompetitor().Validate())
	})

	t.Run("missing trackers", func(t *testing.T) {
		c := validCompetitor()
		c.TrackerDeviceIDs = nil
		assert.Error(t, c.Validate())
	})

	t.Run("non positive air speed", func(t *testing.T) {
		c := validCompetitor()
		c.AirSpeed = 0
		assert.Error(t, c.Validate())
	})

	t.Run("empty tracking window", func(t *testing.T) {
		c := validCompetitor()
		c.FinishedByTime = c.TrackerStartTime
		assert.Error(t, c.Validate())
	})
}

func TestCompetitor_AcceptsPosition(t *testing.T) {
	c := validCompetitor()

	// Границы окна включительно
	assert.True(t, c.AcceptsPosition(c.TrackerStartTime))
	assert.True(t, c.AcceptsPosition(c.FinishedByTime))
	assert.True(t, c.AcceptsPosition(c.TakeoffTime))

	assert.False(t, c.AcceptsPosition(c.TrackerStartTime.Add(-time.Second)))
	assert.False(t, c.AcceptsPosition(c.FinishedByTime.Add(time.Second)))
}

func TestCompetitor_HasDevice(t *testing.T) {
	c := validCompetitor()

	assert.True(t, c.HasDevice("tracker-1"))
	assert.True(t, c.HasDevice("tracker-2"))
	assert.False(t, c.HasDevice("tracker-3"))
}

func TestCompetitor_GroundSpeed(t *testing.T) {
	t.Run("no wind returns air speed", func(t *testing.T) {
		c := validCompetitor()
		assert.Equal(t, 60.0, c.GroundSpeed(90))
	})

	t.Run("headwind slows the leg", func(t *testing.T) {
		c := validCompetitor()
		c.WindSpeed = 10
		c.WindDirection = 0

		// Курс на север против северного ветра
		assert.InDelta(t, 50.0, c.GroundSpeed(0), 0.001)
	})

	t.Run("tailwind speeds the leg up", func(t *testing.T) {
		c := validCompetitor()
		c.WindSpeed = 10
		c.WindDirection = 180

		assert.InDelta(t, 70.0, c.GroundSpeed(0), 0.001)
	})

	t.Run("pure crosswind reduces ground speed", func(t *testing.T) {
		c := validCompetitor()
		c.WindSpeed = 10
		c.WindDirection = 0

		// Курс на восток, ветер с севера: компенсация сноса
		gs := c.GroundSpeed(90)
		assert.InDelta(t, 59.161, gs, 0.01)
	})

	t.Run("wind stronger than air speed is impassable", func(t *testing.T) {
		c := validCompetitor()
		c.AirSpeed = 10
		c.WindSpeed = 30
		c.WindDirection = 0

		assert.Equal(t, 0.0, c.GroundSpeed(90))
	})
}

func TestCompetitor_GateTimes(t *testing.T) {
	c := validCompetitor()
	c.MinutesToStartingPoint = 5

	route := &Route{
		ID:   1,
		Name: "test route",
		Waypoints: []Waypoint{
			{Name: "SP", Type: WaypointTypeStartingPoint},
			// 6 NM при 60 узлах это ровно 6 минут
			{Name: "TP1", Type: WaypointTypeTurningPoint, DistancePrevious: 6 * 1852, BearingPrevious: 0},
			{Name: "FP", Type: WaypointTypeFinishPoint, DistancePrevious: 3 * 1852, BearingPrevious: 0},
		},
	}

	t.Run("accumulates leg times from takeoff", func(t *testing.T) {
		times := c.GateTimes(route)
		require.Len(t, times, 3)

		assert.Equal(t, time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC), times["SP"])
		assert.Equal(t, time.Date(2024, 6, 1, 10, 11, 0, 0, time.UTC), times["TP1"])
		assert.Equal(t, time.Date(2024, 6, 1, 10, 14, 0, 0, time.UTC), times["FP"])
	})

	t.Run("procedure turn adds a minute", func(t *testing.T) {
		turnRoute := &Route{
			ID:                1,
			UseProcedureTurns: true,
			Waypoints: []Waypoint{
				{Name: "SP", Type: WaypointTypeStartingPoint},
				{Name: "TP1", Type: WaypointTypeTurningPoint, DistancePrevious: 6 * 1852, IsProcedureTurn: true},
				{Name: "FP", Type: WaypointTypeFinishPoint, DistancePrevious: 3 * 1852},
			},
		}

		times := c.GateTimes(turnRoute)
		assert.Equal(t, time.Date(2024, 6, 1, 10, 11, 0, 0, time.UTC), times["TP1"])
		// Минута разворота добавляется после гейта с процедурой
		assert.Equal(t, time.Date(2024, 6, 1, 10, 15, 0, 0, time.UTC), times["FP"])
	})

	t.Run("empty route gives no times", func(t *testing.T) {
		assert.Empty(t, c.GateTimes(&Route{}))
	})
}
