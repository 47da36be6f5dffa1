package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvesh/airsportslivetracking/internal/models"
)

// straight north-bound route with a sharp turn back at TP2
func testRoute() *models.Route {
	return &models.Route{
		ID:   1,
		Name: "test route",
		Waypoints: []models.Waypoint{
			{Name: "SP", Type: models.WaypointTypeStartingPoint, Latitude: 60.00, Longitude: 10.0, Width: 1, TimeCheck: true, GateCheck: true},
			{Name: "TP1", Type: models.WaypointTypeTurningPoint, Latitude: 60.05, Longitude: 10.0, Width: 1, TimeCheck: true, GateCheck: true},
			{Name: "TP2", Type: models.WaypointTypeTurningPoint, Latitude: 60.10, Longitude: 10.0, Width: 1, TimeCheck: true, GateCheck: true},
			{Name: "FP", Type: models.WaypointTypeFinishPoint, Latitude: 60.05, Longitude: 10.05, Width: 1, TimeCheck: true, GateCheck: true},
		},
	}
}

func TestCalculateLegs(t *testing.T) {
	route := testRoute()
	scorecard := models.NewFAIPrecision2020()
	require.NoError(t, CalculateLegs(route, scorecard))

	t.Run("bearings and distances", func(t *testing.T) {
		tp1 := route.WaypointByName("TP1")
		assert.InDelta(t, 0, tp1.BearingPrevious, 0.1)
		assert.InDelta(t, 5562, tp1.DistancePrevious, 20) // 0.05 deg of latitude
		assert.NotZero(t, tp1.BearingNext)
	})

	t.Run("gate lines built", func(t *testing.T) {
		for i := range route.Waypoints {
			w := &route.Waypoints[i]
			require.Len(t, w.GateLine, 2, w.Name)
			require.Len(t, w.GateLineExtended, 2, w.Name)
			require.Len(t, w.GateLineInfinite, 2, w.Name)
			assert.InDelta(t, w.Width*MetersPerNauticalMile,
				DistanceMeters(w.GateLine[0], w.GateLine[1]), 10, w.Name)
			assert.InDelta(t, infiniteGateLengthNM*MetersPerNauticalMile,
				DistanceMeters(w.GateLineInfinite[0], w.GateLineInfinite[1]), 100, w.Name)
		}
	})

	t.Run("extended width from scorecard", func(t *testing.T) {
		tp1 := route.WaypointByName("TP1")
		assert.InDelta(t, 6*MetersPerNauticalMile,
			DistanceMeters(tp1.GateLineExtended[0], tp1.GateLineExtended[1]), 20)
	})

	t.Run("procedure turn detected", func(t *testing.T) {
		// TP2 turns back by more than 90 degrees
		assert.True(t, route.WaypointByName("TP2").IsProcedureTurn)
		assert.False(t, route.WaypointByName("TP1").IsProcedureTurn)
	})

	t.Run("proximity radii", func(t *testing.T) {
		for i := range route.Waypoints {
			w := &route.Waypoints[i]
			assert.Greater(t, w.InsideDistance, 0.0, w.Name)
			assert.Equal(t, w.InsideDistance+2000, w.OutsideDistance, w.Name)
		}
	})
}

func TestCalculateLegsRejectsBadRoutes(t *testing.T) {
	scorecard := models.NewFAIPrecision2020()

	t.Run("too few waypoints", func(t *testing.T) {
		route := &models.Route{Waypoints: []models.Waypoint{{Name: "SP", Latitude: 60, Longitude: 10, Width: 1}}}
		assert.Error(t, CalculateLegs(route, scorecard))
	})

	t.Run("zero width gate", func(t *testing.T) {
		route := testRoute()
		route.Waypoints[1].Width = 0
		assert.Error(t, CalculateLegs(route, scorecard))
	})

	t.Run("duplicate names", func(t *testing.T) {
		route := testRoute()
		route.Waypoints[2].Name = "TP1"
		assert.Error(t, CalculateLegs(route, scorecard))
	})
}

func TestCorridor(t *testing.T) {
	route := testRoute()
	route.CorridorWidth = 0.5
	scorecard := models.NewFAIANR2017()
	require.NoError(t, CalculateLegs(route, scorecard))

	t.Run("corridor lines built", func(t *testing.T) {
		for i := 0; i < len(route.Waypoints)-1; i++ {
			w := &route.Waypoints[i]
			require.Len(t, w.LeftCorridorLine, 2, w.Name)
			require.Len(t, w.RightCorridorLine, 2, w.Name)
		}
	})

	pr := NewProjector(60.0)

	t.Run("point on center line is inside", func(t *testing.T) {
		inside, distance := InsideCorridor(pr, route, models.GeoPoint{Latitude: 60.02, Longitude: 10.0})
		assert.True(t, inside)
		assert.InDelta(t, 0, distance, 5)
	})

	t.Run("point far out is outside", func(t *testing.T) {
		inside, _ := InsideCorridor(pr, route, models.GeoPoint{Latitude: 60.02, Longitude: 10.2})
		assert.False(t, inside)
	})
}
