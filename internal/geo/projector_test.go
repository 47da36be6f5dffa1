package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvesh/airsportslivetracking/internal/models"
)

func TestProjectorIntersect(t *testing.T) {
	pr := NewProjector(60.0)

	t.Run("crossing segments", func(t *testing.T) {
		// Track segment going north through a gate line going east
		p := pr.Intersect(
			models.GeoPoint{Latitude: 59.999, Longitude: 10.0},
			models.GeoPoint{Latitude: 60.001, Longitude: 10.0},
			models.GeoPoint{Latitude: 60.0, Longitude: 9.999},
			models.GeoPoint{Latitude: 60.0, Longitude: 10.001},
		)
		require.NotNil(t, p)
		assert.InDelta(t, 60.0, p.Latitude, 1e-9)
		assert.InDelta(t, 10.0, p.Longitude, 1e-9)
	})

	t.Run("non-crossing segments", func(t *testing.T) {
		p := pr.Intersect(
			models.GeoPoint{Latitude: 59.999, Longitude: 10.0},
			models.GeoPoint{Latitude: 60.001, Longitude: 10.0},
			models.GeoPoint{Latitude: 60.0, Longitude: 10.002},
			models.GeoPoint{Latitude: 60.0, Longitude: 10.004},
		)
		assert.Nil(t, p)
	})

	t.Run("parallel segments", func(t *testing.T) {
		p := pr.Intersect(
			models.GeoPoint{Latitude: 59.999, Longitude: 10.0},
			models.GeoPoint{Latitude: 60.001, Longitude: 10.0},
			models.GeoPoint{Latitude: 59.999, Longitude: 10.001},
			models.GeoPoint{Latitude: 60.001, Longitude: 10.001},
		)
		assert.Nil(t, p)
	})

	t.Run("degenerate segment", func(t *testing.T) {
		p := pr.Intersect(
			models.GeoPoint{Latitude: 60.0, Longitude: 10.0},
			models.GeoPoint{Latitude: 60.0, Longitude: 10.0},
			models.GeoPoint{Latitude: 60.0, Longitude: 9.999},
			models.GeoPoint{Latitude: 60.0, Longitude: 10.001},
		)
		assert.Nil(t, p)
	})
}

func TestBearing(t *testing.T) {
	t.Run("due north", func(t *testing.T) {
		b := Bearing(
			models.GeoPoint{Latitude: 60.0, Longitude: 10.0},
			models.GeoPoint{Latitude: 60.1, Longitude: 10.0},
		)
		assert.InDelta(t, 0, b, 0.01)
	})

	t.Run("due east", func(t *testing.T) {
		b := Bearing(
			models.GeoPoint{Latitude: 0, Longitude: 10.0},
			models.GeoPoint{Latitude: 0, Longitude: 10.1},
		)
		assert.InDelta(t, 90, b, 0.01)
	})
}

func TestBearingDifference(t *testing.T) {
	assert.InDelta(t, 20, BearingDifference(350, 10), 1e-9)
	assert.InDelta(t, -20, BearingDifference(10, 350), 1e-9)
	assert.InDelta(t, 180, BearingDifference(0, 180), 1e-9)
	assert.InDelta(t, 0, BearingDifference(45, 45), 1e-9)
}

func TestExtendLine(t *testing.T) {
	a := models.GeoPoint{Latitude: 60.0, Longitude: 10.0}
	b := models.GeoPoint{Latitude: 60.0, Longitude: 10.02}

	t.Run("stretches around midpoint", func(t *testing.T) {
		line := ExtendLine(a, b, 10)
		require.Len(t, line, 2)
		length := DistanceMeters(line[0], line[1])
		assert.InDelta(t, 10*MetersPerNauticalMile, length, 10)

		// Midpoint stays put
		mid := FractionalPoint(line[0], line[1], 0.5)
		origMid := FractionalPoint(a, b, 0.5)
		assert.InDelta(t, origMid.Latitude, mid.Latitude, 1e-4)
		assert.InDelta(t, origMid.Longitude, mid.Longitude, 1e-4)
	})

	t.Run("non-positive length keeps line", func(t *testing.T) {
		line := ExtendLine(a, b, 0)
		assert.Equal(t, a, line[0])
		assert.Equal(t, b, line[1])
	})
}

func TestGateLine(t *testing.T) {
	center := models.GeoPoint{Latitude: 60.0, Longitude: 10.0}

	// Gate bearing north means the line runs east-west
	line := GateLine(center, 0, 1)
	require.Len(t, line, 2)
	assert.InDelta(t, MetersPerNauticalMile, DistanceMeters(line[0], line[1]), 2)
	assert.InDelta(t, 60.0, line[0].Latitude, 1e-5)
	assert.InDelta(t, 60.0, line[1].Latitude, 1e-5)
	assert.Less(t, line[0].Longitude, center.Longitude)
	assert.Greater(t, line[1].Longitude, center.Longitude)
}

func TestFractionOfSegment(t *testing.T) {
	a := models.GeoPoint{Latitude: 60.0, Longitude: 10.0}
	b := models.GeoPoint{Latitude: 60.0, Longitude: 10.1}
	mid := FractionalPoint(a, b, 0.5)
	assert.InDelta(t, 0.5, FractionOfSegment(a, b, mid), 0.01)
	assert.InDelta(t, 0, FractionOfSegment(a, b, a), 1e-9)
}

func TestDistanceToSegment(t *testing.T) {
	pr := NewProjector(60.0)
	a := models.GeoPoint{Latitude: 60.0, Longitude: 10.0}
	b := models.GeoPoint{Latitude: 60.0, Longitude: 10.1}

	t.Run("perpendicular distance", func(t *testing.T) {
		p := models.GeoPoint{Latitude: 60.01, Longitude: 10.05}
		d := pr.DistanceToSegment(p, a, b)
		assert.InDelta(t, DistanceMeters(models.GeoPoint{Latitude: 60.0, Longitude: 10.05}, p), d, 5)
	})

	t.Run("beyond endpoint clamps to endpoint", func(t *testing.T) {
		p := models.GeoPoint{Latitude: 60.0, Longitude: 10.2}
		d := pr.DistanceToSegment(p, a, b)
		assert.InDelta(t, DistanceMeters(b, p), d, 5)
	})
}
