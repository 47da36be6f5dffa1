package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
)

// гейт на широте 60.05 со створом восток-запад, маршрут идет на север
func northboundGate(t *testing.T) *Gate {
	t.Helper()
	route := &models.Route{
		ID: 1,
		Waypoints: []models.Waypoint{
			{Name: "SP", Type: models.WaypointTypeStartingPoint, Latitude: 60.00, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
			{Name: "TP1", Type: models.WaypointTypeTurningPoint, Latitude: 60.05, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
			{Name: "FP", Type: models.WaypointTypeFinishPoint, Latitude: 60.10, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
		},
	}
	require.NoError(t, geo.CalculateLegs(route, models.NewFAIPrecision2020()))
	return NewGate(route.WaypointByName("TP1"), time.Time{})
}

func positionAt(t time.Time, lat, lon float64) *models.Position {
	return &models.Position{DeviceID: "t1", Time: t, Latitude: lat, Longitude: lon}
}

func TestGateCrossing(t *testing.T) {
	gate := northboundGate(t)
	pr := geo.NewProjector(60.0)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("interpolated crossing time", func(t *testing.T) {
		// сегмент из трех позиций пересекает створ ровно посередине
		track := []*models.Position{
			positionAt(base, 60.048, 10.0),
			positionAt(base.Add(1*time.Second), 60.049, 10.0),
			positionAt(base.Add(2*time.Second), 60.052, 10.0),
		}
		crossing := gate.CheckCrossing(pr, track)
		require.NotNil(t, crossing)
		// пересечение на полпути сегмента в 2 секунды, половина вверх
		assert.Equal(t, base.Add(1*time.Second), *crossing)
	})

	t.Run("no crossing before the gate", func(t *testing.T) {
		track := []*models.Position{
			positionAt(base, 60.040, 10.0),
			positionAt(base.Add(1*time.Second), 60.041, 10.0),
			positionAt(base.Add(2*time.Second), 60.042, 10.0),
		}
		assert.Nil(t, gate.CheckCrossing(pr, track))
	})

	t.Run("wrong direction rejected", func(t *testing.T) {
		// пересечение с юга против направления маршрута
		track := []*models.Position{
			positionAt(base, 60.052, 10.0),
			positionAt(base.Add(1*time.Second), 60.050, 10.0),
			positionAt(base.Add(2*time.Second), 60.048, 10.0),
		}
		assert.Nil(t, gate.CheckCrossing(pr, track))
	})

	t.Run("reversed check accepts backwards crossing", func(t *testing.T) {
		track := []*models.Position{
			positionAt(base, 60.052, 10.0),
			positionAt(base.Add(1*time.Second), 60.050, 10.0),
			positionAt(base.Add(2*time.Second), 60.048, 10.0),
		}
		assert.NotNil(t, gate.CheckCrossingReversed(pr, track))
	})

	t.Run("short track", func(t *testing.T) {
		track := []*models.Position{
			positionAt(base, 60.048, 10.0),
			positionAt(base.Add(1*time.Second), 60.052, 10.0),
		}
		assert.Nil(t, gate.CheckCrossing(pr, track))
	})

	t.Run("stationary track", func(t *testing.T) {
		track := []*models.Position{
			positionAt(base, 60.05, 10.0),
			positionAt(base.Add(1*time.Second), 60.05, 10.0),
			positionAt(base.Add(2*time.Second), 60.05, 10.0),
		}
		assert.Nil(t, gate.CheckCrossing(pr, track))
	})

	t.Run("crossing wide of nominal line hits extended only", func(t *testing.T) {
		// 2 км восточнее гейта: мимо номинальной мили, но внутри 6 NM
		track := []*models.Position{
			positionAt(base, 60.048, 10.036),
			positionAt(base.Add(1*time.Second), 60.049, 10.036),
			positionAt(base.Add(2*time.Second), 60.052, 10.036),
		}
		assert.NotNil(t, gate.CheckCrossing(pr, track))
		assert.Nil(t, gate.CheckCrossingNominal(pr, track))
	})
}

func TestRoundSeconds(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 10, 0, time.UTC)
	assert.Equal(t, base, roundSeconds(base.Add(200*time.Millisecond)))
	assert.Equal(t, base.Add(time.Second), roundSeconds(base.Add(500*time.Millisecond)))
	assert.Equal(t, base.Add(time.Second), roundSeconds(base.Add(800*time.Millisecond)))
}

func TestGateHasBeenPassed(t *testing.T) {
	gate := northboundGate(t)
	assert.False(t, gate.HasBeenPassed())

	gate.PassingTime = time.Now()
	assert.True(t, gate.HasBeenPassed())

	gate.PassingTime = time.Time{}
	gate.Missed = true
	assert.True(t, gate.HasBeenPassed())
}
