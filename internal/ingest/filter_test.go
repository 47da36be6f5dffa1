package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

func filterPosition(deviceID string, t time.Time, lat, lon float64) *models.Position {
	return &models.Position{
		DeviceID:              deviceID,
		Time:                  t,
		Latitude:              lat,
		Longitude:             lon,
		ProcessorReceivedTime: time.Now(),
	}
}

func TestPlausibilityFilter(t *testing.T) {
	logger := utils.NewLogger("error", "text")
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("accepts normal flight progression", func(t *testing.T) {
		f := NewPlausibilityFilter(logger)

		// Около 130 км/ч вдоль параллели
		assert.True(t, f.Accept(filterPosition("dev-1", base, 55.0, 10.0)))
		assert.True(t, f.Accept(filterPosition("dev-1", base.Add(10*time.Second), 55.0, 10.0057)))
		assert.True(t, f.Accept(filterPosition("dev-1", base.Add(20*time.Second), 55.0, 10.0114)))
	})

	t.Run("drops teleportation jump", func(t *testing.T) {
		f := NewPlausibilityFilter(logger)

		assert.True(t, f.Accept(filterPosition("dev-1", base, 55.0, 10.0)))
		// Прыжок на сотни километров за 10 секунд
		assert.False(t, f.Accept(filterPosition("dev-1", base.Add(10*time.Second), 57.0, 14.0)))
		// Следующая нормальная позиция проходит от старого якоря
		assert.True(t, f.Accept(filterPosition("dev-1", base.Add(20*time.Second), 55.0, 10.01)))
	})

	t.Run("drops implausible speed on short hop", func(t *testing.T) {
		f := NewPlausibilityFilter(logger)

		assert.True(t, f.Accept(filterPosition("dev-1", base, 55.0, 10.0)))
		// Примерно 6.4 км за 10 секунд, больше 2000 км/ч
		assert.False(t, f.Accept(filterPosition("dev-1", base.Add(10*time.Second), 55.0, 10.1)))
	})

	t.Run("devices are independent", func(t *testing.T) {
		f := NewPlausibilityFilter(logger)

		assert.True(t, f.Accept(filterPosition("dev-1", base, 55.0, 10.0)))
		// Другое устройство в другой части мира, первая позиция проходит
		assert.True(t, f.Accept(filterPosition("dev-2", base.Add(time.Second), -30.0, 140.0)))
	})

	t.Run("out of order position passes without moving anchor", func(t *testing.T) {
		f := NewPlausibilityFilter(logger)

		assert.True(t, f.Accept(filterPosition("dev-1", base, 55.0, 10.0)))
		assert.True(t, f.Accept(filterPosition("dev-1", base.Add(-5*time.Second), 55.0, 10.001)))
		// Якорь остался на первой позиции
		assert.True(t, f.Accept(filterPosition("dev-1", base.Add(10*time.Second), 55.0, 10.005)))
	})
}
