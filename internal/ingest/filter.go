package ingest

import (
	"sync"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/metrics"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

const (
	// maxPlausibleSpeedKmh скорость выше отбрасывается как телепортация
	maxPlausibleSpeedKmh = 600.0
	// maxDistanceJumpKm прыжок больше отбрасывается независимо от скорости
	maxDistanceJumpKm = 100.0
	// staleAfter запись об устройстве забывается после простоя
	staleAfter = 30 * time.Minute
)

// PlausibilityFilter отбрасывает физически невозможные позиции до
// передачи в расчет. Держит последнюю принятую позицию каждого
// устройства и сверяет подразумеваемую скорость перехода.
type PlausibilityFilter struct {
	mu     sync.Mutex
	last   map[string]*models.Position
	logger *utils.Logger
}

// NewPlausibilityFilter создает фильтр правдоподобия позиций
func NewPlausibilityFilter(logger *utils.Logger) *PlausibilityFilter {
	f := &PlausibilityFilter{
		last:   make(map[string]*models.Position),
		logger: logger,
	}
	go f.cleanup()
	return f
}

// Accept проверяет позицию, возвращает false для отбрасываемых
func (f *PlausibilityFilter) Accept(position *models.Position) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, seen := f.last[position.DeviceID]
	if !seen {
		f.last[position.DeviceID] = position
		return true
	}

	elapsed := position.Time.Sub(prev.Time)
	if elapsed <= 0 {
		// Дубликаты и перестановки времени разруливает очередь
		// воркера, здесь пропускаем без обновления якоря
		return true
	}

	distance := prev.Point().DistanceTo(position.Point())

	if distance > maxDistanceJumpKm {
		f.drop(position, prev, distance, elapsed, "distance_jump")
		return false
	}

	speed := distance / elapsed.Hours()
	if speed > maxPlausibleSpeedKmh {
		f.drop(position, prev, distance, elapsed, "implausible_speed")
		return false
	}

	f.last[position.DeviceID] = position
	return true
}

// drop логирует отбрасывание и обновляет метрики
func (f *PlausibilityFilter) drop(position, prev *models.Position, distance float64, elapsed time.Duration, reason string) {
	metrics.PositionsDropped.WithLabelValues(reason).Inc()

	f.logger.WithFields(map[string]interface{}{
		"device_id":     position.DeviceID,
		"distance_km":   distance,
		"time_diff_sec": elapsed.Seconds(),
		"lat":           position.Latitude,
		"lon":           position.Longitude,
		"reason":        reason,
	}).Warn("Position dropped by plausibility filter")
}

// cleanup периодически забывает устройства без свежих позиций
func (f *PlausibilityFilter) cleanup() {
	ticker := time.NewTicker(staleAfter)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-staleAfter)

		f.mu.Lock()
		for deviceID, position := range f.last {
			if position.ProcessorReceivedTime.Before(cutoff) {
				delete(f.last, deviceID)
			}
		}
		f.mu.Unlock()
	}
}
