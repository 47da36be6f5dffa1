package models

import (
	"fmt"
	"math"
	"time"
)

// Состояния трекинга участника
const (
	TrackingStateWaiting  = "Waiting..."
	TrackingStateTracking = "Tracking"
	TrackingStateFinished = "Finished"
)

// Competitor представляет участника задачи со всеми параметрами,
// нужными для расчета плановых времен прохождения гейтов
type Competitor struct {
	ID            int      `json:"id"`
	TaskID        int      `json:"task_id"`
	Name          string   `json:"name"`
	ContestNumber string   `json:"contest_number"`
	// Трекеры участника. Позиции нескольких устройств считаются
	// одним потоком, при дозагрузке берется самый длинный трек.
	TrackerDeviceIDs []string `json:"tracker_device_ids"`

	// TrackerStartTime начало окна приема позиций,
	// FinishedByTime конец окна
	TrackerStartTime time.Time `json:"tracker_start_time"`
	TakeoffTime      time.Time `json:"takeoff_time"`
	FinishedByTime   time.Time `json:"finished_by_time"`

	MinutesToStartingPoint float64 `json:"minutes_to_starting_point"`
	AirSpeed               float64 `json:"air_speed"`      // узлы
	WindSpeed              float64 `json:"wind_speed"`     // узлы
	WindDirection          float64 `json:"wind_direction"` // градусы, откуда дует

	RouteID       int    `json:"route_id"`
	ScorecardName string `json:"scorecard_name"`
}

// Validate проверяет корректность участника
func (c *Competitor) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("competitor id is required")
	}
	if len(c.TrackerDeviceIDs) == 0 {
		return fmt.Errorf("competitor %d has no trackers", c.ID)
	}
	if c.AirSpeed <= 0 {
		return fmt.Errorf("competitor %d air speed must be positive", c.ID)
	}
	if !c.FinishedByTime.After(c.TrackerStartTime) {
		return fmt.Errorf("competitor %d tracking window is empty", c.ID)
	}
	return nil
}

// AcceptsPosition сообщает, попадает ли время позиции
// в окно трекинга участника
func (c *Competitor) AcceptsPosition(t time.Time) bool {
	return !t.Before(c.TrackerStartTime) && !t.After(c.FinishedByTime)
}

// HasDevice проверяет принадлежность устройства участнику
func (c *Competitor) HasDevice(deviceID string) bool {
	for _, id := range c.TrackerDeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// GroundSpeed вычисляет путевую скорость в узлах для плеча
// с заданным курсом по треугольнику ветра
func (c *Competitor) GroundSpeed(bearing float64) float64 {
	if c.WindSpeed == 0 {
		return c.AirSpeed
	}
	rad := (c.WindDirection - bearing) * math.Pi / 180
	cross := c.WindSpeed * math.Sin(rad)
	if math.Abs(cross) >= c.AirSpeed {
		// ветер сильнее воздушной скорости, плечо непроходимо
		return 0
	}
	return math.Sqrt(c.AirSpeed*c.AirSpeed-cross*cross) - c.WindSpeed*math.Cos(rad)
}

// GateTimes вычисляет плановые времена прохождения каждого гейта.
// Первый гейт планируется на время взлета плюс время до старта,
// далее время накапливается по длине плеча и путевой скорости.
// Разворот по процедуре добавляет минуту на гейте разворота.
func (c *Competitor) GateTimes(route *Route) map[string]time.Time {
	times := make(map[string]time.Time, len(route.Waypoints))
	if len(route.Waypoints) == 0 {
		return times
	}

	crossing := c.TakeoffTime.Add(time.Duration(c.MinutesToStartingPoint * float64(time.Minute)))
	times[route.Waypoints[0].Name] = crossing

	for i := 1; i < len(route.Waypoints); i++ {
		w := &route.Waypoints[i]
		gs := c.GroundSpeed(w.BearingPrevious)
		crossing = crossing.Add(ExpectedGateTime(w.DistancePrevious, gs))
		if route.UseProcedureTurns && route.Waypoints[i-1].IsProcedureTurn {
			crossing = crossing.Add(time.Minute)
		}
		times[w.Name] = crossing
	}
	return times
}
