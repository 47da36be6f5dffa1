package models

import (
	"fmt"
	"time"
)

// Типы путевых точек маршрута
const (
	WaypointTypeStartingPoint       = "sp"
	WaypointTypeFinishPoint         = "fp"
	WaypointTypeTurningPoint        = "tp"
	WaypointTypeSecret              = "secret"
	WaypointTypeTakeoffGate         = "to"
	WaypointTypeLandingGate         = "ldg"
	WaypointTypeIntermediateStart   = "isp"
	WaypointTypeIntermediateFinish  = "ifp"
	WaypointTypeDummy               = "dummy"
)

// Типы зон маршрута
const (
	ZoneTypeProhibited  = "prohibited"
	ZoneTypePenalty     = "penalty"
	ZoneTypeInformation = "info"
	ZoneTypeGate        = "gate"
)

// Waypoint представляет путевую точку маршрута с предвычисленной
// геометрией гейта. Линии заполняются при загрузке маршрута.
type Waypoint struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"` // футы MSL
	Width     float64 `json:"width"`     // ширина гейта в NM

	// GateLine линия гейта номинальной ширины, два конца
	GateLine []GeoPoint `json:"gate_line"`
	// GateLineExtended расширенная линия по ширине из scorecard
	GateLineExtended []GeoPoint `json:"gate_line_extended,omitempty"`
	// GateLineInfinite линия гейта, растянутая в 40 раз.
	// Пересечение с ней фиксирует сам факт прохода створа.
	GateLineInfinite []GeoPoint `json:"gate_line_infinite,omitempty"`

	TimeCheck bool `json:"time_check"`
	GateCheck bool `json:"gate_check"`
	EndCurved bool `json:"end_curved"`

	DistanceNext     float64 `json:"distance_next"`     // метры
	BearingNext      float64 `json:"bearing_next"`      // градусы
	DistancePrevious float64 `json:"distance_previous"` // метры
	BearingPrevious  float64 `json:"bearing_previous"`  // градусы

	// IsProcedureTurn разворот по процедуре между входящим
	// и исходящим плечом (разница курсов > 90 градусов)
	IsProcedureTurn bool `json:"is_procedure_turn"`

	// InsideDistance радиус близости к гейту в метрах,
	// OutsideDistance радиус выхода из окрестности гейта
	InsideDistance  float64 `json:"inside_distance"`
	OutsideDistance float64 `json:"outside_distance"`

	// Границы коридора для маршрутов ANR
	LeftCorridorLine  []GeoPoint `json:"left_corridor_line,omitempty"`
	RightCorridorLine []GeoPoint `json:"right_corridor_line,omitempty"`
}

// Point возвращает географическую точку путевой точки
func (w *Waypoint) Point() GeoPoint {
	return GeoPoint{Latitude: w.Latitude, Longitude: w.Longitude}
}

// IsRegularGate сообщает, участвует ли гейт в проверке прохождения по порядку
func (w *Waypoint) IsRegularGate() bool {
	switch w.Type {
	case WaypointTypeStartingPoint, WaypointTypeFinishPoint,
		WaypointTypeTurningPoint, WaypointTypeSecret,
		WaypointTypeIntermediateStart, WaypointTypeIntermediateFinish:
		return true
	}
	return false
}

// Zone представляет полигональную зону маршрута
type Zone struct {
	Name string     `json:"name"`
	Type string     `json:"type"`
	Path []GeoPoint `json:"path"`
}

// Contains проверяет нахождение точки внутри полигона (ray casting)
func (z *Zone) Contains(p GeoPoint) bool {
	n := len(z.Path)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := z.Path[i], z.Path[j]
		if (a.Latitude > p.Latitude) != (b.Latitude > p.Latitude) {
			cross := (b.Longitude-a.Longitude)*(p.Latitude-a.Latitude)/
				(b.Latitude-a.Latitude) + a.Longitude
			if p.Longitude < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Route представляет маршрут задачи со всеми путевыми точками и зонами
type Route struct {
	ID              int        `json:"id"`
	Name            string     `json:"name"`
	Waypoints       []Waypoint `json:"waypoints"`
	Zones           []Zone     `json:"zones,omitempty"`
	CorridorWidth   float64    `json:"corridor_width"` // NM, для ANR
	UseProcedureTurns bool     `json:"use_procedure_turns"`
}

// Validate проверяет минимальную пригодность маршрута для расчета
func (r *Route) Validate() error {
	if len(r.Waypoints) < 2 {
		return fmt.Errorf("route requires at least 2 waypoints, got %d", len(r.Waypoints))
	}
	names := make(map[string]bool, len(r.Waypoints))
	for i := range r.Waypoints {
		w := &r.Waypoints[i]
		if w.Name == "" {
			return fmt.Errorf("waypoint %d has empty name", i)
		}
		if names[w.Name] {
			return fmt.Errorf("duplicate waypoint name: %s", w.Name)
		}
		names[w.Name] = true
		if err := w.Point().Validate(); err != nil {
			return fmt.Errorf("waypoint %s: %w", w.Name, err)
		}
	}
	return nil
}

// FirstGate возвращает первую путевую точку маршрута
func (r *Route) FirstGate() *Waypoint {
	if len(r.Waypoints) == 0 {
		return nil
	}
	return &r.Waypoints[0]
}

// WaypointByName ищет путевую точку по имени
func (r *Route) WaypointByName(name string) *Waypoint {
	for i := range r.Waypoints {
		if r.Waypoints[i].Name == name {
			return &r.Waypoints[i]
		}
	}
	return nil
}

// ProhibitedZones возвращает запретные зоны маршрута
func (r *Route) ProhibitedZones() []Zone {
	var zones []Zone
	for _, z := range r.Zones {
		if z.Type == ZoneTypeProhibited || z.Type == ZoneTypePenalty {
			zones = append(zones, z)
		}
	}
	return zones
}

// Bounds возвращает ограничивающий прямоугольник маршрута
func (r *Route) Bounds() Bounds {
	if len(r.Waypoints) == 0 {
		return Bounds{}
	}
	b := Bounds{
		Southwest: r.Waypoints[0].Point(),
		Northeast: r.Waypoints[0].Point(),
	}
	for i := range r.Waypoints {
		w := &r.Waypoints[i]
		if w.Latitude < b.Southwest.Latitude {
			b.Southwest.Latitude = w.Latitude
		}
		if w.Latitude > b.Northeast.Latitude {
			b.Northeast.Latitude = w.Latitude
		}
		if w.Longitude < b.Southwest.Longitude {
			b.Southwest.Longitude = w.Longitude
		}
		if w.Longitude > b.Northeast.Longitude {
			b.Northeast.Longitude = w.Longitude
		}
	}
	return b
}

// TotalDistance возвращает суммарную длину маршрута в метрах
func (r *Route) TotalDistance() float64 {
	var total float64
	for i := range r.Waypoints {
		total += r.Waypoints[i].DistanceNext
	}
	return total
}

// ExpectedGateTime вычисляет плановое время прохождения плеча в полете:
// расстояние в метрах при путевой скорости в узлах
func ExpectedGateTime(distanceMeters, groundSpeedKnots float64) time.Duration {
	if groundSpeedKnots <= 0 {
		return 0
	}
	hours := (distanceMeters / 1852.0) / groundSpeedKnots
	return time.Duration(hours * float64(time.Hour))
}
