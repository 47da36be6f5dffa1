package scoring

import (
	"math"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
)

// Gate представляет путевую точку в runtime-состоянии расчета:
// плановое и фактические времена пересечения трех створов
// (номинального, расширенного и бесконечного).
type Gate struct {
	Waypoint     *models.Waypoint
	ExpectedTime time.Time

	// PassingTime зачтенное время пересечения расширенного створа,
	// нулевое время означает, что створ еще не пересечен
	PassingTime time.Time
	// NominalPassingTime пересечение створа номинальной ширины
	NominalPassingTime time.Time
	// InfinitePassingTime пересечение бесконечного створа
	InfinitePassingTime time.Time

	Missed bool

	// MaybeMissedTime момент первого выхода из окрестности гейта
	// без пересечения, кандидат на пропуск
	MaybeMissedTime     time.Time
	MaybeMissedPosition *models.Position
}

// NewGate создает runtime-гейт для путевой точки
func NewGate(waypoint *models.Waypoint, expected time.Time) *Gate {
	return &Gate{Waypoint: waypoint, ExpectedTime: expected}
}

// Name возвращает имя гейта
func (g *Gate) Name() string {
	return g.Waypoint.Name
}

// Type возвращает тип гейта
func (g *Gate) Type() string {
	return g.Waypoint.Type
}

// HasBeenPassed сообщает, разрешен ли гейт: пересечен либо пропущен
func (g *Gate) HasBeenPassed() bool {
	return g.Missed || !g.PassingTime.IsZero()
}

// expectedBearing возвращает ожидаемый курс пересечения створа:
// курс плеча, входящего в гейт, а для первого гейта исходящего
func (g *Gate) expectedBearing() float64 {
	if g.Waypoint.DistancePrevious > 0 {
		return g.Waypoint.BearingPrevious
	}
	return g.Waypoint.BearingNext
}

// CheckCrossing проверяет пересечение расширенного створа последним
// сегментом трека и возвращает интерполированное время пересечения
func (g *Gate) CheckCrossing(pr *geo.Projector, track []*models.Position) *time.Time {
	return g.checkLine(pr, track, g.Waypoint.GateLineExtended, g.expectedBearing())
}

// CheckCrossingNominal проверяет пересечение створа номинальной ширины
func (g *Gate) CheckCrossingNominal(pr *geo.Projector, track []*models.Position) *time.Time {
	return g.checkLine(pr, track, g.Waypoint.GateLine, g.expectedBearing())
}

// CheckCrossingInfinite проверяет пересечение бесконечного створа
func (g *Gate) CheckCrossingInfinite(pr *geo.Projector, track []*models.Position) *time.Time {
	return g.checkLine(pr, track, g.Waypoint.GateLineInfinite, g.expectedBearing())
}

// CheckCrossingReversed проверяет пересечение расширенного створа
// против направления маршрута
func (g *Gate) CheckCrossingReversed(pr *geo.Projector, track []*models.Position) *time.Time {
	return g.checkLine(pr, track, g.Waypoint.GateLineExtended, math.Mod(g.expectedBearing()+180, 360))
}

// checkLine ищет пересечение линии сегментом от третьей с конца до
// последней позиции трека. Сегмент из двух точек сглаживает дрожание
// GPS вокруг створа. Пересечение с отклонением от ожидаемого курса
// больше 90 градусов не засчитывается.
func (g *Gate) checkLine(pr *geo.Projector, track []*models.Position, line []models.GeoPoint, expectedBearing float64) *time.Time {
	if len(track) < 3 || len(line) < 2 {
		return nil
	}

	first := track[len(track)-3]
	last := track[len(track)-1]
	if first.SameCoordinates(last) {
		return nil
	}

	intersection := pr.Intersect(first.Point(), last.Point(), line[0], line[1])
	if intersection == nil {
		return nil
	}

	trackBearing := geo.Bearing(first.Point(), last.Point())
	if math.Abs(geo.BearingDifference(expectedBearing, trackBearing)) >= 90 {
		return nil
	}

	fraction := geo.FractionOfSegment(first.Point(), last.Point(), *intersection)
	crossing := roundSeconds(first.Time.Add(
		time.Duration(fraction * float64(last.Time.Sub(first.Time)))))
	return &crossing
}

// DistanceTo возвращает расстояние от позиции до гейта в метрах
func (g *Gate) DistanceTo(p *models.Position) float64 {
	return geo.DistanceMeters(p.Point(), g.Waypoint.Point())
}

// roundSeconds округляет время до целой секунды, половина вверх
func roundSeconds(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if t.Sub(truncated) >= 500*time.Millisecond {
		return truncated.Add(time.Second)
	}
	return truncated
}
