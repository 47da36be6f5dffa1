package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
)

// CorridorCalculator штрафует за выход из коридора ANR. Штраф растет
// посекундно, пока участник снаружи, и записывается коррекциями одной
// записи журнала: зрители видят растущее число, а не поток записей.
type CorridorCalculator struct {
	scorecard *models.Scorecard
	route     *models.Route
	projector *geo.Projector
	update    UpdateScoreFunc

	// outsideSince начало текущего выхода из коридора
	outsideSince time.Time
	// ref запись журнала текущего выхода для коррекций
	ref *CorrectionRef

	danger int
}

// NewCorridorCalculator создает калькулятор коридора
func NewCorridorCalculator(scorecard *models.Scorecard, route *models.Route, projector *geo.Projector, update UpdateScoreFunc) *CorridorCalculator {
	return &CorridorCalculator{
		scorecard: scorecard,
		route:     route,
		projector: projector,
		update:    update,
	}
}

// Name имя калькулятора
func (c *CorridorCalculator) Name() string {
	return "anr_corridor"
}

// CalculateEnroute проверяет нахождение в коридоре. Уровень опасности
// растет по мере приближения к границе и держится на максимуме снаружи.
func (c *CorridorCalculator) CalculateEnroute(ctx context.Context, track []*models.Position, lastGate, inRangeOfGate, nextGate *Gate) {
	position := track[len(track)-1]
	inside, distance := geo.InsideCorridor(c.projector, c.route, position.Point())

	width := c.route.CorridorWidth
	if width <= 0 {
		width = 0.5
	}
	half := width * geo.MetersPerNauticalMile / 2

	if inside {
		c.closeExcursion()
		c.danger = int(math.Min(100, distance/half*100))
		return
	}

	c.danger = 100
	if c.outsideSince.IsZero() {
		c.outsideSince = position.Time
		return
	}

	outside := position.Time.Sub(c.outsideSince).Seconds()
	seconds := math.Round(outside - c.scorecard.CorridorGraceTime)
	if seconds <= 0 {
		return
	}

	points := seconds * c.scorecard.CorridorOutsidePenalty
	c.ref = c.update(ctx, ScoreEvent{
		Gate:           nextGate,
		Points:         points,
		Message:        fmt.Sprintf("outside corridor (%d s)", int(seconds)),
		Latitude:       position.Latitude,
		Longitude:      position.Longitude,
		AnnotationType: models.AnnotationAnomaly,
		ScoreType:      models.ScoreTypeCorridor,
		MaximumScore:   c.scorecard.CorridorOutsideMaximumPenalty,
		Correction:     c.ref,
	})
}

// CalculateOutsideRoute вне маршрута коридор не действует
func (c *CorridorCalculator) CalculateOutsideRoute(_ context.Context, _ []*models.Position, _, _ *Gate) {
	c.closeExcursion()
	c.danger = 0
}

// GateResolved на разрешение гейтов коридор не реагирует
func (c *CorridorCalculator) GateResolved(_ context.Context, _, _ *Gate, _ *models.Position) {
}

// PassedFinishpoint закрывает текущий выход из коридора
func (c *CorridorCalculator) PassedFinishpoint(_ context.Context, _ []*models.Position, _ *Gate) {
	c.closeExcursion()
	c.danger = 0
}

// DangerLevel близость к границе коридора
func (c *CorridorCalculator) DangerLevel() int {
	return c.danger
}

// closeExcursion фиксирует конец выхода из коридора: следующий выход
// получит собственную запись журнала
func (c *CorridorCalculator) closeExcursion() {
	c.outsideSince = time.Time{}
	c.ref = nil
}
