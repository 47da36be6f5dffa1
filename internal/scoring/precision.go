package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
)

// GateTimingCalculator начисляет штрафы за отклонение от плановых
// времен прохождения гейтов, пропуски гейтов и некорректные
// пересечения стартового створа.
type GateTimingCalculator struct {
	scorecard *models.Scorecard
	update    UpdateScoreFunc

	// backwardsPenalized гейты, уже оштрафованные за обратное пересечение
	backwardsPenalized map[string]bool
}

// NewGateTimingCalculator создает калькулятор времен прохождения
func NewGateTimingCalculator(scorecard *models.Scorecard, update UpdateScoreFunc) *GateTimingCalculator {
	return &GateTimingCalculator{
		scorecard:          scorecard,
		update:             update,
		backwardsPenalized: make(map[string]bool),
	}
}

// Name имя калькулятора
func (c *GateTimingCalculator) Name() string {
	return "gate_timing"
}

// CalculateEnroute проверяет обратное пересечение стартового створа
func (c *GateTimingCalculator) CalculateEnroute(_ context.Context, _ []*models.Position, _, _, _ *Gate) {
}

// CalculateOutsideRoute до старта следит за пересечением стартового
// створа в обратном направлении
func (c *GateTimingCalculator) CalculateOutsideRoute(ctx context.Context, track []*models.Position, lastGate, nextGate *Gate) {
	if nextGate == nil || nextGate.Type() != models.WaypointTypeStartingPoint {
		return
	}
	if nextGate.HasBeenPassed() || c.backwardsPenalized[nextGate.Name()] {
		return
	}

	gs := c.scorecard.ForGateType(nextGate.Type())
	if gs.BadCrossingExtendedGatePenalty <= 0 {
		return
	}

	pr := geo.NewProjector(nextGate.Waypoint.Latitude)
	if t := nextGate.CheckCrossingReversed(pr, track); t != nil {
		c.backwardsPenalized[nextGate.Name()] = true
		last := track[len(track)-1]
		c.update(ctx, ScoreEvent{
			Gate:           nextGate,
			Points:         gs.BadCrossingExtendedGatePenalty,
			Message:        "crossing extended starting gate backwards",
			Latitude:       last.Latitude,
			Longitude:      last.Longitude,
			AnnotationType: models.AnnotationAnomaly,
			ScoreType:      models.ScoreTypeBackwards,
			MaximumScore:   -1,
		})
	}
}

// GateResolved начисляет штраф за разрешенный гейт: за отклонение от
// планового времени с учетом льготного интервала, за пропуск, и за
// пересечение расширенного створа мимо номинального
func (c *GateTimingCalculator) GateResolved(ctx context.Context, _, gate *Gate, position *models.Position) {
	gs := c.scorecard.ForGateType(gate.Type())

	if gate.Missed {
		c.update(ctx, ScoreEvent{
			Gate:           gate,
			Points:         gs.MissedPenalty,
			Message:        fmt.Sprintf("missed gate %s", gate.Name()),
			Latitude:       position.Latitude,
			Longitude:      position.Longitude,
			AnnotationType: models.AnnotationAnomaly,
			ScoreType:      models.ScoreTypeGate,
			MaximumScore:   -1,
		})
		return
	}

	c.scoreTiming(ctx, gate, gs, position)

	// Пересечение расширенного створа мимо номинального на гейтах,
	// где scorecard за это штрафует (стартовая линия)
	if gs.BadCrossingExtendedGatePenalty > 0 && gate.NominalPassingTime.IsZero() {
		c.update(ctx, ScoreEvent{
			Gate:           gate,
			Points:         gs.BadCrossingExtendedGatePenalty,
			Message:        fmt.Sprintf("bad crossing of extended gate %s", gate.Name()),
			Latitude:       position.Latitude,
			Longitude:      position.Longitude,
			AnnotationType: models.AnnotationAnomaly,
			ScoreType:      models.ScoreTypeGate,
			MaximumScore:   -1,
		})
	}
}

// scoreTiming начисляет штраф за отклонение от планового времени.
// Запись появляется и при нулевом штрафе, зрители видят каждое
// прохождение временного гейта.
func (c *GateTimingCalculator) scoreTiming(ctx context.Context, gate *Gate, gs models.GateScore, position *models.Position) {
	if !gate.Waypoint.TimeCheck || gate.ExpectedTime.IsZero() {
		return
	}

	planned := gate.ExpectedTime
	actual := gate.PassingTime
	offset := actual.Sub(planned).Seconds()

	grace := gs.GraceTimeAfter
	if offset < 0 {
		grace = gs.GraceTimeBefore
	}

	points := 0.0
	beyond := math.Abs(offset) - grace
	if beyond > 0 {
		points = math.Round(beyond) * gs.PenaltyPerSecond
		if gs.MaximumPenalty > 0 && points > gs.MaximumPenalty {
			points = gs.MaximumPenalty
		}
	}

	message := fmt.Sprintf("passed gate %s", gate.Name())
	annotationType := models.AnnotationInformation
	if points > 0 {
		annotationType = models.AnnotationAnomaly
	}

	c.update(ctx, ScoreEvent{
		Gate:           gate,
		Points:         points,
		Message:        message,
		Latitude:       position.Latitude,
		Longitude:      position.Longitude,
		AnnotationType: annotationType,
		ScoreType:      models.ScoreTypeGate,
		MaximumScore:   -1,
		Planned:        &planned,
		Actual:         &actual,
	})
}

// PassedFinishpoint для калькулятора времен ничего не значит
func (c *GateTimingCalculator) PassedFinishpoint(_ context.Context, _ []*models.Position, _ *Gate) {
}

// DangerLevel временные штрафы не создают опасности
func (c *GateTimingCalculator) DangerLevel() int {
	return 0
}

// BacktrackingCalculator следит за полетом против направления плеча
// и за выполнением разворотов по процедуре.
type BacktrackingCalculator struct {
	scorecard *models.Scorecard
	route     *models.Route
	update    UpdateScoreFunc

	// backtrackStart начало текущего отклонения от курса
	backtrackStart time.Time
	penalized      bool

	// accumulatedTurn суммарный разворот с момента прошлого гейта
	accumulatedTurn float64
	lastCourse      float64
	haveCourse      bool

	danger int
}

// NewBacktrackingCalculator создает калькулятор полета против курса
func NewBacktrackingCalculator(scorecard *models.Scorecard, route *models.Route, update UpdateScoreFunc) *BacktrackingCalculator {
	return &BacktrackingCalculator{
		scorecard: scorecard,
		route:     route,
		update:    update,
	}
}

// Name имя калькулятора
func (c *BacktrackingCalculator) Name() string {
	return "backtracking"
}

// CalculateEnroute сравнивает курс с направлением текущего плеча.
// Отклонение больше допуска дольше льготного интервала штрафуется
// один раз за каждое отклонение. Вблизи гейта курс не проверяется,
// там разворот легален.
func (c *BacktrackingCalculator) CalculateEnroute(ctx context.Context, track []*models.Position, lastGate, inRangeOfGate, nextGate *Gate) {
	position := track[len(track)-1]
	c.trackTurn(position)

	if nextGate == nil || inRangeOfGate != nil {
		c.resetBacktrack()
		return
	}

	legBearing := nextGate.Waypoint.BearingPrevious
	course := c.course(track)
	difference := math.Abs(geo.BearingDifference(legBearing, course))

	if difference <= c.scorecard.BacktrackingBearingDifference {
		c.resetBacktrack()
		return
	}

	if c.backtrackStart.IsZero() {
		c.backtrackStart = position.Time
		return
	}

	outside := position.Time.Sub(c.backtrackStart).Seconds()
	c.danger = int(math.Min(100, outside*20))

	if outside > c.scorecard.BacktrackingGraceTimeSeconds && !c.penalized {
		c.penalized = true
		c.update(ctx, ScoreEvent{
			Gate:           nextGate,
			Points:         c.scorecard.BacktrackingPenalty,
			Message:        "backtracking",
			Latitude:       position.Latitude,
			Longitude:      position.Longitude,
			AnnotationType: models.AnnotationAnomaly,
			ScoreType:      models.ScoreTypeBacktracking,
			MaximumScore:   c.scorecard.BacktrackingMaximumPenalty,
		})
	}
}

// CalculateOutsideRoute вне маршрута курс не проверяется
func (c *BacktrackingCalculator) CalculateOutsideRoute(_ context.Context, _ []*models.Position, _, _ *Gate) {
	c.resetBacktrack()
}

// GateResolved проверяет выполнение разворота по процедуре на
// прошлом плече и сбрасывает накопленный разворот
func (c *BacktrackingCalculator) GateResolved(ctx context.Context, previousGate, gate *Gate, position *models.Position) {
	defer func() {
		c.accumulatedTurn = 0
		c.haveCourse = false
		c.resetBacktrack()
	}()

	if !c.route.UseProcedureTurns || !c.scorecard.UseProcedureTurns {
		return
	}
	if previousGate == nil || !previousGate.Waypoint.IsProcedureTurn || previousGate.Missed {
		return
	}

	// Разворот по процедуре требует полного виража между гейтами
	if math.Abs(c.accumulatedTurn) >= 180 {
		return
	}

	gs := c.scorecard.ForGateType(previousGate.Type())
	if gs.MissedProcedureTurnPenalty <= 0 {
		return
	}
	c.update(ctx, ScoreEvent{
		Gate:           previousGate,
		Points:         gs.MissedProcedureTurnPenalty,
		Message:        fmt.Sprintf("missed procedure turn at %s", previousGate.Name()),
		Latitude:       position.Latitude,
		Longitude:      position.Longitude,
		AnnotationType: models.AnnotationAnomaly,
		ScoreType:      models.ScoreTypeProcedureTurn,
		MaximumScore:   -1,
	})
}

// PassedFinishpoint после финиша курс не проверяется
func (c *BacktrackingCalculator) PassedFinishpoint(_ context.Context, _ []*models.Position, _ *Gate) {
	c.resetBacktrack()
}

// DangerLevel растет со временем полета против курса
func (c *BacktrackingCalculator) DangerLevel() int {
	return c.danger
}

// trackTurn накапливает знаковое изменение курса между позициями
func (c *BacktrackingCalculator) trackTurn(position *models.Position) {
	if c.haveCourse {
		c.accumulatedTurn += geo.BearingDifference(c.lastCourse, position.Course)
	}
	c.lastCourse = position.Course
	c.haveCourse = true
}

// course возвращает текущий курс: из телеметрии, либо по последнему
// сегменту трека, когда трекер курс не передает
func (c *BacktrackingCalculator) course(track []*models.Position) float64 {
	last := track[len(track)-1]
	if last.Course != 0 || len(track) < 2 {
		return last.Course
	}
	previous := track[len(track)-2]
	if previous.SameCoordinates(last) {
		return last.Course
	}
	return geo.Bearing(previous.Point(), last.Point())
}

// resetBacktrack закрывает текущее отклонение от курса
func (c *BacktrackingCalculator) resetBacktrack() {
	c.backtrackStart = time.Time{}
	c.penalized = false
	c.danger = 0
}
