package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
)

// CorrectionRef ссылка на ранее записанное начисление. Калькулятор
// хранит ее, чтобы обновлять одну и ту же запись журнала при росте
// штрафа вместо добавления новых записей.
type CorrectionRef struct {
	ScoreLogID   string
	AnnotationID string
	Points       float64
}

// ScoreEvent представляет одно начисление от калькулятора.
// Единственная точка входа в журнал: все штрафы и информационные
// записи проходят через него.
type ScoreEvent struct {
	Gate      *Gate
	Points    float64
	Message   string
	Latitude  float64
	Longitude float64
	// AnnotationType тип метки на треке, пустая строка означает без метки
	AnnotationType string
	ScoreType      string
	// MaximumScore предел суммы по типу начисления, < 0 означает без предела
	MaximumScore float64
	Planned      *time.Time
	Actual       *time.Time
	// Correction ссылка на прошлую запись для идемпотентного обновления
	Correction *CorrectionRef
}

// UpdateScoreFunc единственный канал публикации начислений калькулятором.
// Возвращает ссылку для последующих коррекций той же записи.
type UpdateScoreFunc func(ctx context.Context, event ScoreEvent) *CorrectionRef

// Calculator подключаемый модуль начисления штрафов. Гейткипер вызывает
// его на каждой позиции, выбирая метод по состоянию трека.
type Calculator interface {
	// Name имя калькулятора для логов и метрик
	Name() string
	// CalculateEnroute вызывается, когда участник летит по маршруту
	CalculateEnroute(ctx context.Context, track []*models.Position, lastGate, inRangeOfGate, nextGate *Gate)
	// CalculateOutsideRoute вызывается до старта и после финиша
	CalculateOutsideRoute(ctx context.Context, track []*models.Position, lastGate, nextGate *Gate)
	// GateResolved уведомление о разрешении гейта: пересечен или пропущен
	GateResolved(ctx context.Context, previousGate, gate *Gate, position *models.Position)
	// PassedFinishpoint уведомление об окончательном прохождении финиша
	PassedFinishpoint(ctx context.Context, track []*models.Position, lastGate *Gate)
	// DangerLevel текущий уровень опасности 0-100 для зрителей
	DangerLevel() int
}

// buildCalculators собирает набор калькуляторов по имени из scorecard
func buildCalculators(
	scorecard *models.Scorecard,
	route *models.Route,
	projector *geo.Projector,
	update UpdateScoreFunc,
) ([]Calculator, error) {
	switch scorecard.Calculator {
	case models.CalculatorPrecision:
		return []Calculator{
			NewGateTimingCalculator(scorecard, update),
			NewBacktrackingCalculator(scorecard, route, update),
			NewProhibitedZoneCalculator(scorecard, route, update),
		}, nil
	case models.CalculatorANRCorridor:
		return []Calculator{
			NewGateTimingCalculator(scorecard, update),
			NewCorridorCalculator(scorecard, route, projector, update),
			NewProhibitedZoneCalculator(scorecard, route, update),
		}, nil
	}
	return nil, fmt.Errorf("unknown calculator: %s", scorecard.Calculator)
}
