package scoring

import (
	"context"
	"fmt"

	"github.com/olvesh/airsportslivetracking/internal/models"
)

// ProhibitedZoneCalculator штрафует за вход в запретные зоны маршрута.
// Каждый вход в зону штрафуется один раз, повторный вход после выхода
// считается новым нарушением.
type ProhibitedZoneCalculator struct {
	scorecard *models.Scorecard
	zones     []models.Zone
	update    UpdateScoreFunc

	// insideZones зоны, в которых участник находится сейчас
	insideZones map[string]bool
}

// NewProhibitedZoneCalculator создает калькулятор запретных зон
func NewProhibitedZoneCalculator(scorecard *models.Scorecard, route *models.Route, update UpdateScoreFunc) *ProhibitedZoneCalculator {
	return &ProhibitedZoneCalculator{
		scorecard:   scorecard,
		zones:       route.ProhibitedZones(),
		update:      update,
		insideZones: make(map[string]bool),
	}
}

// Name имя калькулятора
func (c *ProhibitedZoneCalculator) Name() string {
	return "prohibited_zone"
}

// CalculateEnroute проверяет вход в запретные зоны
func (c *ProhibitedZoneCalculator) CalculateEnroute(ctx context.Context, track []*models.Position, _, _, _ *Gate) {
	c.checkZones(ctx, track)
}

// CalculateOutsideRoute запретные зоны действуют и вне маршрута,
// пока идет расчет
func (c *ProhibitedZoneCalculator) CalculateOutsideRoute(ctx context.Context, track []*models.Position, _, _ *Gate) {
	c.checkZones(ctx, track)
}

// GateResolved на разрешение гейтов зоны не реагируют
func (c *ProhibitedZoneCalculator) GateResolved(_ context.Context, _, _ *Gate, _ *models.Position) {
}

// PassedFinishpoint после финиша зоны не действуют
func (c *ProhibitedZoneCalculator) PassedFinishpoint(_ context.Context, _ []*models.Position, _ *Gate) {
}

// DangerLevel нахождение внутри запретной зоны это максимум опасности
func (c *ProhibitedZoneCalculator) DangerLevel() int {
	if len(c.insideZones) > 0 {
		return 100
	}
	return 0
}

// checkZones сверяет последнюю позицию со всеми запретными зонами
func (c *ProhibitedZoneCalculator) checkZones(ctx context.Context, track []*models.Position) {
	if len(c.zones) == 0 || len(track) == 0 {
		return
	}
	position := track[len(track)-1]
	point := position.Point()

	for i := range c.zones {
		zone := &c.zones[i]
		inside := zone.Contains(point)
		was := c.insideZones[zone.Name]

		switch {
		case inside && !was:
			c.insideZones[zone.Name] = true
			c.update(ctx, ScoreEvent{
				Points:         c.scorecard.ProhibitedZonePenalty,
				Message:        fmt.Sprintf("entered prohibited zone %s", zone.Name),
				Latitude:       position.Latitude,
				Longitude:      position.Longitude,
				AnnotationType: models.AnnotationAnomaly,
				ScoreType:      models.ScoreTypeProhibited,
				MaximumScore:   -1,
			})
		case !inside && was:
			delete(c.insideZones, zone.Name)
		}
	}
}
