package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

// ScoreSink принимает результаты расчета для сохранения.
// Реализуется репозиторием Redis.
type ScoreSink interface {
	SaveScoreEntry(ctx context.Context, entry *models.ScoreLogEntry) error
	UpdateScoreEntry(ctx context.Context, entry *models.ScoreLogEntry, delta float64) error
	SaveAnnotation(ctx context.Context, annotation *models.TrackAnnotation) error
	UpdateAnnotation(ctx context.Context, annotation *models.TrackAnnotation) error
	SaveGateCrossing(ctx context.Context, crossing *models.GateCrossing) error
	SaveCompetitorState(ctx context.Context, state *models.CompetitorState) error
	IncrementScore(ctx context.Context, competitorID int, delta float64) (float64, error)
	IsTerminationRequested(ctx context.Context, competitorID int) (bool, error)
}

// Pusher рассылает живые события зрителям задачи.
// Реализуется менеджером WebSocket рассылки.
type Pusher interface {
	PushScoreEntry(taskID int, entry *models.ScoreLogEntry)
	PushAnnotation(taskID int, annotation *models.TrackAnnotation)
	PushGateCrossing(taskID int, crossing *models.GateCrossing)
	PushCompetitorState(taskID int, state *models.CompetitorState)
	PushDangerLevel(taskID int, danger *models.DangerLevel)
}

// Gatekeeper ведет расчет одного участника: принимает позиции по
// одной, разрешает гейты по порядку маршрута и раздает события
// калькуляторам. Не потокобезопасен, каждый участник обслуживается
// одной горутиной.
type Gatekeeper struct {
	competitor *models.Competitor
	route      *models.Route
	scorecard  *models.Scorecard
	projector  *geo.Projector

	sink   ScoreSink
	pusher Pusher
	logger *utils.Logger

	accumulator *ScoreAccumulator
	calculators []Calculator

	track []*models.Position

	// outstanding нерешенные гейты в порядке маршрута
	outstanding []*Gate
	allGates    []*Gate

	lastGate         *Gate
	previousLastGate *Gate
	inRangeOfGate    *Gate

	// enroute признак нахождения на маршруте между стартом и финишем
	enroute              bool
	hasPassedFinishpoint bool
	terminated           bool

	// proximityMiss включает пропуск гейта по выходу из его окрестности
	proximityMiss bool

	totalScore         float64
	lastGateTimeOffset string

	terminationPollInterval time.Duration
	lastTerminationCheck    time.Time
}

// NewGatekeeper создает расчетчик участника. Маршрут должен быть
// подготовлен через geo.CalculateLegs.
func NewGatekeeper(
	competitor *models.Competitor,
	route *models.Route,
	scorecard *models.Scorecard,
	sink ScoreSink,
	pusher Pusher,
	terminationPollInterval time.Duration,
	logger *utils.Logger,
) (*Gatekeeper, error) {
	if err := competitor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid competitor: %w", err)
	}
	if len(route.Waypoints) == 0 {
		return nil, fmt.Errorf("route has no waypoints")
	}

	gk := &Gatekeeper{
		competitor:              competitor,
		route:                   route,
		scorecard:               scorecard,
		projector:               geo.NewProjector(route.Waypoints[0].Latitude),
		sink:                    sink,
		pusher:                  pusher,
		logger:                  logger.WithField("competitor_id", competitor.ID),
		accumulator:             NewScoreAccumulator(),
		proximityMiss:           scorecard.Calculator == models.CalculatorPrecision,
		terminationPollInterval: terminationPollInterval,
	}

	gateTimes := competitor.GateTimes(route)
	for i := range route.Waypoints {
		w := &route.Waypoints[i]
		if w.Type == models.WaypointTypeDummy {
			continue
		}
		gate := NewGate(w, gateTimes[w.Name])
		gk.allGates = append(gk.allGates, gate)
		if w.GateCheck {
			gk.outstanding = append(gk.outstanding, gate)
		}
	}
	if len(gk.outstanding) == 0 {
		return nil, fmt.Errorf("route has no gates to check")
	}

	calculators, err := buildCalculators(scorecard, route, gk.projector, gk.updateScore)
	if err != nil {
		return nil, err
	}
	gk.calculators = calculators

	return gk, nil
}

// AddPosition принимает очередную позицию трека и пересчитывает
// состояние. Позиции должны приходить в хронологическом порядке.
func (gk *Gatekeeper) AddPosition(ctx context.Context, position *models.Position) {
	if gk.terminated {
		return
	}

	gk.track = append(gk.track, position)
	gk.calculateScore(ctx, position)
}

// Terminated сообщает, завершен ли расчет участника
func (gk *Gatekeeper) Terminated() bool {
	return gk.terminated
}

// Finished сообщает, разрешены ли все гейты маршрута
func (gk *Gatekeeper) Finished() bool {
	return len(gk.outstanding) == 0
}

// TotalScore возвращает текущую сумму штрафных очков
func (gk *Gatekeeper) TotalScore() float64 {
	return gk.totalScore
}

// calculateScore выполняет один шаг расчета по свежей позиции
func (gk *Gatekeeper) calculateScore(ctx context.Context, position *models.Position) {
	if len(gk.track) > 2 {
		gk.checkGates(ctx, position)
	}

	// По единственной позиции калькуляторам считать нечего
	if len(gk.track) > 1 {
		next := gk.nextGate()
		for _, calculator := range gk.calculators {
			gk.runCalculator(ctx, calculator, next)
		}
		gk.pushDangerLevel(position)
	}

	gk.checkTermination(ctx)
}

// runCalculator вызывает калькулятор с защитой от паники: сломанный
// плагин не должен ронять расчет остальных
func (gk *Gatekeeper) runCalculator(ctx context.Context, calculator Calculator, next *Gate) {
	defer func() {
		if r := recover(); r != nil {
			gk.logger.WithField("calculator", calculator.Name()).
				Errorf("Калькулятор завершился паникой: %v", r)
		}
	}()

	if gk.enroute && !gk.hasPassedFinishpoint {
		calculator.CalculateEnroute(ctx, gk.track, gk.lastGate, gk.inRangeOfGate, next)
	} else {
		calculator.CalculateOutsideRoute(ctx, gk.track, gk.lastGate, next)
	}
}

// nextGate возвращает ближайший нерешенный гейт
func (gk *Gatekeeper) nextGate() *Gate {
	if len(gk.outstanding) == 0 {
		return nil
	}
	return gk.outstanding[0]
}

// checkGates разрешает гейты на свежем сегменте трека: фиксирует
// пересечения створов, пропускает обойденные гейты и следит за
// выходом из окрестности ближайшего гейта
func (gk *Gatekeeper) checkGates(ctx context.Context, position *models.Position) {
	// Пересечения бесконечного и номинального створов фиксируются
	// независимо от порядка, они нужны калькуляторам штрафов
	for _, gate := range gk.outstanding {
		if gate.InfinitePassingTime.IsZero() {
			if t := gate.CheckCrossingInfinite(gk.projector, gk.track); t != nil {
				gate.InfinitePassingTime = *t
			}
		}
		if gate.NominalPassingTime.IsZero() {
			if t := gate.CheckCrossingNominal(gk.projector, gk.track); t != nil {
				gate.NominalPassingTime = *t
			}
		}
	}

	// Расширенный створ проверяется по порядку маршрута, побеждает
	// первый пересеченный: все гейты до него считаются пропущенными
	crossedIndex := -1
	var crossedTime time.Time
	for i, gate := range gk.outstanding {
		if t := gate.CheckCrossing(gk.projector, gk.track); t != nil {
			crossedIndex = i
			crossedTime = *t
			break
		}
	}

	if crossedIndex >= 0 {
		for i := 0; i < crossedIndex; i++ {
			gk.outstanding[i].Missed = true
		}
		gk.outstanding[crossedIndex].PassingTime = crossedTime
		gk.popGates(ctx, crossedIndex+1, position)
		gk.inRangeOfGate = nil
		return
	}

	if gk.proximityMiss {
		gk.checkProximity(ctx, position)
	}
}

// checkProximity следит за окрестностью ближайшего гейта: вход ближе
// внутреннего радиуса запоминается, выход за внешний радиус без
// пересечения означает пропуск гейта
func (gk *Gatekeeper) checkProximity(ctx context.Context, position *models.Position) {
	next := gk.nextGate()
	if next == nil {
		return
	}

	if gk.inRangeOfGate == nil {
		if next.DistanceTo(position) < next.Waypoint.InsideDistance {
			gk.inRangeOfGate = next
			gk.logger.WithField("gate", next.Name()).Debug("Вход в окрестность гейта")
		}
		return
	}

	if gk.inRangeOfGate != next {
		// гейт уже разрешен другим путем
		gk.inRangeOfGate = nil
		return
	}

	if next.DistanceTo(position) > next.Waypoint.OutsideDistance {
		next.Missed = true
		next.MaybeMissedTime = position.Time
		next.MaybeMissedPosition = position
		gk.logger.WithField("gate", next.Name()).Debug("Выход из окрестности без пересечения")
		gk.popGates(ctx, 1, position)
		gk.inRangeOfGate = nil
	}
}

// popGates снимает первые count гейтов со списка нерешенных,
// рассылает события калькуляторам и обновляет состояние участника
func (gk *Gatekeeper) popGates(ctx context.Context, count int, position *models.Position) {
	for i := 0; i < count; i++ {
		gate := gk.outstanding[0]
		gk.outstanding = gk.outstanding[1:]

		gk.previousLastGate = gk.lastGate
		gk.lastGate = gate

		gk.updateEnroute(gate)
		gk.recordGateCrossing(ctx, gate)

		for _, calculator := range gk.calculators {
			calculator.GateResolved(ctx, gk.previousLastGate, gate, position)
		}

		if gate.Type() == models.WaypointTypeFinishPoint && !gate.Missed {
			gk.passedFinishpoint(ctx)
		}
	}

	if len(gk.outstanding) == 0 && !gk.hasPassedFinishpoint {
		gk.passedFinishpoint(ctx)
	}

	gk.pushState(ctx)
}

// updateEnroute переключает состояние нахождения на маршруте по типу
// разрешенного гейта: старт и поворотные точки включают его, финиш
// и посадка выключают
func (gk *Gatekeeper) updateEnroute(gate *Gate) {
	switch gate.Type() {
	case models.WaypointTypeStartingPoint, models.WaypointTypeIntermediateStart,
		models.WaypointTypeTurningPoint, models.WaypointTypeSecret:
		gk.enroute = true
	case models.WaypointTypeFinishPoint, models.WaypointTypeIntermediateFinish,
		models.WaypointTypeLandingGate:
		gk.enroute = false
	}
}

// recordGateCrossing сохраняет и рассылает факт разрешения гейта
func (gk *Gatekeeper) recordGateCrossing(ctx context.Context, gate *Gate) {
	crossing := &models.GateCrossing{
		CompetitorID: gk.competitor.ID,
		Gate:         gate.Name(),
		Missed:       gate.Missed,
	}
	if !gate.ExpectedTime.IsZero() {
		planned := gate.ExpectedTime
		crossing.Planned = &planned
	}
	if !gate.PassingTime.IsZero() {
		actual := gate.PassingTime
		crossing.Actual = &actual
	}

	if err := gk.sink.SaveGateCrossing(ctx, crossing); err != nil {
		gk.logger.WithField("gate", gate.Name()).Errorf("Ошибка сохранения прохождения гейта: %v", err)
	}
	if gk.pusher != nil {
		gk.pusher.PushGateCrossing(gk.competitor.TaskID, crossing)
	}
}

// passedFinishpoint фиксирует прохождение финиша, вызывается один раз
func (gk *Gatekeeper) passedFinishpoint(ctx context.Context) {
	if gk.hasPassedFinishpoint {
		return
	}
	gk.hasPassedFinishpoint = true
	gk.enroute = false

	gk.logger.Info("Участник прошел финиш")
	for _, calculator := range gk.calculators {
		calculator.PassedFinishpoint(ctx, gk.track, gk.lastGate)
	}
}

// checkTermination опрашивает флаг внешнего завершения не чаще
// интервала опроса. Ошибка хранилища не завершает расчет.
func (gk *Gatekeeper) checkTermination(ctx context.Context) {
	if gk.terminationPollInterval <= 0 {
		return
	}
	if time.Since(gk.lastTerminationCheck) < gk.terminationPollInterval {
		return
	}
	gk.lastTerminationCheck = time.Now()

	requested, err := gk.sink.IsTerminationRequested(ctx, gk.competitor.ID)
	if err != nil {
		gk.logger.Errorf("Ошибка проверки флага завершения: %v", err)
		return
	}
	if requested {
		gk.Terminate(ctx, "manually terminated")
	}
}

// PollTermination немедленно опрашивает флаг внешнего завершения,
// минуя интервал. Используется воркером на таймауте очереди, когда
// позиций нет и AddPosition флаг не проверит.
func (gk *Gatekeeper) PollTermination(ctx context.Context) {
	if gk.terminated {
		return
	}
	requested, err := gk.sink.IsTerminationRequested(ctx, gk.competitor.ID)
	if err != nil {
		gk.logger.Errorf("Ошибка проверки флага завершения: %v", err)
		return
	}
	if requested {
		gk.Terminate(ctx, "manually terminated")
	}
}

// Abandon прекращает расчет без финальной записи. Используется, когда
// участник удален из внешнего хранилища и результаты писать некуда.
func (gk *Gatekeeper) Abandon() {
	gk.terminated = true
}

// Terminate принудительно завершает расчет с нулевой записью в
// журнале. Аннотация ставится на последнюю позицию трека, при пустом
// треке на первый гейт маршрута. Идемпотентно.
func (gk *Gatekeeper) Terminate(ctx context.Context, message string) {
	if gk.terminated {
		return
	}
	gk.terminated = true

	latitude := gk.route.Waypoints[0].Latitude
	longitude := gk.route.Waypoints[0].Longitude
	if len(gk.track) > 0 {
		last := gk.track[len(gk.track)-1]
		latitude = last.Latitude
		longitude = last.Longitude
	}

	gk.updateScore(ctx, ScoreEvent{
		Points:         0,
		Message:        message,
		Latitude:       latitude,
		Longitude:      longitude,
		AnnotationType: models.AnnotationInformation,
		ScoreType:      models.ScoreTypeTermination,
		MaximumScore:   -1,
	})

	gk.logger.Info("Расчет участника завершен")
	gk.pushState(ctx)
}

// updateScore единственная точка записи начислений: применяет предел
// через аккумулятор, сохраняет запись журнала и аннотацию, рассылает
// события и ведет общую сумму. Коррекция обновляет прежнюю запись
// и меняет сумму на дельту.
func (gk *Gatekeeper) updateScore(ctx context.Context, event ScoreEvent) *CorrectionRef {
	previous := 0.0
	if event.Correction != nil {
		previous = event.Correction.Points
	}

	awarded, capped := gk.accumulator.Award(event.Points, event.ScoreType, event.MaximumScore, previous)

	message := event.Message
	if capped {
		message += " (capped)"
	}

	offset := ""
	if event.Planned != nil && event.Actual != nil {
		offset = formatOffset(event.Actual.Sub(*event.Planned))
		if event.Gate != nil && event.Gate.Waypoint.TimeCheck {
			gk.lastGateTimeOffset = offset
		}
	}

	entry := &models.ScoreLogEntry{
		CompetitorID: gk.competitor.ID,
		Time:         gk.lastPositionTime(),
		Message:      message,
		Points:       awarded,
		Planned:      event.Planned,
		Actual:       event.Actual,
		Offset:       offset,
		Type:         entryType(event),
		ScoreType:    event.ScoreType,
		MaximumScore: event.MaximumScore,
		Latitude:     event.Latitude,
		Longitude:    event.Longitude,
	}
	if event.Gate != nil {
		entry.Gate = event.Gate.Name()
	}

	if event.Correction == nil {
		return gk.saveNewEntry(ctx, event, entry, awarded)
	}
	return gk.correctEntry(ctx, event, entry, awarded, previous)
}

// saveNewEntry сохраняет новую запись журнала с аннотацией
func (gk *Gatekeeper) saveNewEntry(ctx context.Context, event ScoreEvent, entry *models.ScoreLogEntry, awarded float64) *CorrectionRef {
	if err := gk.sink.SaveScoreEntry(ctx, entry); err != nil {
		gk.logger.Errorf("Ошибка сохранения начисления: %v", err)
		return nil
	}
	gk.applyScoreDelta(ctx, awarded)

	ref := &CorrectionRef{ScoreLogID: entry.ID, Points: awarded}

	if event.AnnotationType != "" {
		annotation := &models.TrackAnnotation{
			CompetitorID: gk.competitor.ID,
			Latitude:     entry.Latitude,
			Longitude:    entry.Longitude,
			Message:      entry.Message,
			Type:         event.AnnotationType,
			Time:         gk.lastPositionTime(),
			ScoreLogID:   entry.ID,
		}
		if event.Gate != nil {
			annotation.GateName = event.Gate.Name()
		}
		if err := gk.sink.SaveAnnotation(ctx, annotation); err != nil {
			gk.logger.Errorf("Ошибка сохранения аннотации: %v", err)
		} else {
			ref.AnnotationID = annotation.ID
			if gk.pusher != nil {
				gk.pusher.PushAnnotation(gk.competitor.TaskID, annotation)
			}
		}
	}

	if gk.pusher != nil {
		gk.pusher.PushScoreEntry(gk.competitor.TaskID, entry)
	}
	gk.pushState(ctx)
	return ref
}

// correctEntry обновляет ранее записанное начисление на дельту
func (gk *Gatekeeper) correctEntry(ctx context.Context, event ScoreEvent, entry *models.ScoreLogEntry, awarded, previous float64) *CorrectionRef {
	entry.ID = event.Correction.ScoreLogID
	delta := awarded - previous

	if err := gk.sink.UpdateScoreEntry(ctx, entry, delta); err != nil {
		gk.logger.Errorf("Ошибка коррекции начисления: %v", err)
		// аккумулятор уже учел дельту, ссылка должна отражать это
		event.Correction.Points = awarded
		return event.Correction
	}
	gk.applyScoreDelta(ctx, delta)

	if event.Correction.AnnotationID != "" {
		annotation := &models.TrackAnnotation{
			ID:           event.Correction.AnnotationID,
			CompetitorID: gk.competitor.ID,
			Latitude:     entry.Latitude,
			Longitude:    entry.Longitude,
			Message:      entry.Message,
			Type:         event.AnnotationType,
			Time:         gk.lastPositionTime(),
			ScoreLogID:   entry.ID,
		}
		if err := gk.sink.UpdateAnnotation(ctx, annotation); err != nil {
			gk.logger.Errorf("Ошибка коррекции аннотации: %v", err)
		} else if gk.pusher != nil {
			gk.pusher.PushAnnotation(gk.competitor.TaskID, annotation)
		}
	}

	if gk.pusher != nil {
		gk.pusher.PushScoreEntry(gk.competitor.TaskID, entry)
	}
	gk.pushState(ctx)

	event.Correction.Points = awarded
	return event.Correction
}

// applyScoreDelta двигает накопленную сумму в хранилище на дельту и
// синхронизирует память с результатом. Сумма всегда считается от
// сохраненного значения, так что внешние правки суммы переживают
// следующее начисление.
func (gk *Gatekeeper) applyScoreDelta(ctx context.Context, delta float64) {
	total, err := gk.sink.IncrementScore(ctx, gk.competitor.ID, delta)
	if err != nil {
		gk.logger.Errorf("Ошибка обновления суммы очков: %v", err)
		gk.totalScore += delta
		return
	}
	gk.totalScore = total
}

// pushState сохраняет и рассылает публичное состояние участника
func (gk *Gatekeeper) pushState(ctx context.Context) {
	state := gk.State()
	if err := gk.sink.SaveCompetitorState(ctx, state); err != nil {
		gk.logger.Errorf("Ошибка сохранения состояния: %v", err)
	}
	if gk.pusher != nil {
		gk.pusher.PushCompetitorState(gk.competitor.TaskID, state)
	}
}

// State возвращает снимок публичного состояния участника
func (gk *Gatekeeper) State() *models.CompetitorState {
	trackingState := models.TrackingStateWaiting
	if gk.lastGate != nil {
		trackingState = models.TrackingStateTracking
	}
	if gk.hasPassedFinishpoint || gk.terminated {
		trackingState = models.TrackingStateFinished
	}

	state := &models.CompetitorState{
		CompetitorID:       gk.competitor.ID,
		Score:              gk.totalScore,
		TrackingState:      trackingState,
		LastGateTimeOffset: gk.lastGateTimeOffset,
		PastFinishGate:     gk.hasPassedFinishpoint,
		Calculating:        !gk.terminated,
		UpdatedAt:          time.Now(),
	}
	if gk.lastGate != nil {
		state.LastGate = gk.lastGate.Name()
		state.PastStartingGate = true
	}
	return state
}

// pushDangerLevel рассылает максимальный уровень опасности калькуляторов
func (gk *Gatekeeper) pushDangerLevel(position *models.Position) {
	if gk.pusher == nil {
		return
	}
	level := 0
	for _, calculator := range gk.calculators {
		if l := calculator.DangerLevel(); l > level {
			level = l
		}
	}
	gk.pusher.PushDangerLevel(gk.competitor.TaskID, &models.DangerLevel{
		CompetitorID: gk.competitor.ID,
		Level:        level,
		Time:         position.Time,
	})
}

// lastPositionTime возвращает время последней позиции трека
func (gk *Gatekeeper) lastPositionTime() time.Time {
	if len(gk.track) == 0 {
		return time.Now()
	}
	return gk.track[len(gk.track)-1].Time
}

// entryType выводит тип записи журнала из события
func entryType(event ScoreEvent) string {
	switch event.AnnotationType {
	case models.AnnotationInformation:
		return models.ScoreEntryTypeInformation
	case models.AnnotationAnomaly:
		return models.ScoreEntryTypeAnomaly
	}
	return models.ScoreEntryTypeGate
}

// formatOffset форматирует отклонение от планового времени вида "+12 s"
func formatOffset(d time.Duration) string {
	seconds := int(d.Round(time.Second) / time.Second)
	if seconds < 0 {
		return fmt.Sprintf("-%d s", -seconds)
	}
	return fmt.Sprintf("+%d s", seconds)
}
