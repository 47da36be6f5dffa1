package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/config"
	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/internal/scoring"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

// ErrCompetitorNotFound участник удален из внешнего хранилища
var ErrCompetitorNotFound = errors.New("competitor not found")

// PositionHistory историческое хранилище позиций, реализуется MySQL
// репозиторием. Используется для дозагрузки пропущенных окон.
type PositionHistory interface {
	GetPositionsForDevice(ctx context.Context, deviceID string, from, to time.Time) ([]*models.Position, error)
}

// CompetitorSource источник участников для периодического обновления
type CompetitorSource interface {
	GetCompetitor(ctx context.Context, id int) (*models.Competitor, error)
}

// Store живое хранилище расчета, реализуется Redis репозиторием
type Store interface {
	scoring.ScoreSink
	SaveCompetitorPosition(ctx context.Context, competitorID int, position *models.Position) error
	Heartbeat(ctx context.Context, competitorID int) error
}

// Pusher рассылка живых событий, дополняет рассылку расчета позициями
type Pusher interface {
	scoring.Pusher
	PushPosition(taskID, competitorID int, position *models.Position)
}

// Supervisor обслуживает расчет одного участника: принимает живые
// позиции через очередь с задержкой, дозагружает пропуски из истории,
// интерполирует разреженный трек и кормит гейткипер строго
// хронологическим потоком.
type Supervisor struct {
	mu         sync.RWMutex
	competitor *models.Competitor

	gatekeeper *scoring.Gatekeeper
	queue      *DelayQueue

	history     PositionHistory
	competitors CompetitorSource
	store       Store
	pusher      Pusher

	cfg    config.ScoringConfig
	logger *utils.Logger

	// lastTime время последней принятой позиции, хронологический барьер
	lastTime      time.Time
	lastPosition  *models.Position
	refreshedAt   time.Time
	heartbeatedAt time.Time

	done chan struct{}
}

// NewSupervisor создает воркер участника. Маршрут должен быть
// подготовлен через geo.CalculateLegs.
func NewSupervisor(
	competitor *models.Competitor,
	route *models.Route,
	scorecard *models.Scorecard,
	history PositionHistory,
	competitors CompetitorSource,
	store Store,
	pusher Pusher,
	cfg config.ScoringConfig,
	logger *utils.Logger,
) (*Supervisor, error) {
	var gatekeeperPusher scoring.Pusher
	if pusher != nil {
		gatekeeperPusher = pusher
	}
	gatekeeper, err := scoring.NewGatekeeper(competitor, route, scorecard, store,
		gatekeeperPusher, cfg.TerminationPollInterval, logger)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		competitor:  competitor,
		gatekeeper:  gatekeeper,
		queue:       NewDelayQueue(cfg.CalculationDelay),
		history:     history,
		competitors: competitors,
		store:       store,
		pusher:      pusher,
		cfg:         cfg,
		logger:      logger.WithField("competitor_id", competitor.ID),
		done:        make(chan struct{}),
	}, nil
}

// HandlePosition принимает живую позицию. Позиции вне окна трекинга
// участника отбрасываются сразу.
func (s *Supervisor) HandlePosition(position *models.Position) {
	s.mu.RLock()
	accepts := s.competitor.AcceptsPosition(position.Time) && s.competitor.HasDevice(position.DeviceID)
	s.mu.RUnlock()
	if !accepts {
		return
	}
	s.queue.Put(position)
}

// Done закрывается при завершении расчета участника
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// CompetitorID возвращает идентификатор участника
func (s *Supervisor) CompetitorID() int {
	return s.competitor.ID
}

// Run главный цикл воркера. Сначала дозагружает трек, накопившийся
// до запуска, затем живет на очереди. Возвращается по завершении
// расчета или отмене контекста.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.done)
	defer s.queue.Close()

	s.logger.Info("Запуск расчетного воркера")
	s.backfill(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.gatekeeper.Terminated() {
			return
		}
		if s.gatekeeper.Finished() {
			s.logger.Info("Маршрут пройден, воркер завершается")
			return
		}

		position := s.queue.PopWait(s.cfg.QueueTimeout)
		if position == nil {
			// таймаут очереди: время для фонового обслуживания
			s.housekeeping(ctx)
			continue
		}

		position.CalculatorReceivedTime = time.Now()
		s.processPosition(ctx, position, true)
		s.maybeRefreshCompetitor(ctx)
	}
}

// backfill загружает позиции, записанные до запуска воркера. Из всех
// трекеров участника берется самый длинный трек.
func (s *Supervisor) backfill(ctx context.Context) {
	s.mu.RLock()
	competitor := s.competitor
	s.mu.RUnlock()

	var longest []*models.Position
	for _, deviceID := range competitor.TrackerDeviceIDs {
		positions, err := s.history.GetPositionsForDevice(ctx, deviceID, competitor.TrackerStartTime, time.Now())
		if err != nil {
			s.logger.WithField("device_id", deviceID).Errorf("Ошибка дозагрузки трека: %v", err)
			continue
		}
		if len(positions) > len(longest) {
			longest = positions
		}
	}

	if len(longest) == 0 {
		return
	}

	s.logger.WithField("count", len(longest)).Info("Дозагрузка трека до запуска")
	for _, position := range longest {
		s.processPosition(ctx, position, false)
	}
}

// processPosition проводит позицию через барьеры дозагрузки,
// дедупликации и интерполяции и отдает гейткиперу. fetchGaps
// выключается для позиций, пришедших из самой дозагрузки.
func (s *Supervisor) processPosition(ctx context.Context, position *models.Position, fetchGaps bool) {
	if s.gatekeeper.Terminated() {
		return
	}

	// дубликаты: повтор координат или время не строго позже
	if !s.lastTime.IsZero() && !position.Time.After(s.lastTime) {
		return
	}
	if s.lastPosition != nil && s.lastPosition.SameCoordinates(position) {
		return
	}

	if fetchGaps && !s.lastTime.IsZero() && position.Time.Sub(s.lastTime) > s.cfg.GapThreshold {
		s.fetchGap(ctx, s.lastTime, position.Time)
	}

	for _, interpolated := range s.interpolate(s.lastPosition, position) {
		s.gatekeeper.AddPosition(ctx, interpolated)
	}

	s.lastTime = position.Time
	s.lastPosition = position
	s.gatekeeper.AddPosition(ctx, position)

	s.mu.RLock()
	competitor := s.competitor
	s.mu.RUnlock()

	if err := s.store.SaveCompetitorPosition(ctx, competitor.ID, position); err != nil {
		s.logger.Errorf("Ошибка сохранения позиции: %v", err)
	}
	if s.pusher != nil {
		s.pusher.PushPosition(competitor.TaskID, competitor.ID, position)
	}
}

// fetchGap дозапрашивает из истории окно между последней принятой
// позицией и свежей: пакеты могли потеряться по пути в очередь
func (s *Supervisor) fetchGap(ctx context.Context, from, to time.Time) {
	s.mu.RLock()
	competitor := s.competitor
	s.mu.RUnlock()

	var longest []*models.Position
	for _, deviceID := range competitor.TrackerDeviceIDs {
		positions, err := s.history.GetPositionsForDevice(ctx, deviceID, from, to)
		if err != nil {
			s.logger.WithField("device_id", deviceID).Errorf("Ошибка дозагрузки окна: %v", err)
			continue
		}
		if len(positions) > len(longest) {
			longest = positions
		}
	}

	for _, position := range longest {
		if position.Time.After(from) && position.Time.Before(to) {
			s.processPosition(ctx, position, false)
		}
	}
}

// interpolate строит синтетические позиции с шагом интерполяции между
// двумя реальными. Разрыв меньше двух шагов или без фактического
// перемещения не интерполируется.
func (s *Supervisor) interpolate(previous, current *models.Position) []*models.Position {
	if previous == nil {
		return nil
	}

	step := s.cfg.InterpolationStep
	if step <= 0 {
		step = time.Second
	}
	gap := current.Time.Sub(previous.Time)
	if gap <= 2*step {
		return nil
	}
	if previous.Point().DistanceTo(current.Point()) < 0.001 {
		return nil
	}

	var interpolated []*models.Position
	for t := previous.Time.Add(step); t.Before(current.Time); t = t.Add(step) {
		fraction := float64(t.Sub(previous.Time)) / float64(gap)
		point := geo.FractionalPoint(previous.Point(), current.Point(), fraction)
		interpolated = append(interpolated, &models.Position{
			DeviceID:     current.DeviceID,
			Time:         t,
			Latitude:     point.Latitude,
			Longitude:    point.Longitude,
			Altitude:     previous.Altitude + (current.Altitude-previous.Altitude)*fraction,
			Speed:        current.Speed,
			Course:       geo.Bearing(previous.Point(), current.Point()),
			Interpolated: true,
		})
	}
	return interpolated
}

// housekeeping фоновое обслуживание на таймауте очереди: heartbeat,
// опрос флага завершения и проверка конца окна трекинга
func (s *Supervisor) housekeeping(ctx context.Context) {
	s.heartbeat(ctx)
	s.gatekeeper.PollTermination(ctx)
	s.maybeRefreshCompetitor(ctx)

	s.mu.RLock()
	finishedBy := s.competitor.FinishedByTime
	s.mu.RUnlock()

	if !finishedBy.IsZero() && time.Now().After(finishedBy) {
		s.logger.Info("Окно трекинга закрыто, расчет завершается")
		s.gatekeeper.Terminate(ctx, "tracking window closed")
	}
}

// heartbeat отмечает живость воркера не чаще раза в интервал опроса
func (s *Supervisor) heartbeat(ctx context.Context) {
	if time.Since(s.heartbeatedAt) < s.cfg.TerminationPollInterval {
		return
	}
	s.heartbeatedAt = time.Now()

	s.mu.RLock()
	id := s.competitor.ID
	s.mu.RUnlock()

	if err := s.store.Heartbeat(ctx, id); err != nil {
		s.logger.Errorf("Ошибка heartbeat: %v", err)
	}
}

// maybeRefreshCompetitor перечитывает участника из внешнего хранилища
// не чаще интервала обновления. Удаленный участник означает
// немедленное завершение расчета.
func (s *Supervisor) maybeRefreshCompetitor(ctx context.Context) {
	if time.Since(s.refreshedAt) < s.cfg.CompetitorRefreshInterval {
		return
	}
	s.refreshedAt = time.Now()

	s.mu.RLock()
	id := s.competitor.ID
	s.mu.RUnlock()

	refreshed, err := s.competitors.GetCompetitor(ctx, id)
	if errors.Is(err, ErrCompetitorNotFound) {
		// Удаленному участнику уже некуда писать, расчет просто
		// прекращается без финальной записи
		s.logger.Warn("Участник удален, расчет прекращается")
		s.gatekeeper.Abandon()
		return
	}
	if err != nil {
		s.logger.Errorf("Ошибка обновления участника: %v", err)
		return
	}

	s.mu.Lock()
	s.competitor = refreshed
	s.mu.Unlock()
}
