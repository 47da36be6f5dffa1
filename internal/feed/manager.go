package feed

import (
	"context"
	"sync"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/config"
	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

// TaskSource источник участников и маршрутов, реализуется MySQL
// репозиторием
type TaskSource interface {
	CompetitorSource
	LoadCompetitors(ctx context.Context) ([]*models.Competitor, error)
	LoadRoute(ctx context.Context, routeID int) (*models.Route, error)
}

// Manager ведет реестр расчетных воркеров: поднимает воркер на
// каждого активного участника, маршрутизирует живые позиции по
// устройствам и убирает завершившиеся воркеры.
type Manager struct {
	mu          sync.RWMutex
	supervisors map[int]*Supervisor
	// devices индекс устройство -> участники
	devices map[string][]int

	tasks   TaskSource
	history PositionHistory
	store   Store
	pusher  Pusher

	cfg    config.ScoringConfig
	logger *utils.Logger

	// routes кэш подготовленных маршрутов. Геометрия гейтов зависит
	// от scorecard, поэтому ключ включает и его.
	routes map[routeKey]*models.Route

	// finished участники с завершенным расчетом: пройденный маршрут
	// или внешнее завершение. Повторно воркер не поднимается, иначе
	// дозагрузка трека продублировала бы весь журнал начислений.
	finished map[int]struct{}

	wg sync.WaitGroup
}

// routeKey ключ кэша подготовленных маршрутов
type routeKey struct {
	routeID   int
	scorecard string
}

// NewManager создает менеджер воркеров
func NewManager(tasks TaskSource, history PositionHistory, store Store, pusher Pusher, cfg config.ScoringConfig, logger *utils.Logger) *Manager {
	return &Manager{
		supervisors: make(map[int]*Supervisor),
		devices:     make(map[string][]int),
		tasks:       tasks,
		history:     history,
		store:       store,
		pusher:      pusher,
		cfg:         cfg,
		logger:      logger,
		routes:      make(map[routeKey]*models.Route),
		finished:    make(map[int]struct{}),
	}
}

// Run загружает активных участников и периодически обновляет реестр,
// подхватывая добавленных. Блокируется до отмены контекста.
func (m *Manager) Run(ctx context.Context) {
	m.refresh(ctx)

	ticker := time.NewTicker(m.cfg.CompetitorRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.wg.Wait()
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

// HandlePosition маршрутизирует живую позицию всем воркерам,
// чье устройство и окно трекинга ей соответствуют
func (m *Manager) HandlePosition(position *models.Position) {
	m.mu.RLock()
	ids := m.devices[position.DeviceID]
	targets := make([]*Supervisor, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.supervisors[id]; ok {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	for _, supervisor := range targets {
		supervisor.HandlePosition(position)
	}
}

// ActiveWorkers возвращает число живых воркеров
func (m *Manager) ActiveWorkers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.supervisors)
}

// refresh синхронизирует реестр воркеров со списком активных
// участников внешнего хранилища
func (m *Manager) refresh(ctx context.Context) {
	competitors, err := m.tasks.LoadCompetitors(ctx)
	if err != nil {
		m.logger.Errorf("Ошибка загрузки участников: %v", err)
		return
	}

	now := time.Now()
	for _, competitor := range competitors {
		if now.After(competitor.FinishedByTime) {
			continue
		}
		m.ensureSupervisor(ctx, competitor)
	}
	m.rebuildDeviceIndex()
}

// ensureSupervisor поднимает воркер для участника, если его еще нет
// и расчет не завершен ранее
func (m *Manager) ensureSupervisor(ctx context.Context, competitor *models.Competitor) {
	m.mu.RLock()
	_, running := m.supervisors[competitor.ID]
	_, done := m.finished[competitor.ID]
	m.mu.RUnlock()
	if running || done {
		return
	}

	scorecard, err := models.ScorecardByName(competitor.ScorecardName)
	if err != nil {
		m.logger.WithField("competitor_id", competitor.ID).Errorf("Ошибка scorecard: %v", err)
		return
	}

	route, err := m.loadRoute(ctx, competitor.RouteID, scorecard)
	if err != nil {
		m.logger.WithField("competitor_id", competitor.ID).Errorf("Ошибка загрузки маршрута: %v", err)
		return
	}

	supervisor, err := NewSupervisor(competitor, route, scorecard,
		m.history, m.tasks, m.store, m.pusher, m.cfg, m.logger)
	if err != nil {
		m.logger.WithField("competitor_id", competitor.ID).Errorf("Ошибка создания воркера: %v", err)
		return
	}

	m.mu.Lock()
	m.supervisors[competitor.ID] = supervisor
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		supervisor.Run(ctx)

		m.mu.Lock()
		delete(m.supervisors, competitor.ID)
		m.finished[competitor.ID] = struct{}{}
		m.mu.Unlock()
		m.rebuildDeviceIndex()
	}()

	m.logger.WithFields(map[string]interface{}{
		"competitor_id": competitor.ID,
		"task_id":       competitor.TaskID,
	}).Info("Воркер участника запущен")
}

// loadRoute загружает и подготавливает маршрут, кэшируя по паре
// (маршрут, scorecard): разные scorecard дают разную геометрию гейтов
func (m *Manager) loadRoute(ctx context.Context, routeID int, scorecard *models.Scorecard) (*models.Route, error) {
	key := routeKey{routeID: routeID, scorecard: scorecard.Name}

	m.mu.RLock()
	route, ok := m.routes[key]
	m.mu.RUnlock()
	if ok {
		return route, nil
	}

	route, err := m.tasks.LoadRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if err := geo.CalculateLegs(route, scorecard); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.routes[key] = route
	m.mu.Unlock()
	return route, nil
}

// rebuildDeviceIndex перестраивает индекс устройств по живым воркерам
func (m *Manager) rebuildDeviceIndex() {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make(map[string][]int)
	for id, supervisor := range m.supervisors {
		supervisor.mu.RLock()
		trackers := supervisor.competitor.TrackerDeviceIDs
		supervisor.mu.RUnlock()
		for _, deviceID := range trackers {
			devices[deviceID] = append(devices[deviceID], id)
		}
	}
	m.devices = devices
}
