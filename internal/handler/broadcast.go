package handler

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/olvesh/airsportslivetracking/internal/metrics"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/pool"
)

// Типы кадров живой рассылки
const (
	FrameScore        = "score"
	FrameAnnotation   = "annotation"
	FrameGateCrossing = "gate_crossing"
	FrameState        = "competitor_state"
	FrameDanger       = "danger_level"
	FramePosition     = "position"
	FrameWelcome      = "welcome"
)

// Frame один кадр живой рассылки, сериализуется в JSON
type Frame struct {
	Type   string      `json:"type"`
	TaskID int         `json:"task_id"`
	Data   interface{} `json:"data"`

	// competitorID ключ дедупликации вытесняемых кадров внутри батча
	competitorID int
}

// positionUpdate полезная нагрузка кадра position
type positionUpdate struct {
	CompetitorID int              `json:"competitor_id"`
	Position     *models.Position `json:"position"`
}

// BroadcastManager рассылает живые обновления WebSocket клиентам,
// сгруппированным по задаче. Реализует feed.Pusher.
type BroadcastManager struct {
	tasks   map[int]*TaskGroup
	clients map[*Client]bool
	mu      sync.RWMutex

	// Каналы событий
	updates    chan *Frame
	register   chan *Client
	unregister chan *Client

	// Батчинг
	batchSize int
	batchTime time.Duration

	// Метрики
	metrics *BroadcastMetrics

	// Логирование
	logger *logrus.Entry
}

// TaskGroup клиенты, подписанные на одну задачу
type TaskGroup struct {
	taskID     int
	clients    map[*Client]bool
	mu         sync.RWMutex
	lastUpdate time.Time
}

// BroadcastMetrics счетчики производительности рассылки
type BroadcastMetrics struct {
	UpdatesReceived    uint64
	UpdatesBroadcast   uint64
	ClientsActive      uint64
	GroupsActive       uint64
	AvgBroadcastTimeMs float64
	AvgRecipientsCount float64
}

// NewBroadcastManager создает менеджер рассылки и запускает его воркеры
func NewBroadcastManager() *BroadcastManager {
	bm := &BroadcastManager{
		tasks:      make(map[int]*TaskGroup),
		clients:    make(map[*Client]bool),
		updates:    make(chan *Frame, 1000),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		batchSize:  50,
		batchTime:  100 * time.Millisecond,
		metrics:    &BroadcastMetrics{},
		logger:     logrus.WithField("component", "broadcast"),
	}

	go bm.run()
	go bm.metricsCollector()

	return bm
}

// Register подписывает клиента на обновления его задачи
func (bm *BroadcastManager) Register(client *Client) {
	bm.register <- client
}

// Unregister отписывает клиента и закрывает его канал отправки
func (bm *BroadcastManager) Unregister(client *Client) {
	bm.unregister <- client
}

// PushScoreEntry рассылает запись журнала начислений
func (bm *BroadcastManager) PushScoreEntry(taskID int, entry *models.ScoreLogEntry) {
	bm.broadcast(&Frame{Type: FrameScore, TaskID: taskID, Data: entry})
}

// PushAnnotation рассылает аннотацию трека
func (bm *BroadcastManager) PushAnnotation(taskID int, annotation *models.TrackAnnotation) {
	bm.broadcast(&Frame{Type: FrameAnnotation, TaskID: taskID, Data: annotation})
}

// PushGateCrossing рассылает прохождение гейта
func (bm *BroadcastManager) PushGateCrossing(taskID int, crossing *models.GateCrossing) {
	bm.broadcast(&Frame{Type: FrameGateCrossing, TaskID: taskID, Data: crossing})
}

// PushCompetitorState рассылает состояние участника. Внутри одного
// батча выживает только последнее состояние каждого участника.
func (bm *BroadcastManager) PushCompetitorState(taskID int, state *models.CompetitorState) {
	bm.broadcast(&Frame{Type: FrameState, TaskID: taskID, Data: state, competitorID: state.CompetitorID})
}

// PushDangerLevel рассылает уровень опасности участника
func (bm *BroadcastManager) PushDangerLevel(taskID int, danger *models.DangerLevel) {
	bm.broadcast(&Frame{Type: FrameDanger, TaskID: taskID, Data: danger, competitorID: danger.CompetitorID})
}

// PushPosition рассылает живую позицию участника
func (bm *BroadcastManager) PushPosition(taskID, competitorID int, position *models.Position) {
	bm.broadcast(&Frame{
		Type:         FramePosition,
		TaskID:       taskID,
		Data:         &positionUpdate{CompetitorID: competitorID, Position: position},
		competitorID: competitorID,
	})
}

// broadcast ставит кадр в очередь рассылки
func (bm *BroadcastManager) broadcast(frame *Frame) {
	select {
	case bm.updates <- frame:
		atomic.AddUint64(&bm.metrics.UpdatesReceived, 1)
	default:
		bm.logger.WithField("type", frame.Type).Warn("Update channel full, dropping frame")
	}
}

// run основной цикл рассылки
func (bm *BroadcastManager) run() {
	ticker := time.NewTicker(bm.batchTime)
	defer ticker.Stop()

	batch := make([]*Frame, 0, bm.batchSize)

	for {
		select {
		case client := <-bm.register:
			bm.handleRegister(client)

		case client := <-bm.unregister:
			bm.handleUnregister(client)

		case frame := <-bm.updates:
			batch = append(batch, frame)
			if len(batch) >= bm.batchSize {
				bm.processBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				bm.processBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

// handleRegister добавляет клиента в группу его задачи
func (bm *BroadcastManager) handleRegister(client *Client) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	group, exists := bm.tasks[client.taskID]
	if !exists {
		group = &TaskGroup{
			taskID:     client.taskID,
			clients:    make(map[*Client]bool),
			lastUpdate: time.Now(),
		}
		bm.tasks[client.taskID] = group
	}

	group.mu.Lock()
	group.clients[client] = true
	group.mu.Unlock()

	bm.clients[client] = true
	atomic.StoreUint64(&bm.metrics.ClientsActive, uint64(len(bm.clients)))
	atomic.StoreUint64(&bm.metrics.GroupsActive, uint64(len(bm.tasks)))

	bm.logger.WithFields(logrus.Fields{
		"client": client.conn.RemoteAddr(),
		"task":   client.taskID,
	}).Debug("Client registered for broadcast")
}

// handleUnregister убирает клиента из группы и закрывает его канал
func (bm *BroadcastManager) handleUnregister(client *Client) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if !bm.clients[client] {
		return
	}

	if group, exists := bm.tasks[client.taskID]; exists {
		group.mu.Lock()
		delete(group.clients, client)
		if len(group.clients) == 0 {
			delete(bm.tasks, client.taskID)
		}
		group.mu.Unlock()
	}

	delete(bm.clients, client)
	close(client.send)

	atomic.StoreUint64(&bm.metrics.ClientsActive, uint64(len(bm.clients)))
	atomic.StoreUint64(&bm.metrics.GroupsActive, uint64(len(bm.tasks)))

	bm.logger.WithField("client", client.conn.RemoteAddr()).Debug("Client unregistered from broadcast")
}

// processBatch рассылает батч кадров по группам задач
func (bm *BroadcastManager) processBatch(batch []*Frame) {
	start := time.Now()

	// Группируем кадры по задаче, вытесняемые типы (состояние,
	// позиция, опасность) схлопываем до последнего кадра участника
	framesByTask := make(map[int][]*Frame)
	lastByKey := make(map[string]int)

	for _, frame := range batch {
		frames := framesByTask[frame.TaskID]

		if frame.competitorID != 0 {
			key := fmt.Sprintf("%d:%s:%d", frame.TaskID, frame.Type, frame.competitorID)
			if idx, seen := lastByKey[key]; seen {
				frames[idx] = frame
				continue
			}
			lastByKey[key] = len(frames)
		}

		framesByTask[frame.TaskID] = append(frames, frame)
	}

	totalRecipients := 0

	bm.mu.RLock()
	for taskID, frames := range framesByTask {
		if group, exists := bm.tasks[taskID]; exists {
			totalRecipients += bm.broadcastToGroup(group, frames)
		}
	}
	bm.mu.RUnlock()

	atomic.AddUint64(&bm.metrics.UpdatesBroadcast, uint64(len(batch)))
	bm.updateBroadcastMetrics(time.Since(start), totalRecipients)
}

// broadcastToGroup сериализует кадры и отправляет всем клиентам группы
func (bm *BroadcastManager) broadcastToGroup(group *TaskGroup, frames []*Frame) int {
	group.mu.RLock()
	defer group.mu.RUnlock()

	if len(group.clients) == 0 {
		return 0
	}

	buf := pool.Global.GetBuffer()
	defer pool.Global.PutBuffer(buf)

	if err := json.NewEncoder(buf).Encode(frames); err != nil {
		bm.logger.WithError(err).Error("Failed to encode frame batch")
		return 0
	}

	// Копия переживает возврат буфера в пул
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())

	recipients := 0
	for client := range group.clients {
		select {
		case client.send <- data:
			recipients++
		default:
			// Канал клиента переполнен, кадр пропускается
			bm.logger.WithField("client", client.conn.RemoteAddr()).Warn("Client send buffer full")
			metrics.WebSocketErrors.Inc()
		}
	}

	group.lastUpdate = time.Now()
	return recipients
}

// updateBroadcastMetrics обновляет скользящие средние рассылки
func (bm *BroadcastManager) updateBroadcastMetrics(duration time.Duration, recipients int) {
	ms := float64(duration.Microseconds()) / 1000.0

	if bm.metrics.AvgBroadcastTimeMs == 0 {
		bm.metrics.AvgBroadcastTimeMs = ms
	} else {
		bm.metrics.AvgBroadcastTimeMs = bm.metrics.AvgBroadcastTimeMs*0.9 + ms*0.1
	}

	if bm.metrics.AvgRecipientsCount == 0 {
		bm.metrics.AvgRecipientsCount = float64(recipients)
	} else {
		bm.metrics.AvgRecipientsCount = bm.metrics.AvgRecipientsCount*0.9 + float64(recipients)*0.1
	}
}

// metricsCollector периодически чистит пустые группы и логирует метрики
func (bm *BroadcastManager) metricsCollector() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		bm.mu.Lock()

		for taskID, group := range bm.tasks {
			if time.Since(group.lastUpdate) > 5*time.Minute && len(group.clients) == 0 {
				delete(bm.tasks, taskID)
			}
		}

		atomic.StoreUint64(&bm.metrics.ClientsActive, uint64(len(bm.clients)))
		atomic.StoreUint64(&bm.metrics.GroupsActive, uint64(len(bm.tasks)))

		bm.mu.Unlock()

		bm.logger.WithFields(logrus.Fields{
			"clients":           bm.metrics.ClientsActive,
			"groups":            bm.metrics.GroupsActive,
			"updates_received":  bm.metrics.UpdatesReceived,
			"updates_broadcast": bm.metrics.UpdatesBroadcast,
			"avg_broadcast_ms":  bm.metrics.AvgBroadcastTimeMs,
			"avg_recipients":    bm.metrics.AvgRecipientsCount,
		}).Info("Broadcast metrics")
	}
}

// GetMetrics возвращает текущие метрики рассылки
func (bm *BroadcastManager) GetMetrics() BroadcastMetrics {
	return BroadcastMetrics{
		UpdatesReceived:    atomic.LoadUint64(&bm.metrics.UpdatesReceived),
		UpdatesBroadcast:   atomic.LoadUint64(&bm.metrics.UpdatesBroadcast),
		ClientsActive:      atomic.LoadUint64(&bm.metrics.ClientsActive),
		GroupsActive:       atomic.LoadUint64(&bm.metrics.GroupsActive),
		AvgBroadcastTimeMs: bm.metrics.AvgBroadcastTimeMs,
		AvgRecipientsCount: bm.metrics.AvgRecipientsCount,
	}
}
