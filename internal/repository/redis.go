package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olvesh/airsportslivetracking/internal/config"
	"github.com/olvesh/airsportslivetracking/internal/metrics"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

const (
	// Префиксы хешей с записями журнала начислений
	ScoreLogPrefix      = "scorelog:"   // scorelog:{competitor}:{id} - хеш записи
	ScoreLogIndexPrefix = "scoreindex:" // scoreindex:{competitor} - список ID записей

	// Префиксы аннотаций трека
	AnnotationPrefix      = "annotation:" // annotation:{competitor}:{id} - хеш аннотации
	AnnotationIndexPrefix = "annindex:"   // annindex:{competitor} - список ID аннотаций

	// Прочие данные участника
	GateCrossingPrefix = "gates:"     // gates:{competitor} - список JSON пересечений
	StatePrefix        = "state:"     // state:{competitor} - хеш публичного состояния
	TrackPrefix        = "track:"     // track:{competitor} - список точек трека
	TerminatePrefix    = "terminate:" // terminate:{competitor} - флаг досрочного завершения
	HeartbeatPrefix    = "heartbeat:" // heartbeat:{competitor} - отметка живости воркера

	// Геопространственный индекс последних позиций
	CompetitorsGeoKey = "competitors:geo"

	// Кэш аутентификации
	AuthTokenPrefix = "auth:token:" // auth:token:{token_hash}

	// Счетчики
	SequenceScoreLog   = "sequence:scorelog"   // Счетчик ID записей журнала
	SequenceAnnotation = "sequence:annotation" // Счетчик ID аннотаций

	// TTL для данных
	LiveDataTTL  = 48 * time.Hour  // Данные живут до конца соревновательного дня
	HeartbeatTTL = 2 * time.Minute // Воркер без heartbeat считается мертвым
	AuthTokenTTL = 1 * time.Hour

	// Настройки для списков
	MaxTrackPoints = 19999 // Максимум точек в треке участника
)

// RedisRepository репозиторий живых данных расчета
type RedisRepository struct {
	client *redis.Client
	logger *utils.Logger
	config *config.RedisConfig
}

// NewRedisRepository создает новый Redis репозиторий
func NewRedisRepository(cfg *config.RedisConfig, logger *utils.Logger) (*RedisRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	// Парсим Redis URL
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Дополнительные настройки
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.ConnMaxIdleTime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	repo := &RedisRepository{
		client: client,
		logger: logger,
		config: cfg,
	}

	return repo, nil
}

// Ping проверяет соединение с Redis
func (r *RedisRepository) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// GetClient возвращает Redis клиент для внешнего использования (например, для auth кеширования)
func (r *RedisRepository) GetClient() *redis.Client {
	return r.client
}

// SaveScoreEntry сохраняет новую запись журнала начислений и присваивает ей ID
func (r *RedisRepository) SaveScoreEntry(ctx context.Context, entry *models.ScoreLogEntry) error {
	if entry == nil {
		return fmt.Errorf("score entry cannot be nil")
	}

	start := time.Now()

	seq, err := r.client.Incr(ctx, SequenceScoreLog).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_score_entry").Inc()
		return fmt.Errorf("failed to allocate score entry id: %w", err)
	}
	entry.ID = strconv.FormatInt(seq, 10)

	entryKey := scoreEntryKey(entry.CompetitorID, entry.ID)
	indexKey := ScoreLogIndexPrefix + strconv.Itoa(entry.CompetitorID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, entryKey, scoreEntryFields(entry))
	pipe.Expire(ctx, entryKey, LiveDataTTL)
	pipe.RPush(ctx, indexKey, entry.ID)
	pipe.Expire(ctx, indexKey, LiveDataTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_score_entry").Inc()
		return fmt.Errorf("failed to save score entry: %w", err)
	}

	metrics.ScoreEntriesTotal.WithLabelValues(entry.ScoreType).Inc()
	metrics.RedisOperationDuration.WithLabelValues("save_score_entry").Observe(time.Since(start).Seconds())

	r.logger.WithFields(map[string]interface{}{
		"competitor_id": entry.CompetitorID,
		"entry_id":      entry.ID,
		"gate":          entry.Gate,
		"points":        entry.Points,
	}).Debug("Saved score entry to Redis")

	return nil
}

// UpdateScoreEntry применяет коррекцию к существующей записи журнала.
// Очки записи меняются атомарно на дельту, остальные поля перезаписываются.
func (r *RedisRepository) UpdateScoreEntry(ctx context.Context, entry *models.ScoreLogEntry, delta float64) error {
	if entry == nil {
		return fmt.Errorf("score entry cannot be nil")
	}
	if entry.ID == "" {
		return fmt.Errorf("score entry ID is required for update")
	}

	start := time.Now()
	entryKey := scoreEntryKey(entry.CompetitorID, entry.ID)

	exists, err := r.client.Exists(ctx, entryKey).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("update_score_entry").Inc()
		return fmt.Errorf("failed to check score entry: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("score entry %s not found for competitor %d", entry.ID, entry.CompetitorID)
	}

	pipe := r.client.Pipeline()
	pipe.HIncrByFloat(ctx, entryKey, "points", delta)
	pipe.HSet(ctx, entryKey, map[string]interface{}{
		"message":       entry.Message,
		"offset":        entry.Offset,
		"times_updated": entry.TimesUpdated,
		"time":          entry.Time.UnixMilli(),
	})
	pipe.Expire(ctx, entryKey, LiveDataTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("update_score_entry").Inc()
		return fmt.Errorf("failed to update score entry: %w", err)
	}

	metrics.RedisOperationDuration.WithLabelValues("update_score_entry").Observe(time.Since(start).Seconds())

	r.logger.WithFields(map[string]interface{}{
		"competitor_id": entry.CompetitorID,
		"entry_id":      entry.ID,
		"delta":         delta,
		"times_updated": entry.TimesUpdated,
	}).Debug("Updated score entry in Redis")

	return nil
}

// GetScoreLog возвращает журнал начислений участника в порядке создания
func (r *RedisRepository) GetScoreLog(ctx context.Context, competitorID int) ([]*models.ScoreLogEntry, error) {
	start := time.Now()
	indexKey := ScoreLogIndexPrefix + strconv.Itoa(competitorID)

	ids, err := r.client.LRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_score_log").Inc()
		return nil, fmt.Errorf("failed to read score log index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Забираем все записи одним батчем
	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, scoreEntryKey(competitorID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		metrics.RedisOperationErrors.WithLabelValues("get_score_log").Inc()
		return nil, fmt.Errorf("failed to read score entries: %w", err)
	}

	entries := make([]*models.ScoreLogEntry, 0, len(ids))
	for i, id := range ids {
		data, err := cmds[i].Result()
		if err != nil || len(data) == 0 {
			continue
		}
		entries = append(entries, r.mapToScoreEntry(competitorID, id, data))
	}

	metrics.RedisOperationDuration.WithLabelValues("get_score_log").Observe(time.Since(start).Seconds())
	return entries, nil
}

// SaveAnnotation сохраняет новую аннотацию трека и присваивает ей ID
func (r *RedisRepository) SaveAnnotation(ctx context.Context, annotation *models.TrackAnnotation) error {
	if annotation == nil {
		return fmt.Errorf("annotation cannot be nil")
	}

	seq, err := r.client.Incr(ctx, SequenceAnnotation).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_annotation").Inc()
		return fmt.Errorf("failed to allocate annotation id: %w", err)
	}
	annotation.ID = strconv.FormatInt(seq, 10)

	return r.writeAnnotation(ctx, annotation, true)
}

// UpdateAnnotation перезаписывает существующую аннотацию трека
func (r *RedisRepository) UpdateAnnotation(ctx context.Context, annotation *models.TrackAnnotation) error {
	if annotation == nil {
		return fmt.Errorf("annotation cannot be nil")
	}
	if annotation.ID == "" {
		return fmt.Errorf("annotation ID is required for update")
	}
	return r.writeAnnotation(ctx, annotation, false)
}

func (r *RedisRepository) writeAnnotation(ctx context.Context, annotation *models.TrackAnnotation, indexed bool) error {
	start := time.Now()
	annotationKey := annotationEntryKey(annotation.CompetitorID, annotation.ID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, annotationKey, map[string]interface{}{
		"latitude":     annotation.Latitude,
		"longitude":    annotation.Longitude,
		"message":      annotation.Message,
		"type":         annotation.Type,
		"gate":         annotation.GateName,
		"time":         annotation.Time.UnixMilli(),
		"score_log_id": annotation.ScoreLogID,
	})
	pipe.Expire(ctx, annotationKey, LiveDataTTL)
	if indexed {
		indexKey := AnnotationIndexPrefix + strconv.Itoa(annotation.CompetitorID)
		pipe.RPush(ctx, indexKey, annotation.ID)
		pipe.Expire(ctx, indexKey, LiveDataTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_annotation").Inc()
		return fmt.Errorf("failed to save annotation: %w", err)
	}

	metrics.RedisOperationDuration.WithLabelValues("save_annotation").Observe(time.Since(start).Seconds())
	return nil
}

// GetAnnotations возвращает аннотации трека участника в порядке создания
func (r *RedisRepository) GetAnnotations(ctx context.Context, competitorID int) ([]*models.TrackAnnotation, error) {
	start := time.Now()
	indexKey := AnnotationIndexPrefix + strconv.Itoa(competitorID)

	ids, err := r.client.LRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_annotations").Inc()
		return nil, fmt.Errorf("failed to read annotation index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, annotationEntryKey(competitorID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		metrics.RedisOperationErrors.WithLabelValues("get_annotations").Inc()
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}

	annotations := make([]*models.TrackAnnotation, 0, len(ids))
	for i, id := range ids {
		data, err := cmds[i].Result()
		if err != nil || len(data) == 0 {
			continue
		}
		annotations = append(annotations, r.mapToAnnotation(competitorID, id, data))
	}

	metrics.RedisOperationDuration.WithLabelValues("get_annotations").Observe(time.Since(start).Seconds())
	return annotations, nil
}

// SaveGateCrossing добавляет пересечение гейта в ленту участника
func (r *RedisRepository) SaveGateCrossing(ctx context.Context, crossing *models.GateCrossing) error {
	if crossing == nil {
		return fmt.Errorf("gate crossing cannot be nil")
	}

	data, err := json.Marshal(crossing)
	if err != nil {
		return fmt.Errorf("failed to marshal gate crossing: %w", err)
	}

	crossingKey := GateCrossingPrefix + strconv.Itoa(crossing.CompetitorID)
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, crossingKey, data)
	pipe.Expire(ctx, crossingKey, LiveDataTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_gate_crossing").Inc()
		return fmt.Errorf("failed to save gate crossing: %w", err)
	}

	return nil
}

// GetGateCrossings возвращает пересечения гейтов участника в порядке маршрута
func (r *RedisRepository) GetGateCrossings(ctx context.Context, competitorID int) ([]*models.GateCrossing, error) {
	crossingKey := GateCrossingPrefix + strconv.Itoa(competitorID)

	raw, err := r.client.LRange(ctx, crossingKey, 0, -1).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_gate_crossings").Inc()
		return nil, fmt.Errorf("failed to read gate crossings: %w", err)
	}

	crossings := make([]*models.GateCrossing, 0, len(raw))
	for _, item := range raw {
		var crossing models.GateCrossing
		if err := json.Unmarshal([]byte(item), &crossing); err != nil {
			r.logger.WithField("competitor_id", competitorID).WithField("error", err).
				Warn("Failed to unmarshal gate crossing")
			continue
		}
		crossings = append(crossings, &crossing)
	}

	return crossings, nil
}

// IncrementScore атомарно двигает накопленную сумму участника на
// дельту и возвращает новое значение. Сумма живет отдельным полем
// хэша состояния и меняется только инкрементами, поэтому внешние
// правки суммы не теряются.
func (r *RedisRepository) IncrementScore(ctx context.Context, competitorID int, delta float64) (float64, error) {
	start := time.Now()
	stateKey := StatePrefix + strconv.Itoa(competitorID)

	total, err := r.client.HIncrByFloat(ctx, stateKey, "score", delta).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("increment_score").Inc()
		return 0, fmt.Errorf("failed to increment score: %w", err)
	}
	r.client.Expire(ctx, stateKey, LiveDataTTL)

	metrics.RedisOperationDuration.WithLabelValues("increment_score").Observe(time.Since(start).Seconds())
	return total, nil
}

// SaveCompetitorState сохраняет публичное состояние участника.
// Поле суммы очков не трогается, оно ведется через IncrementScore.
func (r *RedisRepository) SaveCompetitorState(ctx context.Context, state *models.CompetitorState) error {
	if state == nil {
		return fmt.Errorf("competitor state cannot be nil")
	}

	start := time.Now()
	stateKey := StatePrefix + strconv.Itoa(state.CompetitorID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, stateKey, map[string]interface{}{
		"tracking_state":        state.TrackingState,
		"last_gate":             state.LastGate,
		"last_gate_time_offset": state.LastGateTimeOffset,
		"past_starting_gate":    state.PastStartingGate,
		"past_finish_gate":      state.PastFinishGate,
		"calculating":           state.Calculating,
		"updated_at":            state.UpdatedAt.UnixMilli(),
	})
	pipe.Expire(ctx, stateKey, LiveDataTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_state").Inc()
		return fmt.Errorf("failed to save competitor state: %w", err)
	}

	metrics.RedisOperationDuration.WithLabelValues("save_state").Observe(time.Since(start).Seconds())
	return nil
}

// GetCompetitorState возвращает состояние участника или nil, если расчета еще не было
func (r *RedisRepository) GetCompetitorState(ctx context.Context, competitorID int) (*models.CompetitorState, error) {
	stateKey := StatePrefix + strconv.Itoa(competitorID)

	data, err := r.client.HGetAll(ctx, stateKey).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_state").Inc()
		return nil, fmt.Errorf("failed to read competitor state: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	state := &models.CompetitorState{
		CompetitorID:       competitorID,
		TrackingState:      data["tracking_state"],
		LastGate:           data["last_gate"],
		LastGateTimeOffset: data["last_gate_time_offset"],
	}
	if score, err := strconv.ParseFloat(data["score"], 64); err == nil {
		state.Score = score
	}
	if past, err := strconv.ParseBool(data["past_starting_gate"]); err == nil {
		state.PastStartingGate = past
	}
	if past, err := strconv.ParseBool(data["past_finish_gate"]); err == nil {
		state.PastFinishGate = past
	}
	if calculating, err := strconv.ParseBool(data["calculating"]); err == nil {
		state.Calculating = calculating
	}
	if state.Calculating {
		// Флаг достоверен только пока жив heartbeat воркера
		alive, err := r.client.Exists(ctx, HeartbeatPrefix+strconv.Itoa(competitorID)).Result()
		if err != nil || alive == 0 {
			state.Calculating = false
		}
	}
	if ts, err := strconv.ParseInt(data["updated_at"], 10, 64); err == nil {
		state.UpdatedAt = time.UnixMilli(ts).UTC()
	}

	return state, nil
}

// trackPoint компактное представление точки трека в Redis
type trackPoint struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Alt    float64 `json:"alt,omitempty"`
	Speed  float64 `json:"speed,omitempty"`
	Course float64 `json:"course,omitempty"`
	Ts     int64   `json:"ts"`
	Gh     string  `json:"gh,omitempty"`
}

// SaveCompetitorPosition добавляет точку в трек участника и обновляет GEO индекс
func (r *RedisRepository) SaveCompetitorPosition(ctx context.Context, competitorID int, position *models.Position) error {
	if position == nil {
		return fmt.Errorf("position cannot be nil")
	}

	start := time.Now()
	trackKey := TrackPrefix + strconv.Itoa(competitorID)

	point := trackPoint{
		Lat:    position.Latitude,
		Lon:    position.Longitude,
		Alt:    position.Altitude,
		Speed:  position.Speed,
		Course: position.Course,
		Ts:     position.Time.UnixMilli(),
		Gh:     position.Point().Geohash(8),
	}
	data, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("failed to marshal track point: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.RPush(ctx, trackKey, data)
	pipe.LTrim(ctx, trackKey, -MaxTrackPoints, -1)
	pipe.Expire(ctx, trackKey, LiveDataTTL)
	pipe.GeoAdd(ctx, CompetitorsGeoKey, &redis.GeoLocation{
		Name:      strconv.Itoa(competitorID),
		Latitude:  position.Latitude,
		Longitude: position.Longitude,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_position").Inc()
		return fmt.Errorf("failed to save competitor position: %w", err)
	}

	metrics.RedisOperationDuration.WithLabelValues("save_position").Observe(time.Since(start).Seconds())
	return nil
}

// GetTrack возвращает последние limit точек трека участника в хронологическом
// порядке. limit <= 0 означает весь трек.
func (r *RedisRepository) GetTrack(ctx context.Context, competitorID int, limit int) ([]*models.Position, error) {
	trackKey := TrackPrefix + strconv.Itoa(competitorID)

	from := int64(0)
	if limit > 0 {
		from = int64(-limit)
	}
	raw, err := r.client.LRange(ctx, trackKey, from, -1).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_track").Inc()
		return nil, fmt.Errorf("failed to read track: %w", err)
	}

	positions := make([]*models.Position, 0, len(raw))
	for _, item := range raw {
		var point trackPoint
		if err := json.Unmarshal([]byte(item), &point); err != nil {
			r.logger.WithField("competitor_id", competitorID).WithField("error", err).
				Warn("Failed to unmarshal track point")
			continue
		}
		positions = append(positions, &models.Position{
			Time:      time.UnixMilli(point.Ts).UTC(),
			Latitude:  point.Lat,
			Longitude: point.Lon,
			Altitude:  point.Alt,
			Speed:     point.Speed,
			Course:    point.Course,
		})
	}

	return positions, nil
}

// RequestTermination выставляет флаг досрочного завершения расчета участника.
// Воркер опрашивает флаг и заканчивает расчет на текущей позиции.
func (r *RedisRepository) RequestTermination(ctx context.Context, competitorID int) error {
	terminateKey := TerminatePrefix + strconv.Itoa(competitorID)
	if err := r.client.Set(ctx, terminateKey, "1", LiveDataTTL).Err(); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("request_termination").Inc()
		return fmt.Errorf("failed to request termination: %w", err)
	}

	r.logger.WithField("competitor_id", competitorID).Info("Termination requested")
	return nil
}

// IsTerminationRequested проверяет флаг досрочного завершения
func (r *RedisRepository) IsTerminationRequested(ctx context.Context, competitorID int) (bool, error) {
	terminateKey := TerminatePrefix + strconv.Itoa(competitorID)
	exists, err := r.client.Exists(ctx, terminateKey).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("is_termination_requested").Inc()
		return false, fmt.Errorf("failed to check termination flag: %w", err)
	}
	return exists > 0, nil
}

// Heartbeat обновляет отметку живости расчетного воркера участника
func (r *RedisRepository) Heartbeat(ctx context.Context, competitorID int) error {
	heartbeatKey := HeartbeatPrefix + strconv.Itoa(competitorID)
	if err := r.client.Set(ctx, heartbeatKey, time.Now().UnixMilli(), HeartbeatTTL).Err(); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("heartbeat").Inc()
		return fmt.Errorf("failed to set heartbeat: %w", err)
	}
	return nil
}

func scoreEntryKey(competitorID int, id string) string {
	return fmt.Sprintf("%s%d:%s", ScoreLogPrefix, competitorID, id)
}

func annotationEntryKey(competitorID int, id string) string {
	return fmt.Sprintf("%s%d:%s", AnnotationPrefix, competitorID, id)
}

// scoreEntryFields конвертирует запись журнала в HSET поля
func scoreEntryFields(entry *models.ScoreLogEntry) map[string]interface{} {
	fields := map[string]interface{}{
		"time":          entry.Time.UnixMilli(),
		"gate":          entry.Gate,
		"message":       entry.Message,
		"points":        entry.Points,
		"offset":        entry.Offset,
		"type":          entry.Type,
		"score_type":    entry.ScoreType,
		"maximum_score": entry.MaximumScore,
		"latitude":      entry.Latitude,
		"longitude":     entry.Longitude,
		"times_updated": entry.TimesUpdated,
	}
	if entry.Planned != nil {
		fields["planned"] = entry.Planned.UnixMilli()
	}
	if entry.Actual != nil {
		fields["actual"] = entry.Actual.UnixMilli()
	}
	return fields
}

// mapToScoreEntry конвертирует HSET данные в запись журнала
func (r *RedisRepository) mapToScoreEntry(competitorID int, id string, data map[string]string) *models.ScoreLogEntry {
	entry := &models.ScoreLogEntry{
		ID:           id,
		CompetitorID: competitorID,
		Gate:         data["gate"],
		Message:      data["message"],
		Offset:       data["offset"],
		Type:         data["type"],
		ScoreType:    data["score_type"],
	}

	if ts, err := strconv.ParseInt(data["time"], 10, 64); err == nil {
		entry.Time = time.UnixMilli(ts).UTC()
	}
	if points, err := strconv.ParseFloat(data["points"], 64); err == nil {
		entry.Points = points
	}
	if maximum, err := strconv.ParseFloat(data["maximum_score"], 64); err == nil {
		entry.MaximumScore = maximum
	}
	if lat, err := strconv.ParseFloat(data["latitude"], 64); err == nil {
		entry.Latitude = lat
	}
	if lon, err := strconv.ParseFloat(data["longitude"], 64); err == nil {
		entry.Longitude = lon
	}
	if updated, err := strconv.Atoi(data["times_updated"]); err == nil {
		entry.TimesUpdated = updated
	}
	if ts, err := strconv.ParseInt(data["planned"], 10, 64); err == nil {
		planned := time.UnixMilli(ts).UTC()
		entry.Planned = &planned
	}
	if ts, err := strconv.ParseInt(data["actual"], 10, 64); err == nil {
		actual := time.UnixMilli(ts).UTC()
		entry.Actual = &actual
	}

	return entry
}

// mapToAnnotation конвертирует HSET данные в аннотацию трека
func (r *RedisRepository) mapToAnnotation(competitorID int, id string, data map[string]string) *models.TrackAnnotation {
	annotation := &models.TrackAnnotation{
		ID:           id,
		CompetitorID: competitorID,
		Message:      data["message"],
		Type:         data["type"],
		GateName:     data["gate"],
		ScoreLogID:   data["score_log_id"],
	}

	if lat, err := strconv.ParseFloat(data["latitude"], 64); err == nil {
		annotation.Latitude = lat
	}
	if lon, err := strconv.ParseFloat(data["longitude"], 64); err == nil {
		annotation.Longitude = lon
	}
	if ts, err := strconv.ParseInt(data["time"], 10, 64); err == nil {
		annotation.Time = time.UnixMilli(ts).UTC()
	}

	return annotation
}
