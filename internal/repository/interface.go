package repository

import (
	"context"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/models"
)

// LiveRepository интерфейс живого хранилища расчета (Redis).
// Пишется воркерами расчета, читается REST API и WebSocket слоем.
type LiveRepository interface {
	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	// Журнал очков
	SaveScoreEntry(ctx context.Context, entry *models.ScoreLogEntry) error
	UpdateScoreEntry(ctx context.Context, entry *models.ScoreLogEntry, delta float64) error
	GetScoreLog(ctx context.Context, competitorID int) ([]*models.ScoreLogEntry, error)

	// Аннотации трека
	SaveAnnotation(ctx context.Context, annotation *models.TrackAnnotation) error
	UpdateAnnotation(ctx context.Context, annotation *models.TrackAnnotation) error
	GetAnnotations(ctx context.Context, competitorID int) ([]*models.TrackAnnotation, error)

	// Пересечения ворот
	SaveGateCrossing(ctx context.Context, crossing *models.GateCrossing) error
	GetGateCrossings(ctx context.Context, competitorID int) ([]*models.GateCrossing, error)

	// Текущее состояние участника. Накопленная сумма очков меняется
	// только инкрементами, чтобы внешние правки не затирались.
	SaveCompetitorState(ctx context.Context, state *models.CompetitorState) error
	GetCompetitorState(ctx context.Context, competitorID int) (*models.CompetitorState, error)
	IncrementScore(ctx context.Context, competitorID int, delta float64) (float64, error)

	// Трек участника
	SaveCompetitorPosition(ctx context.Context, competitorID int, position *models.Position) error
	GetTrack(ctx context.Context, competitorID int, limit int) ([]*models.Position, error)

	// Досрочное завершение расчета
	RequestTermination(ctx context.Context, competitorID int) error
	IsTerminationRequested(ctx context.Context, competitorID int) (bool, error)

	// Отметка живости воркера
	Heartbeat(ctx context.Context, competitorID int) error
}

// TaskRepository интерфейс справочных данных соревнования (MySQL).
type TaskRepository interface {
	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	// Участники и маршруты
	LoadCompetitors(ctx context.Context) ([]*models.Competitor, error)
	GetCompetitor(ctx context.Context, id int) (*models.Competitor, error)
	LoadRoute(ctx context.Context, routeID int) (*models.Route, error)

	// История позиций трекеров
	GetPositionsForDevice(ctx context.Context, deviceID string, from, to time.Time) ([]*models.Position, error)
}
