package models

import "time"

// Типы записей журнала начислений
const (
	ScoreEntryTypeGate        = "gate"
	ScoreEntryTypeAnomaly     = "anomaly"
	ScoreEntryTypeInformation = "information"
)

// Типы начислений, по которым агрегируются суммы
const (
	ScoreTypeGate          = "gate_score"
	ScoreTypeBackwards     = "backwards_starting_line"
	ScoreTypeBacktracking  = "backtracking"
	ScoreTypeProcedureTurn = "procedure_turn"
	ScoreTypeCorridor      = "outside_corridor"
	ScoreTypeProhibited    = "prohibited_zone"
	ScoreTypeTermination   = "termination"
)

// ScoreLogEntry представляет одну запись журнала начислений участника.
// Запись может обновляться задним числом при коррекциях, тогда
// TimesUpdated растет, а сумма участника меняется на дельту.
type ScoreLogEntry struct {
	ID           string     `json:"id"`
	CompetitorID int        `json:"competitor_id"`
	Time         time.Time  `json:"time"`
	Gate         string     `json:"gate,omitempty"`
	Message      string     `json:"message"`
	Points       float64    `json:"points"`
	Planned      *time.Time `json:"planned,omitempty"`
	Actual       *time.Time `json:"actual,omitempty"`
	// Offset человекочитаемое отклонение от планового времени, например "+12 s"
	Offset       string  `json:"offset,omitempty"`
	Type         string  `json:"type"`
	ScoreType    string  `json:"score_type"`
	MaximumScore float64 `json:"maximum_score"` // < 0 означает без предела
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	TimesUpdated int     `json:"times_updated"`
}

// Типы аннотаций трека
const (
	AnnotationAnomaly     = "anomaly"
	AnnotationInformation = "information"
)

// TrackAnnotation представляет метку на треке участника, видимую зрителям
type TrackAnnotation struct {
	ID           string    `json:"id"`
	CompetitorID int       `json:"competitor_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Message      string    `json:"message"`
	Type         string    `json:"type"`
	GateName     string    `json:"gate,omitempty"`
	Time         time.Time `json:"time"`
	// ScoreLogID связывает аннотацию с записью журнала начислений
	ScoreLogID string `json:"score_log_id,omitempty"`
}

// GateCrossing представляет фактическое прохождение гейта для зрителей
type GateCrossing struct {
	CompetitorID int        `json:"competitor_id"`
	Gate         string     `json:"gate"`
	Missed       bool       `json:"missed"`
	Planned      *time.Time `json:"planned,omitempty"`
	Actual       *time.Time `json:"actual,omitempty"`
}

// CompetitorState представляет публичное состояние участника
type CompetitorState struct {
	CompetitorID  int     `json:"competitor_id"`
	Score         float64 `json:"score"`
	TrackingState string  `json:"tracking_state"`
	LastGate      string  `json:"last_gate,omitempty"`
	// LastGateTimeOffset отклонение на последнем временном гейте
	LastGateTimeOffset string `json:"last_gate_time_offset,omitempty"`
	PastStartingGate   bool   `json:"past_starting_gate"`
	PastFinishGate     bool   `json:"past_finish_gate"`
	// Calculating признак живого расчетного воркера
	Calculating bool      `json:"calculating"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DangerLevel представляет текущий уровень опасности участника,
// например близость к границе коридора. Диапазон 0-100.
type DangerLevel struct {
	CompetitorID int       `json:"competitor_id"`
	Level        int       `json:"level"`
	Time         time.Time `json:"time"`
}
