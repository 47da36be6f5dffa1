package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

// positionPayload представляет JSON тело MQTT сообщения трекера
type positionPayload struct {
	// Time время фиксации позиции, RFC3339. Если пусто, берется Timestamp.
	Time string `json:"time,omitempty"`
	// Timestamp время фиксации в миллисекундах Unix, запасной вариант
	Timestamp int64   `json:"timestamp,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude,omitempty"` // метры MSL
	Speed     float64 `json:"speed,omitempty"`    // км/ч
	Course    float64 `json:"course,omitempty"`   // градусы
	Battery   float64 `json:"battery,omitempty"`  // проценты
}

// Parser парсер сообщений трекеров из MQTT
type Parser struct {
	logger *utils.Logger
}

// NewParser создает новый парсер сообщений трекеров
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{
		logger: logger,
	}
}

// Parse парсит MQTT сообщение и извлекает позицию трекера.
// ID устройства берется из топика: tracking/{device_id}/position.
func (p *Parser) Parse(topic string, payload []byte) (*models.Position, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "tracking" || parts[2] != "position" {
		return nil, fmt.Errorf("invalid topic format: %s", topic)
	}
	deviceID := parts[1]
	if deviceID == "" {
		return nil, fmt.Errorf("empty device id in topic: %s", topic)
	}

	var body positionPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("invalid position payload: %w", err)
	}

	stamp, err := p.parseTime(&body)
	if err != nil {
		return nil, err
	}

	position := &models.Position{
		DeviceID:              deviceID,
		Time:                  stamp,
		Latitude:              body.Latitude,
		Longitude:             body.Longitude,
		Altitude:              body.Altitude,
		Speed:                 body.Speed,
		Course:                normalizeCourse(body.Course),
		Battery:               body.Battery,
		ProcessorReceivedTime: time.Now().UTC(),
	}

	if err := position.Validate(); err != nil {
		return nil, fmt.Errorf("invalid position from %s: %w", deviceID, err)
	}

	return position, nil
}

func (p *Parser) parseTime(body *positionPayload) (time.Time, error) {
	if body.Time != "" {
		stamp, err := time.Parse(time.RFC3339, body.Time)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid position time %q: %w", body.Time, err)
		}
		return stamp.UTC(), nil
	}
	if body.Timestamp > 0 {
		return time.UnixMilli(body.Timestamp).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("position has no time")
}

// normalizeCourse приводит курс к диапазону [0, 360)
func normalizeCourse(course float64) float64 {
	for course < 0 {
		course += 360
	}
	for course >= 360 {
		course -= 360
	}
	return course
}
