package models

import (
	"fmt"
	"time"
)

// Position представляет одну телеметрическую позицию трекера
type Position struct {
	DeviceID  string    `json:"device_id"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`  // метры MSL
	Speed     float64   `json:"speed"`     // км/ч
	Course    float64   `json:"course"`    // градусы, 0-360
	Battery   float64   `json:"battery"`   // проценты
	// Синтетическая позиция, построенная интерполяцией между
	// двумя реальными сэмплами. В исходный трек не сохраняется.
	Interpolated bool `json:"interpolated,omitempty"`
	// ProcessorReceivedTime время приема позиции бэкендом
	ProcessorReceivedTime time.Time `json:"processor_received_time,omitempty"`
	// CalculatorReceivedTime время извлечения позиции из очереди воркера
	CalculatorReceivedTime time.Time `json:"calculator_received_time,omitempty"`
}

// Validate проверяет корректность позиции
func (p *Position) Validate() error {
	if p.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if p.Time.IsZero() {
		return fmt.Errorf("time is required")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %f", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %f", p.Longitude)
	}
	if p.Speed < 0 {
		return fmt.Errorf("invalid speed: %f", p.Speed)
	}
	if p.Course < 0 || p.Course >= 360 {
		return fmt.Errorf("invalid course: %f", p.Course)
	}
	return nil
}

// Point возвращает географическую точку позиции
func (p *Position) Point() GeoPoint {
	return GeoPoint{Latitude: p.Latitude, Longitude: p.Longitude}
}

// SameCoordinates сообщает, совпадают ли координаты с другой позицией.
// Используется для отбрасывания дубликатов из живого потока.
func (p *Position) SameCoordinates(other *Position) bool {
	return p.Latitude == other.Latitude && p.Longitude == other.Longitude
}
