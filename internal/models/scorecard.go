package models

import "fmt"

// Имена калькуляторов, которые умеет собирать движок
const (
	CalculatorPrecision   = "precision"
	CalculatorANRCorridor = "anr_corridor"
)

// GateScore содержит параметры начисления штрафов для одного типа гейта
type GateScore struct {
	ExtendedGateWidth              float64 `json:"extended_gate_width"` // NM
	BadCrossingExtendedGatePenalty float64 `json:"bad_crossing_extended_gate_penalty"`
	GraceTimeBefore                float64 `json:"grace_time_before"` // секунды
	GraceTimeAfter                 float64 `json:"grace_time_after"`  // секунды
	MaximumPenalty                 float64 `json:"maximum_penalty"`
	PenaltyPerSecond               float64 `json:"penalty_per_second"`
	MissedPenalty                  float64 `json:"missed_penalty"`
	MissedProcedureTurnPenalty     float64 `json:"missed_procedure_turn_penalty"`
}

// Scorecard содержит полный набор правил начисления штрафов задачи
type Scorecard struct {
	Name       string `json:"name"`
	Calculator string `json:"calculator"`

	UseProcedureTurns bool `json:"use_procedure_turns"`

	BacktrackingPenalty          float64 `json:"backtracking_penalty"`
	BacktrackingMaximumPenalty   float64 `json:"backtracking_maximum_penalty"` // < 0 означает без предела
	BacktrackingGraceTimeSeconds float64 `json:"backtracking_grace_time_seconds"`
	BacktrackingBearingDifference float64 `json:"backtracking_bearing_difference"`

	// Параметры коридора для ANR
	CorridorGraceTime             float64 `json:"corridor_grace_time"` // секунды
	CorridorOutsidePenalty        float64 `json:"corridor_outside_penalty"` // очков в секунду
	CorridorOutsideMaximumPenalty float64 `json:"corridor_outside_maximum_penalty"` // < 0 означает без предела

	ProhibitedZonePenalty float64 `json:"prohibited_zone_penalty"`

	GateScores map[string]GateScore `json:"gate_scores"`
}

// ForGateType возвращает параметры начисления для типа гейта.
// Секретные гейты без собственной записи считаются как обычные tp.
func (s *Scorecard) ForGateType(gateType string) GateScore {
	if gs, ok := s.GateScores[gateType]; ok {
		return gs
	}
	if gateType == WaypointTypeSecret || gateType == WaypointTypeIntermediateStart ||
		gateType == WaypointTypeIntermediateFinish {
		if gs, ok := s.GateScores[WaypointTypeTurningPoint]; ok {
			return gs
		}
	}
	return GateScore{}
}

// Имена встроенных scorecard
const (
	ScorecardFAIPrecision2020 = "FAI Precision 2020"
	ScorecardFAIANR2017       = "FAI ANR 2017"
)

// ScorecardByName возвращает встроенную scorecard по имени
func ScorecardByName(name string) (*Scorecard, error) {
	switch name {
	case ScorecardFAIPrecision2020:
		return NewFAIPrecision2020(), nil
	case ScorecardFAIANR2017:
		return NewFAIANR2017(), nil
	}
	return nil, fmt.Errorf("unknown scorecard: %s", name)
}

// NewFAIPrecision2020 собирает scorecard точной навигации по правилам FAI 2020
func NewFAIPrecision2020() *Scorecard {
	regular := GateScore{
		ExtendedGateWidth:          6,
		GraceTimeBefore:            2,
		GraceTimeAfter:             2,
		MaximumPenalty:             100,
		PenaltyPerSecond:           3,
		MissedPenalty:              100,
		MissedProcedureTurnPenalty: 200,
	}
	return &Scorecard{
		Name:       ScorecardFAIPrecision2020,
		Calculator: CalculatorPrecision,

		UseProcedureTurns: true,

		BacktrackingPenalty:           200,
		BacktrackingMaximumPenalty:    -1,
		BacktrackingGraceTimeSeconds:  5,
		BacktrackingBearingDifference: 90,

		ProhibitedZonePenalty: 200,

		GateScores: map[string]GateScore{
			WaypointTypeTurningPoint: regular,
			WaypointTypeSecret:       regular,
			WaypointTypeFinishPoint:  regular,
			WaypointTypeStartingPoint: {
				ExtendedGateWidth:              2,
				BadCrossingExtendedGatePenalty: 200,
				GraceTimeBefore:                2,
				GraceTimeAfter:                 2,
				MaximumPenalty:                 100,
				PenaltyPerSecond:               3,
				MissedPenalty:                  100,
				MissedProcedureTurnPenalty:     200,
			},
			WaypointTypeTakeoffGate: {
				GraceTimeBefore:  0,
				GraceTimeAfter:   60,
				PenaltyPerSecond: 200,
				MaximumPenalty:   200,
				MissedPenalty:    200,
			},
			WaypointTypeLandingGate: {},
		},
	}
}

// NewFAIANR2017 собирает scorecard воздушной навигационной гонки FAI 2017
func NewFAIANR2017() *Scorecard {
	return &Scorecard{
		Name:       ScorecardFAIANR2017,
		Calculator: CalculatorANRCorridor,

		BacktrackingPenalty:           200,
		BacktrackingMaximumPenalty:    400,
		BacktrackingGraceTimeSeconds:  5,
		BacktrackingBearingDifference: 90,

		CorridorGraceTime:             5,
		CorridorOutsidePenalty:        3,
		CorridorOutsideMaximumPenalty: -1,

		ProhibitedZonePenalty: 200,

		GateScores: map[string]GateScore{
			WaypointTypeFinishPoint: {
				GraceTimeBefore:  1,
				GraceTimeAfter:   1,
				MaximumPenalty:   200,
				PenaltyPerSecond: 3,
				MissedPenalty:    200,
			},
			WaypointTypeStartingPoint: {
				ExtendedGateWidth:              0.6,
				BadCrossingExtendedGatePenalty: 200,
				GraceTimeBefore:                1,
				GraceTimeAfter:                 1,
				MaximumPenalty:                 200,
				PenaltyPerSecond:               3,
				MissedPenalty:                  200,
			},
			WaypointTypeTakeoffGate: {
				GraceTimeAfter:   60,
				PenaltyPerSecond: 200,
				MaximumPenalty:   200,
				MissedPenalty:    200,
			},
			WaypointTypeLandingGate: {},
		},
	}
}
