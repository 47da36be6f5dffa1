package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorecardByName(t *testing.T) {
	t.Run("precision scorecard", func(t *testing.T) {
		s, err := ScorecardByName(ScorecardFAIPrecision2020)
		require.NoError(t, err)
		assert.Equal(t, CalculatorPrecision, s.Calculator)
		assert.True(t, s.UseProcedureTurns)
	})

	t.Run("anr scorecard", func(t *testing.T) {
		s, err := ScorecardByName(ScorecardFAIANR2017)
		require.NoError(t, err)
		assert.Equal(t, CalculatorANRCorridor, s.Calculator)
		assert.False(t, s.UseProcedureTurns)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := ScorecardByName("FAI Rally 1999")
		assert.Error(t, err)
	})
}

func TestScorecard_PrecisionRules(t *testing.T) {
	s := NewFAIPrecision2020()

	tp := s.ForGateType(WaypointTypeTurningPoint)
	assert.Equal(t, 2.0, tp.GraceTimeBefore)
	assert.Equal(t, 2.0, tp.GraceTimeAfter)
	assert.Equal(t, 3.0, tp.PenaltyPerSecond)
	assert.Equal(t, 100.0, tp.MaximumPenalty)
	assert.Equal(t, 100.0, tp.MissedPenalty)
	assert.Equal(t, 200.0, tp.MissedProcedureTurnPenalty)

	sp := s.ForGateType(WaypointTypeStartingPoint)
	assert.Equal(t, 2.0, sp.ExtendedGateWidth)
	assert.Equal(t, 200.0, sp.BadCrossingExtendedGatePenalty)

	to := s.ForGateType(WaypointTypeTakeoffGate)
	assert.Equal(t, 60.0, to.GraceTimeAfter)
	assert.Equal(t, 200.0, to.PenaltyPerSecond)

	// Обратный полет без предела накопления
	assert.Equal(t, 200.0, s.BacktrackingPenalty)
	assert.Less(t, s.BacktrackingMaximumPenalty, 0.0)
	assert.Equal(t, 5.0, s.BacktrackingGraceTimeSeconds)
	assert.Equal(t, 200.0, s.ProhibitedZonePenalty)
}

func TestScorecard_ANRRules(t *testing.T) {
	s := NewFAIANR2017()

	assert.Equal(t, 5.0, s.CorridorGraceTime)
	assert.Equal(t, 3.0, s.CorridorOutsidePenalty)
	assert.Less(t, s.CorridorOutsideMaximumPenalty, 0.0)

	assert.Equal(t, 400.0, s.BacktrackingMaximumPenalty)

	sp := s.ForGateType(WaypointTypeStartingPoint)
	assert.Equal(t, 0.6, sp.ExtendedGateWidth)
	assert.Equal(t, 1.0, sp.GraceTimeBefore)
}

func TestScorecard_ForGateType(t *testing.T) {
	s := NewFAIPrecision2020()

	t.Run("secret gates fall back to turning point rules", func(t *testing.T) {
		anr := NewFAIANR2017()
		// В ANR нет записи для secret и tp, возвращается пустая запись
		assert.Equal(t, GateScore{}, anr.ForGateType(WaypointTypeSecret))

		// В precision у secret собственная запись
		assert.Equal(t, s.GateScores[WaypointTypeSecret], s.ForGateType(WaypointTypeSecret))
	})

	t.Run("intermediate gates use turning point rules", func(t *testing.T) {
		assert.Equal(t, s.GateScores[WaypointTypeTurningPoint], s.ForGateType(WaypointTypeIntermediateStart))
		assert.Equal(t, s.GateScores[WaypointTypeTurningPoint], s.ForGateType(WaypointTypeIntermediateFinish))
	})

	t.Run("unknown type gives empty record", func(t *testing.T) {
		assert.Equal(t, GateScore{}, s.ForGateType("zzz"))
	})
}
