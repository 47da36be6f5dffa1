package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreAccumulator(t *testing.T) {
	t.Run("accumulation without maximum", func(t *testing.T) {
		a := NewScoreAccumulator()
		awarded, capped := a.Award(100, "gate_score", -1, 0)
		assert.Equal(t, 100.0, awarded)
		assert.False(t, capped)

		awarded, capped = a.Award(250, "gate_score", -1, 0)
		assert.Equal(t, 250.0, awarded)
		assert.False(t, capped)
		assert.Equal(t, 350.0, a.Total("gate_score"))
	})

	t.Run("capped at maximum", func(t *testing.T) {
		a := NewScoreAccumulator()
		awarded, capped := a.Award(300, "backtracking", 400, 0)
		assert.Equal(t, 300.0, awarded)
		assert.False(t, capped)

		// второе начисление упирается в предел 400
		awarded, capped = a.Award(300, "backtracking", 400, 0)
		assert.Equal(t, 100.0, awarded)
		assert.True(t, capped)
		assert.Equal(t, 400.0, a.Total("backtracking"))

		// дальше начислять нечего
		awarded, capped = a.Award(200, "backtracking", 400, 0)
		assert.Equal(t, 0.0, awarded)
		assert.True(t, capped)
		assert.Equal(t, 400.0, a.Total("backtracking"))
	})

	t.Run("landing exactly on maximum is capped", func(t *testing.T) {
		a := NewScoreAccumulator()
		awarded, capped := a.Award(400, "backtracking", 400, 0)
		assert.Equal(t, 400.0, awarded)
		assert.True(t, capped)
		assert.Equal(t, 400.0, a.Total("backtracking"))
	})

	t.Run("correction does not inflate total", func(t *testing.T) {
		a := NewScoreAccumulator()
		// растущий штраф за коридор: 3, потом 6, потом 9 очков
		awarded, _ := a.Award(3, "outside_corridor", -1, 0)
		assert.Equal(t, 3.0, awarded)
		awarded, _ = a.Award(6, "outside_corridor", -1, 3)
		assert.Equal(t, 6.0, awarded)
		awarded, _ = a.Award(9, "outside_corridor", -1, 6)
		assert.Equal(t, 9.0, awarded)
		assert.Equal(t, 9.0, a.Total("outside_corridor"))
	})

	t.Run("correction with maximum", func(t *testing.T) {
		a := NewScoreAccumulator()
		awarded, capped := a.Award(350, "outside_corridor", 400, 0)
		assert.Equal(t, 350.0, awarded)
		assert.False(t, capped)

		awarded, capped = a.Award(500, "outside_corridor", 400, 350)
		assert.Equal(t, 400.0, awarded)
		assert.True(t, capped)
		assert.Equal(t, 400.0, a.Total("outside_corridor"))
	})

	t.Run("score types are independent", func(t *testing.T) {
		a := NewScoreAccumulator()
		a.Award(400, "backtracking", 400, 0)
		awarded, capped := a.Award(100, "gate_score", -1, 0)
		assert.Equal(t, 100.0, awarded)
		assert.False(t, capped)
	})
}
