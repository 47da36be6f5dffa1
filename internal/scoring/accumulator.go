package scoring

// ScoreAccumulator накапливает суммы начислений по типам и применяет
// пределы из scorecard. При коррекции прошлой записи сначала
// вычитается прежнее значение, поэтому повторное начисление того же
// штрафа не раздувает сумму.
type ScoreAccumulator struct {
	totals map[string]float64
}

// NewScoreAccumulator создает пустой аккумулятор
func NewScoreAccumulator() *ScoreAccumulator {
	return &ScoreAccumulator{totals: make(map[string]float64)}
}

// Award применяет начисление points типа scoreType с учетом предела
// maximum (значение < 0 означает без предела). previous это уже
// учтенное значение корректируемой записи. Возвращает фактически
// начисленные очки и признак срезания по пределу.
func (a *ScoreAccumulator) Award(points float64, scoreType string, maximum, previous float64) (float64, bool) {
	total := a.totals[scoreType] - previous + points
	capped := false
	if maximum >= 0 && total >= maximum {
		points -= total - maximum
		total = maximum
		capped = true
	}
	a.totals[scoreType] = total
	return points, capped
}

// Total возвращает накопленную сумму по типу начисления
func (a *ScoreAccumulator) Total(scoreType string) float64 {
	return a.totals[scoreType]
}
