package strategy

// Source yields uniform draws in [0,1). *math/rand/v2.Rand satisfies it.
type Source interface {
	Float64() float64
}

// SourceFunc adapts a function to Source.
type SourceFunc func() float64

func (f SourceFunc) Float64() float64 { return f() }

// Select walks table in order, accumulating weights, and returns the first kind whose
// cumulative weight is >= r. When the weights sum below r nothing is selected and ok
// is false; the caller skips the action for that iteration.
func Select(table WeightTable, r float64) (kind Kind, ok bool) {
	var cumulative float64
	for _, w := range table {
		cumulative += w.Value
		if cumulative >= r {
			return w.Kind, true
		}
	}
	return "", false
}

// Choose draws from src and selects from table.
func Choose(table WeightTable, src Source) (Kind, bool) {
	return Select(table, src.Float64())
}
