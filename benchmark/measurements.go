package benchmark

import (
	"iter"
	"slices"
)

// Measurements collects durations in milliseconds per kind across runs.
type Measurements struct {
	values map[Kind][]int64
}

func NewMeasurements() *Measurements {
	return &Measurements{values: make(map[Kind][]int64)}
}

// Record appends a duration. Durations are kept in recording order.
func (m *Measurements) Record(kind Kind, millis int64) {
	m.values[kind] = append(m.values[kind], millis)
}

func (m *Measurements) discardLast(kind Kind) {
	if values := m.values[kind]; len(values) > 0 {
		m.values[kind] = values[:len(values)-1]
	}
}

// Values returns a copy of the durations recorded for the given kind.
func (m *Measurements) Values(kind Kind) []int64 {
	return slices.Clone(m.values[kind])
}

// Median returns the median of the durations recorded for the given kind. The
// recorded order is left untouched.
func (m *Measurements) Median(kind Kind) (float64, bool) {
	return Median(m.values[kind])
}

// Kinds yields kinds which have at least one measurement, in declaration
// order.
func (m *Measurements) Kinds() iter.Seq[Kind] {
	return func(yield func(Kind) bool) {
		for _, kind := range Kinds() {
			if len(m.values[kind]) == 0 {
				continue
			}
			if !yield(kind) {
				return
			}
		}
	}
}

// Median returns the median of the values without modifying them. Returns
// false if there are no values.
func Median(unsorted []int64) (float64, bool) {
	if len(unsorted) == 0 {
		return 0, false
	}

	sorted := slices.Clone(unsorted)
	slices.Sort(sorted)

	middle := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[middle]), true
	}
	return (float64(sorted[middle-1]) + float64(sorted[middle])) / 2, true
}
