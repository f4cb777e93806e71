package stats

import (
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
)

// #region aggregator
// Aggregator counts abnormal (state 1) and normal (state 0) observations per
// evidence variable. It is not safe for concurrent use: give each worker its
// own Aggregator and Merge them when the batch is done.
type Aggregator struct {
	total  int
	counts map[string]*counts
}

type counts struct {
	present int
	absent  int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(map[string]*counts)}
}

// Add records one discretized record. States other than 0 and 1 are counted
// toward the total only.
func (a *Aggregator) Add(ev infer.Evidence) {
	a.total++
	for name, state := range ev {
		c := a.counts[name]
		if c == nil {
			c = &counts{}
			a.counts[name] = c
		}
		switch state {
		case 1:
			c.present++
		case 0:
			c.absent++
		}
	}
}

// Merge folds other's counts into a.
func (a *Aggregator) Merge(other *Aggregator) {
	a.total += other.total
	for name, oc := range other.counts {
		c := a.counts[name]
		if c == nil {
			c = &counts{}
			a.counts[name] = c
		}
		c.present += oc.present
		c.absent += oc.absent
	}
}

// Total returns the number of records added.
func (a *Aggregator) Total() int { return a.total }

// Report converts the counts to percentages of the total record count.
func (a *Aggregator) Report() (Report, error) {
	if a.total <= 0 {
		return Report{}, &InsufficientBatchDataError{Records: a.total}
	}
	r := Report{Total: a.total, Variables: make(map[string]VariableStats, len(a.counts))}
	total := float64(a.total)
	for name, c := range a.counts {
		r.Variables[name] = VariableStats{
			Present:        c.present,
			Absent:         c.absent,
			PresentPercent: float64(c.present) / total * 100,
			AbsentPercent:  float64(c.absent) / total * 100,
		}
	}
	return r, nil
}

// #endregion aggregator

// #region aggregate
// Aggregate reports on a whole batch at once.
func Aggregate(batch []infer.Evidence) (Report, error) {
	a := NewAggregator()
	for _, ev := range batch {
		a.Add(ev)
	}
	return a.Report()
}

// #endregion aggregate
