package stats

import (
	"errors"
	"sort"
)

// ErrInsufficientBatchData matches every *InsufficientBatchDataError.
var ErrInsufficientBatchData = errors.New("insufficient batch data")

// #region report
// VariableStats is the share of records that observed a variable abnormal
// (present) or normal (absent), in percent.
type VariableStats struct {
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	PresentPercent float64 `json:"present_percent"`
	AbsentPercent  float64 `json:"absent_percent"`
}

// Report is the per-variable summary of a batch.
type Report struct {
	Total     int                      `json:"total_records"`
	Variables map[string]VariableStats `json:"variables"`
}

// Names returns the reported variables sorted by name.
func (r Report) Names() []string {
	out := make([]string, 0, len(r.Variables))
	for n := range r.Variables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// #endregion report

// #region errors
// InsufficientBatchDataError is returned when a report is requested over zero records.
type InsufficientBatchDataError struct {
	Records int
}

func (e *InsufficientBatchDataError) Error() string {
	return "cannot report on an empty batch: need at least one record"
}

func (e *InsufficientBatchDataError) Is(target error) bool {
	return target == ErrInsufficientBatchData
}

// #endregion errors
