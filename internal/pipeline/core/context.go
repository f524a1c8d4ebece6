package core

import "time"

// DataContext is the mutable record threaded through one pipeline run.
// Exactly one context exists per run and stages never execute
// concurrently within a run, so no locking is needed here. Input holds
// the previous stage's Output; Metadata is shared read/write across all
// stages; Stats keys may be overwritten by later stages.
type DataContext struct {
	Input     interface{}
	Output    interface{}
	Metadata  map[string]interface{}
	Stats     map[string]float64
	Errors    []string
	Warnings  []string
	StartedAt time.Time
	EndedAt   time.Time
}

// NewDataContext creates the context for a pipeline run
func NewDataContext(input interface{}, metadata map[string]interface{}) *DataContext {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &DataContext{
		Input:     input,
		Metadata:  metadata,
		Stats:     make(map[string]float64),
		StartedAt: time.Now(),
	}
}

// AddError appends an error message. The error list is append-only.
func (dc *DataContext) AddError(msg string) {
	dc.Errors = append(dc.Errors, msg)
}

// AddWarning appends a warning message. The warning list is append-only.
func (dc *DataContext) AddWarning(msg string) {
	dc.Warnings = append(dc.Warnings, msg)
}

// AddStat increments a stat counter, creating it at zero if absent
func (dc *DataContext) AddStat(key string, delta float64) {
	dc.Stats[key] += delta
}

// SetStat overwrites a stat counter
func (dc *DataContext) SetStat(key string, value float64) {
	dc.Stats[key] = value
}

// Advance hands one stage's Output to the next stage as Input and
// resets Output.
func (dc *DataContext) Advance() {
	dc.Input = dc.Output
	dc.Output = nil
}
