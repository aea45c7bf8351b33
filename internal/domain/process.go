package domain

import "math"

// DefaultCompleteAccurate is the %C/A assumed when a process does not carry one
const DefaultCompleteAccurate = 100.0

// ProcessMetrics holds the timing inputs of a process plus the values derived
// by the metrics engine. CycleTime and ReworkCycleTime are only populated on
// projected (display) copies and are ignored as input.
type ProcessMetrics struct {
	ProcessTime      float64  `json:"processTime"`
	CompleteAccurate *float64 `json:"completeAccurate,omitempty"`
	CycleTime        *float64 `json:"cycleTime,omitempty"`
	ReworkCycleTime  *float64 `json:"reworkCycleTime,omitempty"`
}

// ProcessBlock is a single processing step in a value stream
type ProcessBlock struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Position    Position       `json:"position"`
	Metrics     ProcessMetrics `json:"metrics"`
}

// NewProcessBlock creates a process with the given processing time and no %C/A
func NewProcessBlock(id, name string, processTime float64) ProcessBlock {
	return ProcessBlock{
		ID:      id,
		Name:    name,
		Metrics: ProcessMetrics{ProcessTime: processTime},
	}
}

// WithPosition returns a copy of p placed at (x, y)
func (p ProcessBlock) WithPosition(x, y float64) ProcessBlock {
	c := p.Clone()
	c.Position = NewPosition(x, y)
	return c
}

// WithCompleteAccurate returns a copy of p carrying the given %C/A
func (p ProcessBlock) WithCompleteAccurate(pct float64) ProcessBlock {
	c := p.Clone()
	c.Metrics.CompleteAccurate = Float(pct)
	return c
}

// ProcessTime returns the processing time, treating negative or NaN input as 0
func (p ProcessBlock) ProcessTime() float64 {
	return nonNegative(p.Metrics.ProcessTime)
}

// HasCompleteAccurate reports whether a %C/A value was supplied
func (p ProcessBlock) HasCompleteAccurate() bool {
	return p.Metrics.CompleteAccurate != nil
}

// CompleteAccurate returns the %C/A clamped to [0, 100], defaulting to 100
func (p ProcessBlock) CompleteAccurate() float64 {
	if p.Metrics.CompleteAccurate == nil {
		return DefaultCompleteAccurate
	}
	v := *p.Metrics.CompleteAccurate
	switch {
	case math.IsNaN(v):
		return DefaultCompleteAccurate
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// ReworkProbability is the fraction of output rejected by this step
func (p ProcessBlock) ReworkProbability() float64 {
	return (100 - p.CompleteAccurate()) / 100
}

// Clone returns a deep copy of p
func (p ProcessBlock) Clone() ProcessBlock {
	c := p
	c.Metrics.CompleteAccurate = copyFloat(p.Metrics.CompleteAccurate)
	c.Metrics.CycleTime = copyFloat(p.Metrics.CycleTime)
	c.Metrics.ReworkCycleTime = copyFloat(p.Metrics.ReworkCycleTime)
	return c
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
