package domain

import "time"

// StreamMetrics are the stream-level figures derived from a value stream map.
//
// AverageLeadTime equals WorstCaseLeadTime: rework times are already weighted
// by their rejection probability, so the expected lead time is the best-case
// lead time plus the weighted rework.
type StreamMetrics struct {
	TotalLeadTime            float64            `json:"totalLeadTime"`
	TotalValueAddedTime      float64            `json:"totalValueAddedTime"`
	ValueAddedRatio          float64            `json:"valueAddedRatio"`
	TotalReworkTime          float64            `json:"totalReworkTime"`
	WorstCaseLeadTime        float64            `json:"worstCaseLeadTime"`
	AverageLeadTime          float64            `json:"averageLeadTime"`
	CycleTimeByProcess       map[string]float64 `json:"cycleTimeByProcess"`
	ReworkCycleTimeByProcess map[string]float64 `json:"reworkCycleTimeByProcess"`
}

// NewStreamMetrics returns zeroed metrics with initialized maps
func NewStreamMetrics() StreamMetrics {
	return StreamMetrics{
		CycleTimeByProcess:       make(map[string]float64),
		ReworkCycleTimeByProcess: make(map[string]float64),
	}
}

// Clone returns a deep copy of m
func (m StreamMetrics) Clone() StreamMetrics {
	c := m
	c.CycleTimeByProcess = make(map[string]float64, len(m.CycleTimeByProcess))
	for k, v := range m.CycleTimeByProcess {
		c.CycleTimeByProcess[k] = v
	}
	c.ReworkCycleTimeByProcess = make(map[string]float64, len(m.ReworkCycleTimeByProcess))
	for k, v := range m.ReworkCycleTimeByProcess {
		c.ReworkCycleTimeByProcess[k] = v
	}
	return c
}

// ValueStreamMap is the aggregate root: an ordered set of processes, the
// connections between them and the metrics computed from both
type ValueStreamMap struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Processes   []ProcessBlock `json:"processes"`
	Connections []Connection   `json:"connections"`
	Metrics     StreamMetrics  `json:"metrics"`
}

// Process returns the process with the given ID
func (m ValueStreamMap) Process(id string) (ProcessBlock, bool) {
	for _, p := range m.Processes {
		if p.ID == id {
			return p, true
		}
	}
	return ProcessBlock{}, false
}

// Connection returns the connection with the given ID
func (m ValueStreamMap) Connection(id string) (Connection, bool) {
	for _, c := range m.Connections {
		if c.ID == id {
			return c, true
		}
	}
	return Connection{}, false
}

// Clone returns a deep copy of m
func (m ValueStreamMap) Clone() ValueStreamMap {
	c := m
	c.Processes = CloneProcesses(m.Processes)
	c.Connections = CloneConnections(m.Connections)
	c.Metrics = m.Metrics.Clone()
	return c
}

// CloneProcesses deep-copies a process slice, preserving nil
func CloneProcesses(processes []ProcessBlock) []ProcessBlock {
	if processes == nil {
		return nil
	}
	out := make([]ProcessBlock, len(processes))
	for i, p := range processes {
		out[i] = p.Clone()
	}
	return out
}

// CloneConnections copies a connection slice, preserving nil
func CloneConnections(connections []Connection) []Connection {
	if connections == nil {
		return nil
	}
	out := make([]Connection, len(connections))
	copy(out, connections)
	return out
}

// MapSummary is the listing view of a stored map
type MapSummary struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	ProcessCount      int       `json:"processCount"`
	ConnectionCount   int       `json:"connectionCount"`
	TotalLeadTime     float64   `json:"totalLeadTime"`
	WorstCaseLeadTime float64   `json:"worstCaseLeadTime"`
	ValueAddedRatio   float64   `json:"valueAddedRatio"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Summary derives the listing view of m
func (m ValueStreamMap) Summary() MapSummary {
	return MapSummary{
		ID:                m.ID,
		Title:             m.Title,
		ProcessCount:      len(m.Processes),
		ConnectionCount:   len(m.Connections),
		TotalLeadTime:     m.Metrics.TotalLeadTime,
		WorstCaseLeadTime: m.Metrics.WorstCaseLeadTime,
		ValueAddedRatio:   m.Metrics.ValueAddedRatio,
	}
}
