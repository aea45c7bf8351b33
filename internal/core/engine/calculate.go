package engine

import "valuestream/internal/domain"

// Result holds every intermediate of one metrics computation
type Result struct {
	Graph      *Graph
	CycleTimes map[string]float64
	Rework     Rework
	Metrics    domain.StreamMetrics
}

// Calculate runs the full pipeline over processes and connections
func Calculate(processes []domain.ProcessBlock, connections []domain.Connection, opts Options) Result {
	g := Classify(processes, connections, opts)
	cycle := CycleTimes(g)
	rework := ResolveRework(g)

	return Result{
		Graph:      g,
		CycleTimes: cycle,
		Rework:     rework,
		Metrics:    Aggregate(g.processes, cycle, rework.ByProcess),
	}
}

// Project returns display copies of processes carrying their computed cycle
// and rework times. Terminal processes lose their %C/A. Inputs are untouched.
func Project(processes []domain.ProcessBlock, r Result) []domain.ProcessBlock {
	out := domain.CloneProcesses(processes)
	for i := range out {
		p := &out[i]
		p.Metrics.CycleTime = domain.Float(r.CycleTimes[p.ID])
		p.Metrics.ReworkCycleTime = domain.Float(r.Rework.ByProcess[p.ID])
		if r.Rework.IsCleared(p.ID) {
			p.Metrics.CompleteAccurate = nil
		}
	}
	return out
}
