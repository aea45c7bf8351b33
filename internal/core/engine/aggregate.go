package engine

import "valuestream/internal/domain"

// Aggregate sums per-process results into stream metrics. Processes are
// visited in order so floating point totals are reproducible.
//
// AverageLeadTime is defined as WorstCaseLeadTime because rework times are
// already weighted by their probability.
func Aggregate(processes []domain.ProcessBlock, cycleTimes, rework map[string]float64) domain.StreamMetrics {
	m := domain.NewStreamMetrics()

	for _, p := range processes {
		ct := cycleTimes[p.ID]
		rw := rework[p.ID]

		m.CycleTimeByProcess[p.ID] = ct
		m.ReworkCycleTimeByProcess[p.ID] = rw

		m.TotalLeadTime += ct
		m.TotalValueAddedTime += p.ProcessTime()
		m.TotalReworkTime += rw
	}

	if m.TotalLeadTime > 0 {
		m.ValueAddedRatio = m.TotalValueAddedTime / m.TotalLeadTime
	}
	m.WorstCaseLeadTime = m.TotalLeadTime + m.TotalReworkTime
	m.AverageLeadTime = m.WorstCaseLeadTime

	return m
}
