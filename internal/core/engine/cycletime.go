package engine

// CycleTimes returns each process's best-case cycle time: its own processing
// time plus the wait on every incoming normal connection.
func CycleTimes(g *Graph) map[string]float64 {
	out := make(map[string]float64, len(g.processes))
	for i, p := range g.processes {
		ct := p.ProcessTime()
		for _, ci := range g.inNormal[i] {
			ct += g.connections[ci].WaitTime()
		}
		out[p.ID] = ct
	}
	return out
}
