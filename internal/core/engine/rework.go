package engine

// Rework is the probability-weighted rework time per process
type Rework struct {
	ByProcess map[string]float64
	// Cleared lists terminal processes whose %C/A is dropped from display
	Cleared []string
}

// IsCleared reports whether id is a terminal process
func (r Rework) IsCleared(id string) bool {
	for _, c := range r.Cleared {
		if c == id {
			return true
		}
	}
	return false
}

// ResolveRework computes the expected extra time spent redoing rejected work.
//
// An explicit rework connection S->P with wait w adds
// (w + pathTime(P->S)) * p(S) to P, where p(S) is the rejection rate of S.
// Processes that take part in no explicit rework connection fall back to an
// implicit retry of their own step:
//
//	origin:    processTime * q
//	otherwise: (wait from previous step + processTime) * q
//
// with q the process's own rejection rate. Terminal processes have their own
// rate cleared and start no implicit rework.
func ResolveRework(g *Graph) Rework {
	n := len(g.processes)
	byIndex := make([]float64, n)
	explicit := make([]bool, n)

	for _, c := range g.connections {
		if !c.Rework {
			continue
		}
		explicit[c.source] = true
		explicit[c.target] = true

		p := g.processes[c.source].ReworkProbability()
		if p <= 0 {
			continue
		}
		byIndex[c.target] += (c.WaitTime() + g.pathTime(c.target, c.source)) * p
	}

	var cleared []string
	for i, proc := range g.processes {
		if g.terminal(i) {
			cleared = append(cleared, proc.ID)
			continue
		}
		if explicit[i] {
			continue
		}
		q := proc.ReworkProbability()
		if q <= 0 {
			continue
		}
		if len(g.inNormal[i]) == 0 {
			byIndex[i] += proc.ProcessTime() * q
			continue
		}
		prev := g.previousStep(i)
		byIndex[i] += (g.connections[prev].WaitTime() + proc.ProcessTime()) * q
	}

	out := Rework{
		ByProcess: make(map[string]float64, n),
		Cleared:   cleared,
	}
	for i, proc := range g.processes {
		out.ByProcess[proc.ID] = byIndex[i]
	}
	return out
}

// previousStep picks the incoming normal connection whose source lies
// furthest right. Ties keep connection order.
func (g *Graph) previousStep(i int) int {
	best := g.inNormal[i][0]
	for _, ci := range g.inNormal[i][1:] {
		if g.processes[g.connections[ci].source].Position.RightOf(
			g.processes[g.connections[best].source].Position) {
			best = ci
		}
	}
	return best
}

// pathTime is the elapsed time from the start of from through the end of to
// along normal connections. Each call owns its visited set.
func (g *Graph) pathTime(from, to int) float64 {
	visited := make([]bool, len(g.processes))
	total, _ := g.walk(from, to, visited)
	return total
}

// walk returns the time accumulated from cur and whether to was reached.
// A branch into a process already on this walk contributes 0, its wait
// included. Without a route to the target the first branch explored stands
// in for the rest of the path.
func (g *Graph) walk(cur, to int, visited []bool) (float64, bool) {
	visited[cur] = true

	own := g.processes[cur].ProcessTime()
	if cur == to {
		return own, true
	}

	var fallback float64
	explored := false
	for _, ci := range g.outNormal[cur] {
		c := g.connections[ci]
		if visited[c.target] {
			explored = true
			continue
		}
		rest, found := g.walk(c.target, to, visited)
		if found {
			return own + c.WaitTime() + rest, true
		}
		if !explored {
			fallback = c.WaitTime() + rest
			explored = true
		}
	}
	return own + fallback, false
}
