package engine

import "valuestream/internal/domain"

// Options tune how connections are interpreted. The zero value infers
// rework from layout.
type Options struct {
	// ExplicitReworkOnly stops a connection drawn right to left from being
	// read as rework. Only IsRework marks rework then.
	ExplicitReworkOnly bool
}

// ClassifiedConnection is a resolved connection annotated with its class
type ClassifiedConnection struct {
	domain.Connection
	Rework   bool
	Inferred bool // rework came from layout, not from IsRework

	source int
	target int
}

// Graph is an arena of processes with adjacency lists built once.
// Only connections whose endpoints both resolve are indexed.
type Graph struct {
	processes   []domain.ProcessBlock
	index       map[string]int
	connections []ClassifiedConnection

	inNormal  [][]int
	outNormal [][]int
	inRework  [][]int
	outRework [][]int
}

// Classify labels every connection as normal flow or rework and builds the
// adjacency indices. A repeated process ID replaces the earlier entry in place.
func Classify(processes []domain.ProcessBlock, connections []domain.Connection, opts Options) *Graph {
	g := &Graph{
		index: make(map[string]int, len(processes)),
	}

	for _, p := range processes {
		if i, ok := g.index[p.ID]; ok {
			g.processes[i] = p.Clone()
			continue
		}
		g.index[p.ID] = len(g.processes)
		g.processes = append(g.processes, p.Clone())
	}

	n := len(g.processes)
	g.inNormal = make([][]int, n)
	g.outNormal = make([][]int, n)
	g.inRework = make([][]int, n)
	g.outRework = make([][]int, n)

	for _, c := range connections {
		src, ok := g.index[c.SourceID]
		if !ok {
			continue
		}
		tgt, ok := g.index[c.TargetID]
		if !ok {
			continue
		}

		cc := ClassifiedConnection{
			Connection: c,
			Rework:     c.IsRework,
			source:     src,
			target:     tgt,
		}
		if !cc.Rework && !opts.ExplicitReworkOnly &&
			g.processes[src].Position.RightOf(g.processes[tgt].Position) {
			cc.Rework = true
			cc.Inferred = true
		}

		ci := len(g.connections)
		g.connections = append(g.connections, cc)
		if cc.Rework {
			g.outRework[src] = append(g.outRework[src], ci)
			g.inRework[tgt] = append(g.inRework[tgt], ci)
		} else {
			g.outNormal[src] = append(g.outNormal[src], ci)
			g.inNormal[tgt] = append(g.inNormal[tgt], ci)
		}
	}

	return g
}

// Processes returns the deduplicated processes in input order
func (g *Graph) Processes() []domain.ProcessBlock {
	return domain.CloneProcesses(g.processes)
}

// Process looks up a process by ID
func (g *Graph) Process(id string) (domain.ProcessBlock, bool) {
	i, ok := g.index[id]
	if !ok {
		return domain.ProcessBlock{}, false
	}
	return g.processes[i].Clone(), true
}

// Connections returns the resolved connections in input order
func (g *Graph) Connections() []ClassifiedConnection {
	out := make([]ClassifiedConnection, len(g.connections))
	copy(out, g.connections)
	return out
}

// IncomingNormal returns the normal connections targeting id
func (g *Graph) IncomingNormal(id string) []ClassifiedConnection {
	return g.lookup(id, g.inNormal)
}

// OutgoingNormal returns the normal connections leaving id
func (g *Graph) OutgoingNormal(id string) []ClassifiedConnection {
	return g.lookup(id, g.outNormal)
}

// IncomingRework returns the rework connections targeting id
func (g *Graph) IncomingRework(id string) []ClassifiedConnection {
	return g.lookup(id, g.inRework)
}

// OutgoingRework returns the rework connections leaving id
func (g *Graph) OutgoingRework(id string) []ClassifiedConnection {
	return g.lookup(id, g.outRework)
}

// IsOrigin reports whether id has no incoming normal connection
func (g *Graph) IsOrigin(id string) bool {
	i, ok := g.index[id]
	return ok && len(g.inNormal[i]) == 0
}

// IsTerminal reports whether id receives normal flow but passes none on.
// An isolated process is an origin, not a terminal.
func (g *Graph) IsTerminal(id string) bool {
	i, ok := g.index[id]
	return ok && g.terminal(i)
}

func (g *Graph) terminal(i int) bool {
	return len(g.inNormal[i]) > 0 && len(g.outNormal[i]) == 0
}

func (g *Graph) lookup(id string, adj [][]int) []ClassifiedConnection {
	i, ok := g.index[id]
	if !ok || len(adj[i]) == 0 {
		return nil
	}
	out := make([]ClassifiedConnection, len(adj[i]))
	for k, ci := range adj[i] {
		out[k] = g.connections[ci]
	}
	return out
}
