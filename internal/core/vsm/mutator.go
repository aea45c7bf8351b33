package vsm

import (
	"valuestream/internal/core/engine"
	"valuestream/internal/domain"
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Processes   []domain.ProcessBlock
	Connections []domain.Connection
}

// Mutator applies map updates with a fixed engine configuration
type Mutator struct {
	Options engine.Options
}

// New creates a mutator with the given engine options
func New(opts engine.Options) Mutator {
	return Mutator{Options: opts}
}

// Create builds a map and computes its metrics once.
// Repeated IDs are collapsed, the later entry taking the earlier slot.
func (m Mutator) Create(id, title string, processes []domain.ProcessBlock, connections []domain.Connection) domain.ValueStreamMap {
	v := domain.ValueStreamMap{
		ID:          id,
		Title:       title,
		Processes:   normalizeProcesses(processes),
		Connections: normalizeConnections(connections),
	}
	v.Metrics = m.calculate(v)
	return v
}

// Update merges patch into v. Metrics are recomputed only when processes or
// connections are supplied.
func (m Mutator) Update(v domain.ValueStreamMap, patch Patch) domain.ValueStreamMap {
	out := v.Clone()
	if patch.Title != nil {
		out.Title = *patch.Title
	}
	if patch.Processes == nil && patch.Connections == nil {
		return out
	}
	if patch.Processes != nil {
		out.Processes = normalizeProcesses(patch.Processes)
	}
	if patch.Connections != nil {
		out.Connections = normalizeConnections(patch.Connections)
	}
	out.Metrics = m.calculate(out)
	return out
}

// AddProcess appends p, or replaces the process with the same ID in place
func (m Mutator) AddProcess(v domain.ValueStreamMap, p domain.ProcessBlock) domain.ValueStreamMap {
	processes := append(domain.CloneProcesses(v.Processes), p)
	return m.Update(v, Patch{Processes: processes})
}

// AddConnection appends c, or replaces the connection with the same ID in place
func (m Mutator) AddConnection(v domain.ValueStreamMap, c domain.Connection) domain.ValueStreamMap {
	connections := append(domain.CloneConnections(v.Connections), c)
	return m.Update(v, Patch{Connections: connections})
}

// RemoveProcess filters out the process and every connection touching it
func (m Mutator) RemoveProcess(v domain.ValueStreamMap, id string) domain.ValueStreamMap {
	processes := make([]domain.ProcessBlock, 0, len(v.Processes))
	for _, p := range v.Processes {
		if p.ID != id {
			processes = append(processes, p)
		}
	}
	connections := make([]domain.Connection, 0, len(v.Connections))
	for _, c := range v.Connections {
		if !c.Involves(id) {
			connections = append(connections, c)
		}
	}
	return m.Update(v, Patch{Processes: processes, Connections: connections})
}

// RemoveConnection filters out the connection with the given ID
func (m Mutator) RemoveConnection(v domain.ValueStreamMap, id string) domain.ValueStreamMap {
	connections := make([]domain.Connection, 0, len(v.Connections))
	for _, c := range v.Connections {
		if c.ID != id {
			connections = append(connections, c)
		}
	}
	return m.Update(v, Patch{Connections: connections})
}

// Project returns display copies of the map's processes with derived
// cycle and rework times filled in
func (m Mutator) Project(v domain.ValueStreamMap) []domain.ProcessBlock {
	r := engine.Calculate(v.Processes, v.Connections, m.Options)
	return engine.Project(v.Processes, r)
}

func (m Mutator) calculate(v domain.ValueStreamMap) domain.StreamMetrics {
	return engine.Calculate(v.Processes, v.Connections, m.Options).Metrics
}

// normalizeProcesses deep-copies and upserts by ID, dropping derived fields
func normalizeProcesses(in []domain.ProcessBlock) []domain.ProcessBlock {
	out := make([]domain.ProcessBlock, 0, len(in))
	seen := make(map[string]int, len(in))
	for _, p := range in {
		c := p.Clone()
		c.Metrics.CycleTime = nil
		c.Metrics.ReworkCycleTime = nil
		if i, ok := seen[c.ID]; ok {
			out[i] = c
			continue
		}
		seen[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}

func normalizeConnections(in []domain.Connection) []domain.Connection {
	out := make([]domain.Connection, 0, len(in))
	seen := make(map[string]int, len(in))
	for _, c := range in {
		if i, ok := seen[c.ID]; ok {
			out[i] = c
			continue
		}
		seen[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}

var std Mutator

// Create builds a map using the default options
func Create(id, title string, processes []domain.ProcessBlock, connections []domain.Connection) domain.ValueStreamMap {
	return std.Create(id, title, processes, connections)
}

// Update merges patch into v using the default options
func Update(v domain.ValueStreamMap, patch Patch) domain.ValueStreamMap {
	return std.Update(v, patch)
}

// AddProcess upserts p using the default options
func AddProcess(v domain.ValueStreamMap, p domain.ProcessBlock) domain.ValueStreamMap {
	return std.AddProcess(v, p)
}

// AddConnection upserts c using the default options
func AddConnection(v domain.ValueStreamMap, c domain.Connection) domain.ValueStreamMap {
	return std.AddConnection(v, c)
}

// RemoveProcess removes a process using the default options
func RemoveProcess(v domain.ValueStreamMap, id string) domain.ValueStreamMap {
	return std.RemoveProcess(v, id)
}

// RemoveConnection removes a connection using the default options
func RemoveConnection(v domain.ValueStreamMap, id string) domain.ValueStreamMap {
	return std.RemoveConnection(v, id)
}
