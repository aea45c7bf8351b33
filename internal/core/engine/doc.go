// Package engine computes value stream metrics from processes and connections.
//
// The pipeline runs in four pure stages:
//
//	Classify      -> Graph (normal and rework adjacency, dangling edges dropped)
//	CycleTimes    -> processTime + incoming normal wait, per process
//	ResolveRework -> probability-weighted rework time, per process
//	Aggregate     -> StreamMetrics
//
// Calculate runs all four. Project merges the results onto copies of the
// input processes for display; caller-owned values are never modified.
//
// The engine never returns an error. Negative or NaN numbers read as 0, a
// missing %C/A reads as 100 and cycles in the normal flow are truncated.
package engine
