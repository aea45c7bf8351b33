// Package domain defines the core value types of a value stream map.
//
// # Core Types
//
// ProcessBlock is a processing step with a processing time and an optional
// percent complete-and-accurate (%C/A). Connection is a directed transition
// between two processes carrying a wait time; connections flagged IsRework
// return rejected work upstream. ValueStreamMap is the aggregate root holding
// both collections and the StreamMetrics computed from them.
//
// # Derived Values
//
// ProcessMetrics.CycleTime and ProcessMetrics.ReworkCycleTime are written only
// onto projected copies produced by the metrics engine. Stored processes keep
// exactly what the caller supplied.
//
// # Design Principles
//
// - Value semantics: every type is copied, never shared, across mutations
// - No database or external dependencies
// - Lenient numeric accessors (negative or NaN input reads as 0)
package domain
