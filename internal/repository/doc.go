// Package repository defines the data access interface for value stream maps.
//
// A map is stored as one aggregate: its header row, its processes and its
// connections are always written together in a single transaction, and
// collection order is preserved through an ordinal column.
//
// # SQLite Implementation
//
// The sqlite subpackage implements Repository on modernc.org/sqlite. The
// stream metrics of each map are kept as a snappy-compressed JSON snapshot so
// listings do not need to recompute them.
//
// GetMap returns nil, nil when a map does not exist.
package repository
