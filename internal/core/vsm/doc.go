// Package vsm provides the pure update operations on a value stream map.
//
// Every operation returns a new ValueStreamMap with metrics recomputed from
// scratch and never modifies its arguments. A Mutator carries the engine
// options; the package-level functions use the zero options.
package vsm
