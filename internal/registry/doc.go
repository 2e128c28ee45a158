// Package registry stores download jobs and their latest status.
//
// Two implementations are provided: an in-process store that keeps finished jobs
// for a bounded grace period, and a Redis store that lets several server
// instances share job state.
package registry
