// Package pipeline runs a release as a directed acyclic graph of jobs.
//
// A [Graph] is built from [JobSpec] values and validated on construction
// (unknown needs, self-loops, duplicates and cycles are rejected). An
// [Executor] runs the graph: a job starts once every job it needs has
// finished successfully, independent jobs run concurrently, and a failure
// skips every job that transitively needs the failed one. Jobs marked
// ContinueOnError count as satisfied for their dependents even when they fail.
//
// # Job states
//
// Valid transitions:
//   - Pending -> Running, Skipped, Excluded
//   - Running -> Succeeded, Failed
package pipeline
