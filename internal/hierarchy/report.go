package hierarchy

import "time"

// Report aggregates the counters of one run. It is the only externally
// observable summary the engine produces.
type Report struct {
	Entity string
	Total  int

	// Phase A
	Created int
	Updated int
	Errors  int

	// Phase B
	ParentsLinked int
	RunOrphans    int
	CycleSkips    int
	LinkErrors    int

	// Source validation (advisory)
	SelfRefs      int
	SourceOrphans int
	Cycles        int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Clean reports whether the run completed without per-node errors.
func (r *Report) Clean() bool {
	return r.Errors == 0 && r.LinkErrors == 0
}

// Duration returns the wall-clock time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
