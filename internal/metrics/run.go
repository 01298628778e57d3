package metrics

import (
	"sync"
	"time"
)

// Run accumulates the outcome counters of one pipeline invocation. It is
// created per run and safe for concurrent workers.
type Run struct {
	ID string

	mu            sync.Mutex
	processed     int
	skipped       int
	failed        int
	blocked       int
	invalid       int
	sourcesOK     int
	sourcesFailed int
	started       time.Time
	duration      time.Duration
}

func NewRun(id string) *Run {
	return &Run{ID: id, started: time.Now()}
}

// Snapshot is a copy of the counters.
type Snapshot struct {
	RunID         string        `json:"run_id"`
	Processed     int           `json:"processed"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	Blocked       int           `json:"blocked"`
	Invalid       int           `json:"invalid"`
	SourcesOK     int           `json:"sources_ok"`
	SourcesFailed int           `json:"sources_failed"`
	Duration      time.Duration `json:"duration"`
}

func (r *Run) add(p *int) {
	r.mu.Lock()
	*p++
	r.mu.Unlock()
}

func (r *Run) Processed()    { r.add(&r.processed) }
func (r *Run) Skipped()      { r.add(&r.skipped) }
func (r *Run) Failed()       { r.add(&r.failed) }
func (r *Run) Blocked()      { r.add(&r.blocked) }
func (r *Run) Invalid()      { r.add(&r.invalid) }
func (r *Run) SourceOK()     { r.add(&r.sourcesOK) }
func (r *Run) SourceFailed() { r.add(&r.sourcesFailed) }

// Finish freezes the duration.
func (r *Run) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duration = time.Since(r.started)
}

func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		RunID:         r.ID,
		Processed:     r.processed,
		Skipped:       r.skipped,
		Failed:        r.failed,
		Blocked:       r.blocked,
		Invalid:       r.invalid,
		SourcesOK:     r.sourcesOK,
		SourcesFailed: r.sourcesFailed,
		Duration:      r.duration,
	}
}
