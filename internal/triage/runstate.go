package triage

import (
	"fmt"

	"github.com/nhle/inbox-triage/internal/model"
)

// RunState is the ephemeral per-invocation context threaded through the
// pipeline stages. It is created fresh at run start and discarded at run
// end; durable state lives in the record store.
type RunState struct {
	// RunID uniquely identifies this pipeline invocation in logs.
	RunID string

	// Batch holds the messages ingested during this run. Only the
	// ingest stage populates it; later stages re-query the store.
	Batch []model.EmailRecord

	// Cursor is the current batch index. It is kept for future partial
	// resume and is not used for control flow.
	Cursor int

	notes []string
}

// Note appends a formatted line to the run's notes log.
func (s *RunState) Note(format string, args ...interface{}) {
	s.notes = append(s.notes, fmt.Sprintf(format, args...))
}

// Notes returns the accumulated notes log in append order.
func (s *RunState) Notes() []string {
	return s.notes
}

// Result summarizes a completed pipeline run for the caller.
type Result struct {
	// RunID identifies the run the result belongs to.
	RunID string

	// Ingested is the number of messages pulled in by the ingest stage.
	Ingested int

	// Notes is the aggregated human-readable run log.
	Notes []string

	// StageErrors maps stage names to the error that halted them, if
	// any. A halted stage does not fail the run; the remaining stages
	// still execute.
	StageErrors map[string]error
}
