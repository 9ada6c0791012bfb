// Package triage implements the inbox triage pipeline: a fixed sequence
// of stages over a durable email record store. Each run ingests unread
// mail, classifies it with a language model, applies mailbox labels,
// reserves calendar time, and re-validates recent classifications.
package triage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/calendar"
	"github.com/nhle/inbox-triage/internal/mailbox"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

// Confidence constants persisted alongside categories. The classifier
// marks its verdicts with a moderate value; the validation pass raises
// confirmed records and stamps overrides slightly lower.
const (
	classifiedConfidence = 0.7
	validatedConfidence  = 0.9
	correctedConfidence  = 0.85
)

// Pipeline drives one triage run over the record store. All
// collaborators are injected so stages can be tested in isolation.
type Pipeline struct {
	store    store.Store
	mailbox  mailbox.Mailbox
	calendar calendar.Calendar
	llm      ai.Completer
	labels   *LabelSync
	cfg      model.TriageConfig
	log      *zap.Logger

	// now is swappable in tests; defaults to time.Now.
	now func() time.Time
}

// New creates a triage pipeline with the given collaborators and
// configuration. Zero-valued config fields fall back to the defaults
// the pipeline was designed around.
func New(
	s store.Store,
	mbox mailbox.Mailbox,
	cal calendar.Calendar,
	llm ai.Completer,
	cfg model.TriageConfig,
	log *zap.Logger,
) *Pipeline {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 4000
	}
	if cfg.ValidateWindow <= 0 {
		cfg.ValidateWindow = 20
	}
	if cfg.UrgentLeadMinutes <= 0 {
		cfg.UrgentLeadMinutes = 120
	}
	if cfg.UrgentBlockMinutes <= 0 {
		cfg.UrgentBlockMinutes = 30
	}
	if cfg.ReadingHour <= 0 {
		cfg.ReadingHour = 10
	}
	// Weekdays are 1..7 with 7 for Sunday, so the zero value stays
	// distinguishable from a configured Sunday.
	if cfg.ReadingWeekday < 1 || cfg.ReadingWeekday > 7 {
		cfg.ReadingWeekday = int(time.Saturday)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Pipeline{
		store:    s,
		mailbox:  mbox,
		calendar: cal,
		llm:      llm,
		labels:   NewLabelSync(mbox, log),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// stage is one step of the fixed triage sequence.
type stage struct {
	name string
	run  func(ctx context.Context, st *RunState) error
}

// stages returns the pipeline's fixed stage order. The control flow is
// strictly linear: no branching, no retries, no skipping.
func (p *Pipeline) stages() []stage {
	return []stage{
		{name: "ingest", run: p.ingestStage},
		{name: "classify", run: p.classifyStage},
		{name: "label", run: p.labelStage},
		{name: "schedule", run: p.scheduleStage},
		{name: "validate", run: p.validateStage},
	}
}

// Run executes one full triage pass. A stage error halts that stage but
// not the run; the error is recorded in the result and the remaining
// stages still execute. The run always completes with an aggregated
// notes log.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	st := &RunState{RunID: uuid.New().String()}
	st.Note("run %s started at %s", st.RunID, p.now().UTC().Format(time.RFC3339))

	result := &Result{
		RunID:       st.RunID,
		StageErrors: make(map[string]error),
	}

	for _, sg := range p.stages() {
		p.log.Info("stage starting",
			zap.String("run_id", st.RunID),
			zap.String("stage", sg.name),
		)

		if err := sg.run(ctx, st); err != nil {
			p.log.Error("stage halted",
				zap.String("run_id", st.RunID),
				zap.String("stage", sg.name),
				zap.Error(err),
			)
			st.Note("[%s] stage halted: %v", sg.name, err)
			result.StageErrors[sg.name] = err
		}
	}

	result.Ingested = len(st.Batch)
	result.Notes = st.Notes()
	return result, nil
}
