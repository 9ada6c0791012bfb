package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/tests/testutil"
)

func TestNextReadingStart(t *testing.T) {
	loc := time.UTC

	// Wednesday -> following Saturday.
	wed := time.Date(2024, 3, 6, 9, 0, 0, 0, loc)
	got := nextReadingStart(wed, time.Saturday, 10)
	require.Equal(t, time.Date(2024, 3, 9, 10, 0, 0, 0, loc), got)

	// Saturday stays on the same day, even late in the evening.
	sat := time.Date(2024, 3, 9, 23, 0, 0, 0, loc)
	got = nextReadingStart(sat, time.Saturday, 10)
	require.Equal(t, time.Date(2024, 3, 9, 10, 0, 0, 0, loc), got)

	// Sunday wraps to the next Saturday.
	sun := time.Date(2024, 3, 10, 8, 0, 0, 0, loc)
	got = nextReadingStart(sun, time.Saturday, 10)
	require.Equal(t, time.Date(2024, 3, 16, 10, 0, 0, 0, loc), got)
}

func TestScheduleStageUrgentBlock(t *testing.T) {
	cal := &fakeCalendar{}
	p, ts := newTestPipeline(t, &fakeMailbox{}, cal, &fakeLLM{})

	fixed := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	ctx := context.Background()
	rec := sampleTriageRecord("u1", "Invoice due Friday")
	require.NoError(t, ts.UpsertNew(ctx, rec))
	require.NoError(t, ts.SetCategory(ctx, "u1", model.CategoryUrgentAction, classifiedConfidence, time.Now()))

	st := &RunState{RunID: "test"}
	require.NoError(t, p.scheduleStage(ctx, st))

	require.Len(t, cal.blocks, 1)
	block := cal.blocks[0]
	require.Equal(t, "Process urgent email: Invoice due Friday", block.summary)
	require.Equal(t, fixed.Add(2*time.Hour), block.start)
	require.Equal(t, 30*time.Minute, block.end.Sub(block.start))
}

func TestScheduleStageSharedReadingWindow(t *testing.T) {
	cal := &fakeCalendar{}
	p, ts := newTestPipeline(t, &fakeMailbox{}, cal, &fakeLLM{})

	fixed := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	ctx := context.Background()
	for _, id := range []string{"r1", "r2"} {
		require.NoError(t, ts.UpsertNew(ctx, sampleTriageRecord(id, "Longread "+id)))
		require.NoError(t, ts.SetCategory(ctx, id, model.CategoryWeekendReading, classifiedConfidence, time.Now()))
	}

	st := &RunState{RunID: "test"}
	require.NoError(t, p.scheduleStage(ctx, st))

	require.Len(t, cal.blocks, 2)
	wantStart := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	for _, block := range cal.blocks {
		require.Equal(t, wantStart, block.start)
		require.Equal(t, time.Hour, block.end.Sub(block.start))
	}
}

func TestNewDefaultsReadingWeekdayToSaturday(t *testing.T) {
	// A zero config must not mean Sunday.
	p, _ := newTestPipeline(t, &fakeMailbox{}, &fakeCalendar{}, &fakeLLM{})
	require.Equal(t, int(time.Saturday), p.cfg.ReadingWeekday)
}

func TestScheduleStageSundayReadingWeekday(t *testing.T) {
	cal := &fakeCalendar{}
	ts := testutil.NewTestStore(t)
	p := New(
		ts, &fakeMailbox{}, cal, &fakeLLM{},
		model.TriageConfig{ReadingWeekday: 7}, zap.NewNop(),
	)

	// Wednesday; a Sunday window lands four days out.
	fixed := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, ts.UpsertNew(ctx, sampleTriageRecord("r1", "Longread")))
	require.NoError(t, ts.SetCategory(ctx, "r1", model.CategoryWeekendReading, classifiedConfidence, time.Now()))

	st := &RunState{RunID: "test"}
	require.NoError(t, p.scheduleStage(ctx, st))

	require.Len(t, cal.blocks, 1)
	require.Equal(t, time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), cal.blocks[0].start)
}

func TestScheduleStageSkipsAlreadyScheduled(t *testing.T) {
	cal := &fakeCalendar{}
	p, ts := newTestPipeline(t, &fakeMailbox{}, cal, &fakeLLM{})

	ctx := context.Background()
	require.NoError(t, ts.UpsertNew(ctx, sampleTriageRecord("u1", "Pay the bill")))
	require.NoError(t, ts.SetCategory(ctx, "u1", model.CategoryUrgentAction, classifiedConfidence, time.Now()))

	st := &RunState{RunID: "first"}
	require.NoError(t, p.scheduleStage(ctx, st))
	require.Len(t, cal.blocks, 1)

	// A second run must not reserve the same block again.
	st = &RunState{RunID: "second"}
	require.NoError(t, p.scheduleStage(ctx, st))
	require.Len(t, cal.blocks, 1)
}

func TestScheduleStageCalendarErrorHaltsStage(t *testing.T) {
	cal := &fakeCalendar{err: errors.New("calendar down")}
	p, ts := newTestPipeline(t, &fakeMailbox{}, cal, &fakeLLM{})

	ctx := context.Background()
	require.NoError(t, ts.UpsertNew(ctx, sampleTriageRecord("u1", "Pay the bill")))
	require.NoError(t, ts.SetCategory(ctx, "u1", model.CategoryUrgentAction, classifiedConfidence, time.Now()))

	st := &RunState{RunID: "test"}
	require.Error(t, p.scheduleStage(ctx, st))

	// The record stays unscheduled and is retried on the next run.
	records, err := ts.GetByCategory(ctx, model.CategoryUrgentAction, true)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func sampleTriageRecord(id, subject string) model.EmailRecord {
	return model.EmailRecord{
		MessageID:  id,
		FromAddr:   "sender@example.com",
		ToAddr:     "me@example.com",
		Subject:    subject,
		Snippet:    subject,
		Body:       subject,
		ReceivedAt: "2024-03-06T08:00:00Z",
	}
}
