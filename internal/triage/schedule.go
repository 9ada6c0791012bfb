package triage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/inbox-triage/internal/model"
)

// scheduleStage reserves calendar blocks for urgent and deferred
// reading records. Records that already carry a scheduled_at marker are
// skipped, so re-running the pipeline does not duplicate blocks. A
// calendar error halts the remainder of the stage; already-created
// blocks stay marked.
func (p *Pipeline) scheduleStage(ctx context.Context, st *RunState) error {
	now := p.now()

	urgent, err := p.store.GetByCategory(
		ctx, model.CategoryUrgentAction, true,
	)
	if err != nil {
		return fmt.Errorf("loading urgent records: %w", err)
	}

	// Urgent: one fixed-duration block per record, a fixed lead from now.
	lead := time.Duration(p.cfg.UrgentLeadMinutes) * time.Minute
	blockLen := time.Duration(p.cfg.UrgentBlockMinutes) * time.Minute

	for _, rec := range urgent {
		start := now.Add(lead)
		end := start.Add(blockLen)

		err := p.calendar.CreateBlock(
			ctx, "Process urgent email: "+rec.Subject, start, end,
		)
		if err != nil {
			return fmt.Errorf(
				"creating urgent block for %s: %w", rec.MessageID, err,
			)
		}

		if err := p.store.MarkScheduled(ctx, rec.MessageID, now); err != nil {
			return fmt.Errorf(
				"marking %s scheduled: %w", rec.MessageID, err,
			)
		}

		p.log.Info("urgent block reserved",
			zap.String("run_id", st.RunID),
			zap.String("message_id", rec.MessageID),
			zap.Time("start", start),
		)
		st.Note("[schedule] urgent block at %s for %s",
			start.Format(time.RFC3339), rec.MessageID)
	}

	reading, err := p.store.GetByCategory(
		ctx, model.CategoryWeekendReading, true,
	)
	if err != nil {
		return fmt.Errorf("loading weekend reading records: %w", err)
	}

	// Weekend reading: all records share one window on the next
	// occurrence of the reading weekday.
	if len(reading) > 0 {
		start := nextReadingStart(now, time.Weekday(p.cfg.ReadingWeekday%7), p.cfg.ReadingHour)
		end := start.Add(time.Hour)

		for _, rec := range reading {
			err := p.calendar.CreateBlock(
				ctx, "Weekend reading: "+rec.Subject, start, end,
			)
			if err != nil {
				return fmt.Errorf(
					"creating reading block for %s: %w", rec.MessageID, err,
				)
			}

			if err := p.store.MarkScheduled(ctx, rec.MessageID, now); err != nil {
				return fmt.Errorf(
					"marking %s scheduled: %w", rec.MessageID, err,
				)
			}

			st.Note("[schedule] reading block at %s for %s",
				start.Format(time.RFC3339), rec.MessageID)
		}
	}

	st.Note("[schedule] reserved %d urgent and %d reading block(s)",
		len(urgent), len(reading))
	return nil
}

// nextReadingStart computes the start of the reading block on the next
// occurrence of target relative to now. The offset is
// (target - weekday(now)) mod 7, which yields 0 when today is the
// target day: same-day scheduling is intended behavior.
func nextReadingStart(now time.Time, target time.Weekday, hour int) time.Time {
	days := (int(target) - int(now.Weekday()) + 7) % 7
	day := now.AddDate(0, 0, days)
	return time.Date(
		day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, now.Location(),
	)
}
