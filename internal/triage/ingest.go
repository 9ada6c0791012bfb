package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ingestStage pulls unread messages from the mailbox and inserts them
// into the record store. Ingest is idempotent: a message ID that is
// already stored keeps its original content fields. Mailbox errors halt
// the stage.
func (p *Pipeline) ingestStage(ctx context.Context, st *RunState) error {
	ids, err := p.mailbox.ListUnread(ctx)
	if err != nil {
		return fmt.Errorf("listing unread messages: %w", err)
	}

	p.log.Info("unread messages listed",
		zap.String("run_id", st.RunID),
		zap.Int("count", len(ids)),
	)

	for _, id := range ids {
		rec, err := p.mailbox.Fetch(ctx, id)
		if err != nil {
			return fmt.Errorf("fetching message %s: %w", id, err)
		}

		rec.LastUpdatedAt = p.now()
		if err := p.store.UpsertNew(ctx, *rec); err != nil {
			return fmt.Errorf("storing message %s: %w", id, err)
		}

		st.Batch = append(st.Batch, *rec)
	}

	st.Cursor = 0
	st.Note("[ingest] stored %d unread message(s)", len(st.Batch))
	return nil
}
