package triage

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/inbox-triage/internal/mailbox"
	"github.com/nhle/inbox-triage/internal/model"
)

// categoryLabels maps triage categories to the mailbox labels they
// carry. Categories without an entry (ignore) get no label.
var categoryLabels = map[model.Category]string{
	model.CategoryUrgentAction:   "AI/Urgent",
	model.CategoryNewsletter:     "AI/Newsletter",
	model.CategoryWeekendReading: "AI/WeekendReading",
}

// LabelFor returns the mailbox label for a category, if one is mapped.
func LabelFor(cat model.Category) (string, bool) {
	label, ok := categoryLabels[cat]
	return label, ok
}

// LabelSync issues label mutations against the mailbox. Calls are
// fire-and-forget from the pipeline's perspective: the store remains
// the category truth even when a label write fails.
type LabelSync struct {
	mbox mailbox.Mailbox
	log  *zap.Logger
}

// NewLabelSync creates a label synchronizer over the given mailbox.
func NewLabelSync(mbox mailbox.Mailbox, log *zap.Logger) *LabelSync {
	if log == nil {
		log = zap.NewNop()
	}
	return &LabelSync{mbox: mbox, log: log}
}

// Apply adds the label mapped to category on the message. Categories
// without a mapped label are skipped.
func (ls *LabelSync) Apply(
	ctx context.Context, messageID string, cat model.Category,
) error {
	label, ok := LabelFor(cat)
	if !ok {
		return nil
	}
	return ls.mbox.ApplyLabels(ctx, messageID, []string{label}, nil)
}

// Reconcile moves a message's label from the old category to the new
// one in a single combined add/remove request. If neither category has
// a mapped label the call is skipped entirely.
func (ls *LabelSync) Reconcile(
	ctx context.Context,
	messageID string,
	oldCat, newCat model.Category,
) error {
	var add, remove []string
	if label, ok := LabelFor(newCat); ok {
		add = append(add, label)
	}
	if label, ok := LabelFor(oldCat); ok {
		remove = append(remove, label)
	}
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	return ls.mbox.ApplyLabels(ctx, messageID, add, remove)
}

// labelStage applies the mapped label to every categorized record in
// the store. Mailbox errors are logged per message and never abort the
// run; label state may lag the store after a failure.
func (p *Pipeline) labelStage(ctx context.Context, st *RunState) error {
	records, err := p.store.GetRecentCategorized(ctx, 0)
	if err != nil {
		return err
	}

	applied := 0
	for _, rec := range records {
		cat := rec.CurrentCategory()
		if _, ok := LabelFor(cat); !ok {
			continue
		}

		if err := p.labels.Apply(ctx, rec.MessageID, cat); err != nil {
			p.log.Error("label apply failed",
				zap.String("run_id", st.RunID),
				zap.String("message_id", rec.MessageID),
				zap.String("category", string(cat)),
				zap.Error(err),
			)
			st.Note("[label] failed for %s: %v", rec.MessageID, err)
			continue
		}
		applied++
	}

	st.Note("[label] applied labels to %d record(s)", applied)
	return nil
}
