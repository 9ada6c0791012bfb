package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/inbox-triage/internal/model"
)

// validateSystemPrompt asks the model to confirm or correct a category.
// It advertises the same four categories the classifier uses; the
// response contract is strict JSON.
const validateSystemPrompt = `You are validating email triage categories.

Allowed categories:
1. urgent_action - requires the recipient to personally act within the next 48 hours.
2. newsletter - marketing, promotions, recurring newsletters with no action.
3. weekend_reading - interesting but no urgency, fine to read on the weekend.
4. ignore - obvious spam, junk, or irrelevant things.

You will receive:
- the current category assigned by a previous pass
- the email (subject, snippet, body)

You MUST respond with STRICT JSON only, no extra text:

If the current category is correct:
{
  "keep": true,
  "new_category": null,
  "reason": "short explanation"
}

If it is wrong:
{
  "keep": false,
  "new_category": "<one_of_allowed>",
  "reason": "short explanation"
}`

// Verdict is the validation decision for one record.
type Verdict struct {
	Keep        bool    `json:"keep"`
	NewCategory *string `json:"new_category"`
	Reason      string  `json:"reason"`
}

// fallbackVerdict is used whenever the model output cannot be parsed.
// Validation never blocks the pipeline.
func fallbackVerdict() Verdict {
	return Verdict{Keep: true, NewCategory: nil, Reason: "fallback_keep"}
}

// ParseVerdict parses a validation verdict from raw model output. It
// first attempts a direct parse; failing that, it tries the substring
// between the first '{' and the last '}'; failing both, it returns the
// keep fallback.
func ParseVerdict(raw string) Verdict {
	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end != -1 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err == nil {
			return v
		}
	}

	return fallbackVerdict()
}

// validateStage re-examines the most recently updated categorized
// records and lets the model confirm or overturn each category. A
// confirmed record gets its confidence raised; a valid override updates
// the category and reconciles the mailbox labels. Parse failures and
// label errors are absorbed per record.
func (p *Pipeline) validateStage(ctx context.Context, st *RunState) error {
	records, err := p.store.GetRecentCategorized(ctx, p.cfg.ValidateWindow)
	if err != nil {
		return fmt.Errorf("loading recent categorized records: %w", err)
	}

	for _, rec := range records {
		current := rec.CurrentCategory()

		emailText := fmt.Sprintf(
			"Current category: %s\n\nSubject: %s\nSnippet: %s\n\nBody:\n%s",
			current, rec.Subject, rec.Snippet,
			truncate(rec.Body, p.cfg.BodyLimit),
		)

		raw, err := p.llm.Complete(ctx, validateSystemPrompt, emailText)
		if err != nil {
			p.log.Warn("validation model call failed",
				zap.String("run_id", st.RunID),
				zap.String("message_id", rec.MessageID),
				zap.Error(err),
			)
			raw = ""
		}

		verdict := ParseVerdict(raw)

		if verdict.Keep || verdict.NewCategory == nil {
			err := p.store.SetConfidence(
				ctx, rec.MessageID, validatedConfidence, p.now(),
			)
			if err != nil {
				st.Note("[validate] store error for %s: %v", rec.MessageID, err)
				continue
			}
			st.Note("[validate] kept category '%s' for %s: %s",
				current, rec.MessageID, verdict.Reason)
			continue
		}

		newCat := model.Category(strings.TrimSpace(*verdict.NewCategory))
		if !newCat.Valid() {
			st.Note("[validate] ignored unknown category '%s' for %s, keeping '%s'",
				newCat, rec.MessageID, current)
			p.log.Warn("validation returned unknown category",
				zap.String("run_id", st.RunID),
				zap.String("message_id", rec.MessageID),
				zap.String("new_category", string(newCat)),
			)
			continue
		}

		err = p.store.SetCategory(
			ctx, rec.MessageID, newCat, correctedConfidence, p.now(),
		)
		if err != nil {
			st.Note("[validate] store error for %s: %v", rec.MessageID, err)
			continue
		}

		if err := p.labels.Reconcile(ctx, rec.MessageID, current, newCat); err != nil {
			st.Note("[validate] failed label sync for %s: %v", rec.MessageID, err)
			p.log.Error("label reconcile failed",
				zap.String("run_id", st.RunID),
				zap.String("message_id", rec.MessageID),
				zap.Error(err),
			)
		}

		st.Note("[validate] updated %s: '%s' -> '%s' (%s)",
			rec.MessageID, current, newCat, verdict.Reason)
	}

	st.Note("[validate] reviewed %d record(s)", len(records))
	return nil
}
