package triage

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nhle/inbox-triage/internal/model"
)

// categorizeSystemPrompt instructs the model to pick exactly one of the
// four persisted categories. The validation pass advertises the same
// vocabulary so both decision points agree on the allowed set.
const categorizeSystemPrompt = `You are classifying emails into EXACTLY ONE of these categories:

1. urgent_action
   - Requires the recipient to personally DO something within the next 48 hours.
   - Examples: bills due, invoice/payment required, meeting to confirm, form to sign, reply requested, school/medical updates needing a response, travel changes.

2. newsletter
   - Marketing, promotions, sales, shopping offers, coupons.
   - Recurring newsletters or product updates.
   - Time-limited sales still go here UNLESS it's clearly a bill or an existing subscription charge.

3. weekend_reading
   - Long articles, blog posts, tutorials, webinars, course content.
   - Interesting but no direct action required soon.

4. ignore
   - Obvious spam, junk, or irrelevant things.

VERY IMPORTANT:
- Promotional shopping emails are NOT urgent_action.
- If you are unsure, choose newsletter, NOT urgent_action.

Return ONLY the category name as plain text: one of:
urgent_action, newsletter, weekend_reading, ignore.`

// defaultCategory is assigned when the model output cannot be mapped to
// any allowed category. Classification never fails the pipeline.
const defaultCategory = model.CategoryWeekendReading

// ParsePath identifies which level of the tolerant category parse
// produced the result, so callers and tests can observe the decision.
type ParsePath int

const (
	// ParseExact means the normalized output equaled a category name.
	ParseExact ParsePath = iota

	// ParseSubstring means exactly one category name appeared inside
	// the output text.
	ParseSubstring

	// ParseDefault means nothing usable was found and the fixed
	// default category was assigned.
	ParseDefault
)

// String returns the parse path name for logs and notes.
func (p ParsePath) String() string {
	switch p {
	case ParseExact:
		return "exact"
	case ParseSubstring:
		return "substring"
	default:
		return "default"
	}
}

// ExtractCategory maps raw model output to an allowed category. The
// parse is tolerant: trim and lowercase, try an exact match, then
// accept the output if exactly one category name appears inside it,
// and otherwise fall back to the fixed default.
func ExtractCategory(raw string) (model.Category, ParsePath) {
	text := strings.ToLower(strings.TrimSpace(raw))

	if cat := model.Category(text); cat.Valid() {
		return cat, ParseExact
	}

	var found model.Category
	matches := 0
	for cat := range model.AllowedCategories {
		if strings.Contains(text, string(cat)) {
			found = cat
			matches++
		}
	}
	if matches == 1 {
		return found, ParseSubstring
	}

	return defaultCategory, ParseDefault
}

// classifyStage assigns a category to every message ingested in this
// run. Model errors are absorbed per message: the empty output falls
// through the tolerant parse to the default category.
func (p *Pipeline) classifyStage(ctx context.Context, st *RunState) error {
	if len(st.Batch) == 0 {
		st.Note("[classify] nothing to classify")
		return nil
	}

	classified := 0
	for _, rec := range st.Batch {
		content := fmt.Sprintf(
			"From: %s\nSubject: %s\nBody:\n%s",
			rec.FromAddr, rec.Subject, truncate(rec.Body, p.cfg.BodyLimit),
		)

		raw, err := p.llm.Complete(ctx, categorizeSystemPrompt, content)
		if err != nil {
			p.log.Warn("model call failed, using default category",
				zap.String("run_id", st.RunID),
				zap.String("message_id", rec.MessageID),
				zap.Error(err),
			)
			st.Note("[classify] model error for %s: %v", rec.MessageID, err)
			raw = ""
		}

		cat, path := ExtractCategory(raw)
		p.log.Info("message classified",
			zap.String("run_id", st.RunID),
			zap.String("message_id", rec.MessageID),
			zap.String("category", string(cat)),
			zap.String("parse_path", path.String()),
		)

		err = p.store.SetCategory(
			ctx, rec.MessageID, cat, classifiedConfidence, p.now(),
		)
		if err != nil {
			st.Note("[classify] store error for %s: %v", rec.MessageID, err)
			continue
		}

		st.Note("[classify] %s -> %s (%s)", rec.MessageID, cat, path)
		classified++
	}

	st.Note("[classify] categorized %d of %d message(s)", classified, len(st.Batch))
	return nil
}

// truncate bounds s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
