package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
	"github.com/nhle/inbox-triage/tests/testutil"
)

func TestExtractCategoryExactMatch(t *testing.T) {
	cat, path := ExtractCategory("  Urgent_Action \n")
	require.Equal(t, model.CategoryUrgentAction, cat)
	require.Equal(t, ParseExact, path)
}

func TestExtractCategorySubstring(t *testing.T) {
	cat, path := ExtractCategory("Category: newsletter (coupon)")
	require.Equal(t, model.CategoryNewsletter, cat)
	require.Equal(t, ParseSubstring, path)
}

func TestExtractCategoryFallback(t *testing.T) {
	cat, path := ExtractCategory("no idea lol")
	require.Equal(t, model.CategoryWeekendReading, cat)
	require.Equal(t, ParseDefault, path)
}

func TestExtractCategoryEmptyOutput(t *testing.T) {
	cat, path := ExtractCategory("")
	require.Equal(t, model.CategoryWeekendReading, cat)
	require.Equal(t, ParseDefault, path)
}

func TestExtractCategoryAmbiguousSubstringFallsBack(t *testing.T) {
	// Two category names in one response is not a usable answer.
	cat, path := ExtractCategory("either newsletter or ignore")
	require.Equal(t, model.CategoryWeekendReading, cat)
	require.Equal(t, ParseDefault, path)
}

func newTestPipeline(
	t *testing.T,
	mbox *fakeMailbox,
	cal *fakeCalendar,
	llm *fakeLLM,
) (*Pipeline, *store.SQLiteStore) {
	t.Helper()

	s := testutil.NewTestStore(t)
	p := New(s, mbox, cal, llm, model.TriageConfig{}, zap.NewNop())
	return p, s
}

func TestClassifyStageAssignsModeratedConfidence(t *testing.T) {
	mbox := &fakeMailbox{}
	llm := &fakeLLM{replies: []string{"urgent_action"}}
	p, ts := newTestPipeline(t, mbox, &fakeCalendar{}, llm)

	ctx := context.Background()
	st := &RunState{RunID: "test"}
	st.Batch = []model.EmailRecord{{
		MessageID: "1",
		FromAddr:  "billing@example.com",
		Subject:   "Invoice due Friday",
		Body:      "Please pay by Friday.",
	}}
	require.NoError(t, ts.UpsertNew(ctx, st.Batch[0]))

	require.NoError(t, p.classifyStage(ctx, st))

	records, err := ts.GetByCategory(ctx, model.CategoryUrgentAction, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.InEpsilon(t, classifiedConfidence, *records[0].Confidence, 1e-9)
}

func TestClassifyStageModelErrorFallsBackToDefault(t *testing.T) {
	mbox := &fakeMailbox{}
	llm := &fakeLLM{err: errors.New("model unavailable")}
	p, ts := newTestPipeline(t, mbox, &fakeCalendar{}, llm)

	ctx := context.Background()
	st := &RunState{RunID: "test"}
	st.Batch = []model.EmailRecord{{MessageID: "2", Subject: "Hello"}}
	require.NoError(t, ts.UpsertNew(ctx, st.Batch[0]))

	require.NoError(t, p.classifyStage(ctx, st))

	records, err := ts.GetByCategory(ctx, model.CategoryWeekendReading, false)
	require.NoError(t, err)
	require.Len(t, records, 1, "model failure must land on the default category")
}

func TestClassifyStageTruncatesBody(t *testing.T) {
	mbox := &fakeMailbox{}
	llm := &fakeLLM{replies: []string{"ignore"}}
	p, ts := newTestPipeline(t, mbox, &fakeCalendar{}, llm)
	p.cfg.BodyLimit = 10

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}

	ctx := context.Background()
	st := &RunState{RunID: "test"}
	st.Batch = []model.EmailRecord{{MessageID: "3", Body: string(long)}}
	require.NoError(t, ts.UpsertNew(ctx, st.Batch[0]))

	require.NoError(t, p.classifyStage(ctx, st))
	require.Equal(t, 1, llm.calls)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	// "é" is two bytes; cutting at byte 2 would split it.
	require.Equal(t, "a", truncate("aé", 2))
	require.Equal(t, "aé", truncate("aé", 3))
	require.Equal(t, "short", truncate("short", 100))
	require.Equal(t, "unbounded", truncate("unbounded", 0))

	// 300 bytes of three-byte runes; 100 is not a rune boundary.
	long := strings.Repeat("日", 100)
	got := truncate(long, 100)
	require.True(t, utf8.ValidString(got))
	require.Len(t, got, 99)
}
