package triage

import (
	"context"
	"time"

	"github.com/nhle/inbox-triage/internal/model"
)

// fakeMailbox is an in-memory Mailbox recording label mutations.
type fakeMailbox struct {
	unread   []string
	messages map[string]*model.EmailRecord

	listErr  error
	fetchErr error
	labelErr error

	labelCalls []labelCall
}

type labelCall struct {
	id     string
	add    []string
	remove []string
}

func (f *fakeMailbox) ListUnread(_ context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.unread, nil
}

func (f *fakeMailbox) Fetch(_ context.Context, id string) (*model.EmailRecord, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	rec, ok := f.messages[id]
	if !ok {
		return nil, &notFoundError{id: id}
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeMailbox) ApplyLabels(
	_ context.Context, id string, add, remove []string,
) error {
	if f.labelErr != nil {
		return f.labelErr
	}
	f.labelCalls = append(f.labelCalls, labelCall{
		id: id, add: add, remove: remove,
	})
	return nil
}

type notFoundError struct{ id string }

func (e *notFoundError) Error() string {
	return "message " + e.id + " not found"
}

// fakeCalendar records requested blocks.
type fakeCalendar struct {
	blocks []calendarBlock
	err    error
}

type calendarBlock struct {
	summary string
	start   time.Time
	end     time.Time
}

func (f *fakeCalendar) CreateBlock(
	_ context.Context, summary string, start, end time.Time,
) error {
	if f.err != nil {
		return f.err
	}
	f.blocks = append(f.blocks, calendarBlock{
		summary: summary, start: start, end: end,
	})
	return nil
}

// fakeLLM replays scripted responses in order, repeating the last one
// once the script is exhausted.
type fakeLLM struct {
	replies []string
	err     error
	calls   int
}

func (f *fakeLLM) Complete(
	_ context.Context, _, _ string,
) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	i := f.calls - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}
