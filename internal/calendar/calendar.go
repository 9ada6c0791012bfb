package calendar

import (
	"context"
	"time"
)

// Calendar defines the contract the triage pipeline consumes for
// reserving time blocks.
type Calendar interface {
	// CreateBlock reserves a calendar block with the given summary and
	// time window.
	CreateBlock(ctx context.Context, summary string, start, end time.Time) error
}
