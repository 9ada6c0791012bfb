package model

import "time"

// Category classifies a triaged email into one of the four triage buckets.
type Category string

const (
	CategoryUrgentAction   Category = "urgent_action"
	CategoryNewsletter     Category = "newsletter"
	CategoryWeekendReading Category = "weekend_reading"
	CategoryIgnore         Category = "ignore"
)

// AllowedCategories is the closed set of categories that may be persisted.
var AllowedCategories = map[Category]bool{
	CategoryUrgentAction:   true,
	CategoryNewsletter:     true,
	CategoryWeekendReading: true,
	CategoryIgnore:         true,
}

// Valid reports whether c is one of the four allowed categories.
func (c Category) Valid() bool {
	return AllowedCategories[c]
}

// EmailRecord is the durable per-message triage state. One row exists per
// distinct message identifier; content fields are written once at ingest
// and never overwritten.
type EmailRecord struct {
	// MessageID is the mailbox-assigned unique identifier for the message.
	MessageID string `json:"message_id"`

	// ThreadID groups the message with its conversation thread.
	ThreadID string `json:"thread_id"`

	// FromAddr is the sender address as reported by the mailbox.
	FromAddr string `json:"from_addr"`

	// ToAddr is the primary recipient address.
	ToAddr string `json:"to_addr"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// Snippet is a short plain-text preview of the body.
	Snippet string `json:"snippet"`

	// Body is the decoded plain-text body.
	Body string `json:"body"`

	// ReceivedAt is the delivery timestamp as provided by the mailbox.
	ReceivedAt string `json:"received_at"`

	// Labels is the set of mailbox labels snapshotted at ingest time.
	// Label truth lives in the mailbox; this is not kept in sync.
	Labels []string `json:"labels"`

	// Category is the assigned triage category, nil until classified.
	Category *Category `json:"category"`

	// Confidence pairs with Category: nil iff Category is nil.
	Confidence *float64 `json:"category_confidence"`

	// ScheduledAt is set once a calendar block has been reserved for
	// this record, so repeated runs do not create duplicate blocks.
	ScheduledAt *time.Time `json:"scheduled_at"`

	// LastUpdatedAt advances on every category/confidence write.
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Categorized reports whether the record has been assigned a category.
func (r *EmailRecord) Categorized() bool {
	return r.Category != nil
}

// CurrentCategory returns the assigned category, or "" if none.
func (r *EmailRecord) CurrentCategory() Category {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}
