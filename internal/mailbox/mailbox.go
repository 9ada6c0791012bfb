package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/inbox-triage/internal/model"
)

// AuthError indicates that authentication has failed or expired for the
// mailbox. It is returned by the IMAP client when login is rejected.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mailbox auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Mailbox defines the contract the triage pipeline consumes for reading
// messages and mutating their labels. Label truth lives on the mailbox
// side; the pipeline only issues add/remove requests.
type Mailbox interface {
	// ListUnread enumerates the identifiers of unread messages.
	ListUnread(ctx context.Context) ([]string, error)

	// Fetch retrieves the full message detail for an identifier,
	// including the decoded plain-text body.
	Fetch(ctx context.Context, id string) (*model.EmailRecord, error)

	// ApplyLabels adds and removes labels on a message. Both sets may
	// be empty, in which case the call is a no-op.
	ApplyLabels(ctx context.Context, id string, add, remove []string) error
}
