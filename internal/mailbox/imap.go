package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/inbox-triage/internal/model"
)

// IMAPMailbox implements Mailbox against an IMAP server. Message
// identifiers are mailbox UIDs rendered as decimal strings; labels are
// IMAP keywords.
type IMAPMailbox struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	folder   string
}

// NewIMAPMailbox creates a new IMAP mailbox client configuration.
func NewIMAPMailbox(
	cfg model.MailboxConfig, password string,
) *IMAPMailbox {
	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPMailbox{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: password,
		tls:      cfg.TLS,
		folder:   folder,
	}
}

// connect establishes a connection to the IMAP server, authenticates,
// and selects the triage folder. The caller is responsible for calling
// Logout on the returned client.
func (m *IMAPMailbox) connect(
	_ context.Context,
) (*imapclient.Client, error) {
	addr := m.host + ":" + m.port

	var client *imapclient.Client
	var err error

	if m.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(m.username, m.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", m.username, err,
			),
		}
	}

	if _, err := client.Select(m.folder, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", m.folder, err)
	}

	return client, nil
}

// ListUnread returns the UIDs of unseen messages in the triage folder.
func (m *IMAPMailbox) ListUnread(ctx context.Context) ([]string, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unread messages: %w", err)
	}

	uids := searchData.AllUIDs()
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}

	return ids, nil
}

// Fetch retrieves the full message for a UID and maps it to an
// EmailRecord with a decoded plain-text body.
func (m *IMAPMailbox) Fetch(
	ctx context.Context, id string,
) (*model.EmailRecord, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet := imap.UIDSetNum(imap.UID(uid))

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %s not found", id)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	rec := recordFromBuffer(id, buf)

	// Parse the MIME body, preferring plain text over stripped HTML.
	if rawBody := buf.FindBodySection(bodySection); rawBody != nil {
		textBody, htmlBody := parseMIMEBody(rawBody)
		if textBody == "" && htmlBody != "" {
			textBody = stripHTML(htmlBody)
		}
		rec.Body = textBody
		rec.Snippet = makeSnippet(textBody)
	}

	if err := fetchCmd.Close(); err != nil {
		return rec, fmt.Errorf("closing fetch: %w", err)
	}

	return rec, nil
}

// ApplyLabels adds and removes label keywords on a message. Empty sets
// are tolerated; when both are empty the call does nothing.
func (m *IMAPMailbox) ApplyLabels(
	ctx context.Context, id string, add, remove []string,
) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet := imap.UIDSetNum(imap.UID(uid))

	if len(add) > 0 {
		storeCmd := client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  toFlags(add),
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return fmt.Errorf("adding labels on %s: %w", id, err)
		}
	}

	if len(remove) > 0 {
		storeCmd := client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsDel,
			Silent: true,
			Flags:  toFlags(remove),
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return fmt.Errorf("removing labels on %s: %w", id, err)
		}
	}

	return nil
}

// recordFromBuffer extracts the content fields of an EmailRecord from a
// FetchMessageBuffer.
func recordFromBuffer(
	id string, buf *imapclient.FetchMessageBuffer,
) *model.EmailRecord {
	rec := &model.EmailRecord{
		MessageID: id,
	}

	if buf.Envelope != nil {
		// The RFC Message-ID header correlates replies within a
		// conversation; the mailbox provides no stronger thread key.
		rec.ThreadID = buf.Envelope.MessageID
		rec.Subject = buf.Envelope.Subject
		if !buf.Envelope.Date.IsZero() {
			rec.ReceivedAt = buf.Envelope.Date.Format(time.RFC3339)
		}

		if len(buf.Envelope.From) > 0 {
			rec.FromAddr = buf.Envelope.From[0].Addr()
		}
		if len(buf.Envelope.To) > 0 {
			rec.ToAddr = buf.Envelope.To[0].Addr()
		}
	}

	for _, flag := range buf.Flags {
		rec.Labels = append(rec.Labels, string(flag))
	}

	return rec
}

// toFlags converts label names to IMAP keyword flags.
func toFlags(labels []string) []imap.Flag {
	flags := make([]imap.Flag, 0, len(labels))
	for _, l := range labels {
		flags = append(flags, imap.Flag(l))
	}
	return flags
}

// parseUID converts a string message ID to a uint32 UID.
func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message UID %q: %w", id, err)
	}
	return uint32(uid), nil
}

// parseMIMEBody parses a raw RFC 2822 message body using go-message
// and extracts the text/plain and text/html bodies.
func parseMIMEBody(raw []byte) (textBody string, htmlBody string) {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// If parsing fails, try treating the whole thing as plain text
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}

// snippetLen bounds the stored plain-text preview.
const snippetLen = 160

// makeSnippet collapses whitespace in the body and truncates it to a
// short preview.
func makeSnippet(body string) string {
	collapsed := strings.Join(strings.Fields(body), " ")
	if len(collapsed) > snippetLen {
		return collapsed[:snippetLen]
	}
	return collapsed
}
