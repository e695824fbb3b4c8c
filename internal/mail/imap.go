package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// ErrMessageUnavailable reports that the server could not deliver one
// message; the session itself is still usable.
var ErrMessageUnavailable = errors.New("message unavailable")

// IMAPClient wraps go-imap v2 for connecting to the command mailbox.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	dial     func(addr string, tls bool) (*imapclient.Client, error)
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		dial:     dialIMAP,
	}
}

// dialIMAP opens an implicit TLS or STARTTLS connection.
func dialIMAP(addr string, tls bool) (*imapclient.Client, error) {
	if tls {
		return imapclient.DialTLS(addr, nil)
	}
	return imapclient.DialStartTLS(addr, nil)
}

// Username returns the login name the client authenticates as.
func (c *IMAPClient) Username() string {
	return c.username
}

// Connect establishes a connection to the IMAP server and authenticates.
// The caller must Close the returned Mailbox.
func (c *IMAPClient) Connect(_ context.Context) (*Mailbox, error) {
	addr := c.host + ":" + c.port

	client, err := c.dial(addr, c.tls)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Close()
		return nil, &AuthError{
			Protocol: "imap",
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return &Mailbox{client: client}, nil
}

// Mailbox is an authenticated IMAP session.
type Mailbox struct {
	client *imapclient.Client
}

// Select opens folder read-write.
func (m *Mailbox) Select(folder string) error {
	if _, err := m.client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", folder, err)
	}
	return nil
}

// UnseenUIDs returns the UIDs of all messages without the \Seen flag in
// the selected folder.
func (m *Mailbox) UnseenUIDs() ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := m.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}

	all := searchData.AllUIDs()
	uids := make([]uint32, 0, len(all))
	for _, uid := range all {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

// Fetch retrieves and parses the full message with the given UID. The
// body is fetched with PEEK so the message stays unseen until MarkSeen.
func (m *Mailbox) Fetch(uid uint32) (*ParsedMessage, error) {
	uidSet := imap.UIDSetNum(imap.UID(uid))

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := m.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, fetchError(uid, err)
		}
		return nil, fmt.Errorf("message UID %d: %w", uid, ErrMessageUnavailable)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fetchError(uid, err)
	}

	parsed := &ParsedMessage{}
	if raw := buf.FindBodySection(bodySection); raw != nil {
		parsed = parseMessage(raw)
	}
	parsed.UID = uid

	if err := fetchCmd.Close(); err != nil {
		return parsed, fetchError(uid, err)
	}

	return parsed, nil
}

// fetchError marks tagged NO/BAD responses as ErrMessageUnavailable.
// Anything else is a transport failure.
func fetchError(uid uint32, err error) error {
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		return fmt.Errorf("fetching UID %d: %w: %w", uid, ErrMessageUnavailable, err)
	}
	return fmt.Errorf("fetching UID %d: %w", uid, err)
}

// MarkSeen adds the \Seen flag to the message with the given UID.
func (m *Mailbox) MarkSeen(uid uint32) error {
	uidSet := imap.UIDSetNum(imap.UID(uid))

	storeCmd := m.client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("marking UID %d seen: %w", uid, err)
	}
	return nil
}

// Close logs out and closes the connection.
func (m *Mailbox) Close() error {
	if err := m.client.Logout().Wait(); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}
