package mail

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const imapCommandMail = "From: Owner <owner@example.com>\r\n" +
	"To: gateway@example.com\r\n" +
	"Subject: command\r\n" +
	"Message-ID: <cmd-1@example.com>\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 +0800\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"/health\r\n"

// startIMAPServer runs an in-memory IMAP server with one user whose
// "command" folder holds the given messages.
func startIMAPServer(t *testing.T, messages ...string) string {
	t.Helper()

	user := imapmemserver.NewUser("gateway@example.com", "secret")
	require.NoError(t, user.Create("command", nil))
	for _, raw := range messages {
		_, err := user.Append("command", bytes.NewReader([]byte(raw)), &imap.AppendOptions{})
		require.NoError(t, err)
	}

	memServer := imapmemserver.New()
	memServer.AddUser(user)

	server := imapserver.New(&imapserver.Options{
		NewSession: func(_ *imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memServer.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	return ln.Addr().String()
}

func newTestIMAPClient(t *testing.T, addr, password string) *IMAPClient {
	t.Helper()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	c := NewIMAPClient(host, port, "gateway@example.com", password, false)
	c.dial = func(addr string, _ bool) (*imapclient.Client, error) {
		return imapclient.DialInsecure(addr, nil)
	}
	return c
}

func connectCommandFolder(t *testing.T, addr string) *Mailbox {
	t.Helper()

	mb, err := newTestIMAPClient(t, addr, "secret").Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mb.Close() })

	require.NoError(t, mb.Select("command"))
	return mb
}

func TestIMAPClient_ConnectBadPassword(t *testing.T) {
	addr := startIMAPServer(t)

	_, err := newTestIMAPClient(t, addr, "wrong").Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestMailbox_SelectMissingFolder(t *testing.T) {
	addr := startIMAPServer(t)

	mb, err := newTestIMAPClient(t, addr, "secret").Connect(context.Background())
	require.NoError(t, err)
	defer mb.Close()

	assert.Error(t, mb.Select("missing"))
}

func TestMailbox_FetchLeavesMessageUnseen(t *testing.T) {
	addr := startIMAPServer(t, imapCommandMail)
	mb := connectCommandFolder(t, addr)

	uids, err := mb.UnseenUIDs()
	require.NoError(t, err)
	require.Len(t, uids, 1)

	msg, err := mb.Fetch(uids[0])
	require.NoError(t, err)
	assert.Equal(t, uids[0], msg.UID)
	assert.Equal(t, "command", msg.Subject)
	assert.Equal(t, "cmd-1@example.com", msg.MessageID)
	assert.Contains(t, msg.From, "owner@example.com")
	assert.Contains(t, msg.CommandBody(), "/health")

	again, err := mb.UnseenUIDs()
	require.NoError(t, err)
	assert.Equal(t, uids, again)
}

func TestMailbox_MarkSeen(t *testing.T) {
	addr := startIMAPServer(t, imapCommandMail, imapCommandMail)
	mb := connectCommandFolder(t, addr)

	uids, err := mb.UnseenUIDs()
	require.NoError(t, err)
	require.Len(t, uids, 2)

	require.NoError(t, mb.MarkSeen(uids[0]))

	remaining, err := mb.UnseenUIDs()
	require.NoError(t, err)
	assert.Equal(t, uids[1:], remaining)
}

func TestMailbox_FetchUnknownUID(t *testing.T) {
	addr := startIMAPServer(t, imapCommandMail)
	mb := connectCommandFolder(t, addr)

	_, err := mb.Fetch(999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMessageUnavailable)

	uids, err := mb.UnseenUIDs()
	require.NoError(t, err)
	assert.Len(t, uids, 1)
}
