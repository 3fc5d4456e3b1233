package tcp

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netauction-server/internal/adapters/audit"
	"netauction-server/internal/adapters/notifier"
	"netauction-server/internal/app"
	"netauction-server/internal/config"
	"netauction-server/internal/protocol"
)

func startTestServer(t *testing.T) (*Server, *notifier.Hub, *app.SessionStore) {
	t.Helper()

	logger := zerolog.Nop()
	sessions := app.NewSessionStore(app.SessionStoreParams{Logger: logger})
	users := app.NewUserService(app.UserServiceParams{Logger: logger})
	auctions := app.NewAuctionService(app.AuctionServiceParams{Logger: logger})
	hub := notifier.NewHub(notifier.HubParams{Logger: logger})
	auditLog := audit.NewLogger(audit.LoggerParams{Logger: logger})

	dispatcher := app.NewDispatcher(app.DispatcherParams{
		Sessions: sessions,
		Users:    users,
		Auctions: auctions,
		Notifier: hub,
		Audit:    auditLog,
		Logger:   logger,
	})

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "0", MaxClients: 8},
	}

	server := NewServer(ServerParams{
		Config:     cfg,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)

	return server, hub, sessions
}

type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTestServer(t *testing.T, server *Server) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", server.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{conn: conn, reader: bufio.NewReaderSize(conn, maxFrameSize)}
}

func (c *testClient) send(t *testing.T, msg *protocol.Message) {
	t.Helper()
	data, err := msg.Encode()
	require.NoError(t, err)
	_, err = c.conn.Write(append(data, '\n'))
	require.NoError(t, err)
}

func (c *testClient) recv(t *testing.T) *protocol.Message {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	line, err := c.reader.ReadBytes('\n')
	require.NoError(t, err)
	msg, err := protocol.Parse(line)
	require.NoError(t, err)
	return msg
}

func (c *testClient) request(t *testing.T, msg *protocol.Message) *protocol.Message {
	t.Helper()
	c.send(t, msg)
	return c.recv(t)
}

func (c *testClient) login(t *testing.T, username string) string {
	t.Helper()

	resp := c.request(t, protocol.NewRequest(protocol.ActionRegister).
		Set("user", username).
		Set("password", "secret").
		Set("email", username+"@example.com"))
	require.True(t, resp.IsOK(), resp.String("message"))

	resp = c.request(t, protocol.NewRequest(protocol.ActionLogin).
		Set("user", username).
		Set("password", "secret"))
	require.True(t, resp.IsOK(), resp.String("message"))
	return resp.String("token")
}

func TestServer_RequestResponseOverWire(t *testing.T) {
	server, _, _ := startTestServer(t)
	client := dialTestServer(t, server)

	token := client.login(t, "alice")
	require.NotEmpty(t, token)

	msg := protocol.NewRequest(protocol.ActionListAuctions)
	msg.Token = token
	resp := client.request(t, msg)
	require.True(t, resp.IsOK())
	count, ok := resp.Int("count")
	require.True(t, ok)
	assert.Equal(t, 0, count)
}

func TestServer_MalformedLineKeepsConnectionUsable(t *testing.T) {
	server, _, _ := startTestServer(t)
	client := dialTestServer(t, server)

	_, err := client.conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	resp := client.recv(t)
	assert.Equal(t, protocol.ActionUnknown+protocol.ResponseSuffix, resp.Action)
	assert.Equal(t, protocol.StatusError, resp.Status())

	// The same connection still serves requests.
	resp = client.request(t, protocol.NewRequest(protocol.ActionRegister).
		Set("user", "bob").
		Set("password", "secret").
		Set("email", "bob@example.com"))
	assert.True(t, resp.IsOK())
}

func TestServer_NotificationCrossesConnections(t *testing.T) {
	server, _, _ := startTestServer(t)

	seller := dialTestServer(t, server)
	sellerToken := seller.login(t, "seller")

	createMsg := protocol.NewRequest(protocol.ActionCreateAuction).
		Set("title", "lot").
		Set("startPrice", 10.00).
		Set("durationMinutes", 10.0)
	createMsg.Token = sellerToken
	resp := seller.request(t, createMsg)
	require.True(t, resp.IsOK(), resp.String("message"))
	auctionID := resp.String("auctionId")

	bidder := dialTestServer(t, server)
	bidderToken := bidder.login(t, "alice")

	bidMsg := protocol.NewRequest(protocol.ActionBid).
		Set("auctionId", auctionID).
		Set("amount", 12.00)
	bidMsg.Token = bidderToken
	bidder.send(t, bidMsg)

	// The seller's connection receives the NEW_BID push without asking.
	notification := seller.recv(t)
	assert.Equal(t, protocol.NotifyNewBid, notification.Action)
	assert.Equal(t, auctionID, notification.String("auctionId"))
	assert.Equal(t, "alice", notification.String("bidder"))
}

func TestServer_DisconnectInvalidatesSession(t *testing.T) {
	server, hub, sessions := startTestServer(t)
	client := dialTestServer(t, server)

	token := client.login(t, "alice")
	require.True(t, hub.IsRegistered("alice"))

	require.NoError(t, client.conn.Close())

	require.Eventually(t, func() bool {
		return sessions.Validate(token) == nil && !hub.IsRegistered("alice")
	}, 5*time.Second, 50*time.Millisecond)
}
