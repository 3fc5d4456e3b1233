package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"netauction-server/internal/app"
	"netauction-server/internal/domain/shared"
	"netauction-server/internal/protocol"
)

// Client is one WebSocket connection carrying the same request/response
// protocol as the TCP transport, one JSON text frame per message instead of
// one line.
type Client struct {
	conn       *websocket.Conn
	dispatcher *app.Dispatcher
	logger     zerolog.Logger

	writeMu sync.Mutex

	stateMu  sync.Mutex
	username string
	token    string
	stopped  bool

	stopOnce sync.Once
}

type ClientParams struct {
	Conn       *websocket.Conn
	Dispatcher *app.Dispatcher
	Logger     zerolog.Logger
}

func NewClient(params ClientParams) *Client {
	return &Client{
		conn:       params.Conn,
		dispatcher: params.Dispatcher,
		logger: params.Logger.With().
			Str("component", "ws_client").
			Str("remote", params.Conn.RemoteAddr().String()).
			Logger(),
	}
}

// Run reads request frames until the peer disconnects.
func (c *Client) Run(ctx context.Context) {
	defer c.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("Connection read ended")
			}
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		resp := c.dispatcher.HandleFrame(ctx, data, c)
		if err := c.Push(resp); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to write response")
			return
		}
	}
}

// Push writes one frame. Safe for concurrent use by the notification hub.
func (c *Client) Push(msg *protocol.Message) error {
	c.stateMu.Lock()
	if c.stopped {
		c.stateMu.Unlock()
		return shared.ErrConnectionStopped
	}
	c.stateMu.Unlock()

	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Stop tears the connection down exactly once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.stateMu.Lock()
		c.stopped = true
		c.stateMu.Unlock()

		c.dispatcher.OnDisconnect(c)
		c.conn.Close()
		c.logger.Debug().Msg("Connection closed")
	})
}

func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Client) Username() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.username
}

func (c *Client) SetUsername(username string) {
	c.stateMu.Lock()
	c.username = username
	c.stateMu.Unlock()
}

func (c *Client) Token() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.stateMu.Lock()
	c.token = token
	c.stateMu.Unlock()
}

var _ app.ClientConn = (*Client)(nil)
