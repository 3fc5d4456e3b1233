package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"netauction-server/internal/app"
	"netauction-server/internal/domain/shared"
	"netauction-server/internal/protocol"
)

const (
	// maxFrameSize bounds one line on the wire. Anything larger kills the
	// connection after an error response.
	maxFrameSize = 1024 * 1024

	initialScanBuffer = 64 * 1024
)

// Client is one TCP connection speaking newline-delimited JSON. The write
// mutex serializes request responses against notification pushes, so frames
// never interleave on the socket.
type Client struct {
	conn       net.Conn
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
	Conn       net.Conn
	Dispatcher *app.Dispatcher
	Logger     zerolog.Logger
}

// NewClient wraps an accepted connection.
func NewClient(params ClientParams) *Client {
	return &Client{
		conn:       params.Conn,
		dispatcher: params.Dispatcher,
		logger: params.Logger.With().
			Str("component", "tcp_client").
			Str("remote", params.Conn.RemoteAddr().String()).
			Logger(),
	}
}

// Run reads request frames until the peer disconnects or the frame limit is
// exceeded. It blocks; the server runs it on a pool worker.
func (c *Client) Run(ctx context.Context) {
	defer c.Stop()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, initialScanBuffer), maxFrameSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := c.dispatcher.HandleFrame(ctx, line, c)
		if err := c.Push(resp); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to write response")
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			c.logger.Warn().Msg("Frame size limit exceeded")
			_ = c.Push(protocol.NewErrorResponse(protocol.ActionUnknown, shared.ErrFrameTooLarge.Error()))
			return
		}
		c.logger.Debug().Err(err).Msg("Connection read ended")
	}
}

// Push writes one frame to the socket. Safe for concurrent use; the
// notification hub calls it from other goroutines.
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
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Stop tears the connection down exactly once: session invalidation,
// notification unregistration, socket close.
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

// RemoteAddr identifies the peer for audit records.
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
