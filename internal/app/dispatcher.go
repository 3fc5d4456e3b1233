package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"netauction-server/internal/domain/session"
	"netauction-server/internal/domain/shared"
	"netauction-server/internal/ports/inbound"
	"netauction-server/internal/ports/outbound"
	"netauction-server/internal/protocol"
)

// ClientConn is the dispatcher's view of one connected client. Transports
// (tcp, ws) implement it; Push must serialize writes against concurrent
// notification pushes to the same connection.
type ClientConn interface {
	outbound.Pusher

	// RemoteAddr identifies the peer for audit records.
	RemoteAddr() string

	// Username returns the authenticated username bound to this connection,
	// empty before login.
	Username() string
	SetUsername(username string)

	// Token returns the session token issued over this connection, used for
	// cleanup on disconnect.
	Token() string
	SetToken(token string)
}

type handlerFunc func(ctx context.Context, msg *protocol.Message, conn ClientConn) *protocol.Message

// Dispatcher maps inbound request actions to handlers, enforcing
// authentication and authorization, and orchestrates the session store, user
// directory and auction engine to build responses.
type Dispatcher struct {
	sessions inbound.SessionStore
	users    inbound.UserService
	auctions inbound.AuctionService
	notifier outbound.Notifier
	audit    outbound.Audit
	logger   zerolog.Logger

	handlers map[string]handlerFunc
}

type DispatcherParams struct {
	Sessions inbound.SessionStore
	Users    inbound.UserService
	Auctions inbound.AuctionService
	Notifier outbound.Notifier
	Audit    outbound.Audit
	Logger   zerolog.Logger
}

// NewDispatcher builds the dispatch table.
func NewDispatcher(params DispatcherParams) *Dispatcher {
	d := &Dispatcher{
		sessions: params.Sessions,
		users:    params.Users,
		auctions: params.Auctions,
		notifier: params.Notifier,
		audit:    params.Audit,
		logger:   params.Logger.With().Str("component", "dispatcher").Logger(),
	}

	d.handlers = map[string]handlerFunc{
		protocol.ActionRegister:      d.handleRegister,
		protocol.ActionLogin:         d.handleLogin,
		protocol.ActionLogout:        d.requireAuth(d.handleLogout),
		protocol.ActionCreateAuction: d.requireAuth(d.handleCreateAuction),
		protocol.ActionListAuctions:  d.requireAuth(d.handleListAuctions),
		protocol.ActionAuctionDetail: d.requireAuth(d.handleAuctionDetail),
		protocol.ActionBid:           d.requireAuth(d.handleBid),
		protocol.ActionMyHistory:     d.requireAuth(d.handleMyHistory),
		protocol.ActionCancelAuction: d.requireAdmin(d.handleCancelAuction),
		protocol.ActionBlockUser:     d.requireAdmin(d.handleBlockUser),
		protocol.ActionViewLogs:      d.requireAdmin(d.handleViewLogs),
	}

	return d
}

// HandleFrame parses one wire frame and dispatches it. Malformed JSON yields
// an error response tagged UNKNOWN; the connection stays usable.
func (d *Dispatcher) HandleFrame(ctx context.Context, line []byte, conn ClientConn) *protocol.Message {
	msg, err := protocol.Parse(line)
	if err != nil {
		d.logger.Warn().Err(err).Str("remote", conn.RemoteAddr()).Msg("Malformed frame")
		return protocol.NewErrorResponse(protocol.ActionUnknown, "malformed message: invalid JSON")
	}
	return d.Handle(ctx, msg, conn)
}

// Handle routes one parsed request to its handler.
func (d *Dispatcher) Handle(ctx context.Context, msg *protocol.Message, conn ClientConn) *protocol.Message {
	if msg.Action == "" {
		return protocol.NewErrorResponse(protocol.ActionUnknown, shared.ErrActionRequired.Error())
	}

	handler, ok := d.handlers[msg.Action]
	if !ok {
		d.logger.Warn().Str("action", msg.Action).Str("remote", conn.RemoteAddr()).Msg("Unknown action")
		return protocol.NewErrorResponse(msg.Action, "unknown action: "+msg.Action)
	}

	return handler(ctx, msg, conn)
}

// OnDisconnect runs the idempotent connection cleanup: the session dies and
// the notification registration goes away.
func (d *Dispatcher) OnDisconnect(conn ClientConn) {
	if token := conn.Token(); token != "" {
		d.sessions.Invalidate(token)
	}
	if username := conn.Username(); username != "" {
		d.notifier.Unregister(username, conn)
	}
}

// requireAuth wraps a handler with session validation.
func (d *Dispatcher) requireAuth(next func(ctx context.Context, msg *protocol.Message, conn ClientConn, sess *session.Session) *protocol.Message) handlerFunc {
	return func(ctx context.Context, msg *protocol.Message, conn ClientConn) *protocol.Message {
		sess := d.sessions.Validate(msg.Token)
		if sess == nil {
			return protocol.NewErrorResponse(msg.Action, shared.ErrSessionInvalid.Error())
		}
		return next(ctx, msg, conn, sess)
	}
}

// requireAdmin wraps a handler with session validation plus the ADMIN role
// check.
func (d *Dispatcher) requireAdmin(next func(ctx context.Context, msg *protocol.Message, conn ClientConn, sess *session.Session) *protocol.Message) handlerFunc {
	return d.requireAuth(func(ctx context.Context, msg *protocol.Message, conn ClientConn, sess *session.Session) *protocol.Message {
		if !sess.IsAdmin() {
			d.auditLog(msg.Action, sess.Username, conn, "denied: admin role required")
			return protocol.NewErrorResponse(msg.Action, shared.ErrAdminRequired.Error())
		}
		return next(ctx, msg, conn, sess)
	})
}

func (d *Dispatcher) auditLog(action, user string, conn ClientConn, details string) {
	if d.audit != nil {
		d.audit.Log(action, user, conn.RemoteAddr(), details)
	}
}

// ==================== handlers ====================

func (d *Dispatcher) handleRegister(ctx context.Context, msg *protocol.Message, conn ClientConn) *protocol.Message {
	username := msg.String("user")
	password := msg.String("password")
	email := msg.String("email")

	if err := d.users.Register(ctx, username, password, email); err != nil {
		d.auditLog(protocol.ActionRegister, username, conn, "registration failed: "+err.Error())
		return protocol.NewErrorResponse(protocol.ActionRegister, err.Error())
	}

	d.auditLog(protocol.ActionRegister, username, conn, "registration successful")
	return protocol.NewSuccessResponse(protocol.ActionRegister, "user registered successfully")
}

func (d *Dispatcher) handleLogin(ctx context.Context, msg *protocol.Message, conn ClientConn) *protocol.Message {
	username := msg.String("user")
	password := msg.String("password")

	u, err := d.users.Authenticate(ctx, username, password)
	if err != nil {
		d.auditLog(protocol.ActionLogin, username, conn, "login failed: "+err.Error())
		return protocol.NewErrorResponse(protocol.ActionLogin, err.Error())
	}

	sess := d.sessions.Create(u.Username, string(u.Role))

	conn.SetUsername(u.Username)
	conn.SetToken(sess.Token)
	d.notifier.Register(u.Username, conn)

	d.auditLog(protocol.ActionLogin, u.Username, conn, "login successful")

	return protocol.NewSuccessResponse(protocol.ActionLogin, "welcome, "+u.Username).
		Set("token", sess.Token).
		Set("username", u.Username).
		Set("role", string(u.Role))
}

func (d *Dispatcher) handleLogout(_ context.Context, _ *protocol.Message, conn ClientConn, sess *session.Session) *protocol.Message {
	d.sessions.Invalidate(sess.Token)
	d.notifier.Unregister(sess.Username, conn)
	conn.SetUsername("")
	conn.SetToken("")

	d.auditLog(protocol.ActionLogout, sess.Username, conn, "logout successful")
	return protocol.NewSuccessResponse(protocol.ActionLogout, "session closed")
}

func (d *Dispatcher) handleCreateAuction(ctx context.Context, msg *protocol.Message, conn ClientConn, sess *session.Session) *protocol.Message {
	startPrice, ok := msg.Float("startPrice")
	if !ok {
		return protocol.NewErrorResponse(protocol.ActionCreateAuction, "valid startPrice is required")
	}
	duration, ok := msg.Int("durationMinutes")
	if !ok {
		return protocol.NewErrorResponse(protocol.ActionCreateAuction, "valid durationMinutes is required")
	}

	a, err := d.auctions.Create(ctx, inbound.CreateAuctionRequest{
		Title:           msg.String("title"),
		Description:     msg.String("description"),
		Seller:          sess.Username,
		StartPrice:      startPrice,
		DurationMinutes: duration,
	})
	if err != nil {
		return protocol.NewErrorResponse(protocol.ActionCreateAuction, err.Error())
	}

	d.auditLog(protocol.ActionCreateAuction, sess.Username, conn, "auction created: "+a.ID)

	return protocol.NewSuccessResponse(protocol.ActionCreateAuction, "auction created successfully").
		Set("auctionId", a.ID).
		Set("endTime", a.EndTime.UnixMilli())
}

func (d *Dispatcher) handleListAuctions(_ context.Context, _ *protocol.Message, _ ClientConn, _ *session.Session) *protocol.Message {
	active := d.auctions.ListActive()

	list := make([]map[string]any, 0, len(active))
	for _, a := range active {
		list = append(list, map[string]any{
			"id":               a.ID,
			"title":            a.Title,
			"currentPrice":     a.CurrentPrice(),
			"remainingTime":    a.RemainingTimeFormatted(),
			"remainingSeconds": a.RemainingSeconds(),
			"bidCount":         a.BidCount(),
			"seller":           a.Seller,
		})
	}

	return protocol.NewSuccessResponse(protocol.ActionListAuctions, "active auctions").
		Set("auctions", list).
		Set("count", len(list))
}

func (d *Dispatcher) handleAuctionDetail(_ context.Context, msg *protocol.Message, _ ClientConn, _ *session.Session) *protocol.Message {
	auctionID := msg.String("auctionId")
	if auctionID == "" {
		return protocol.NewErrorResponse(protocol.ActionAuctionDetail, shared.ErrAuctionIDRequired.Error())
	}

	a, ok := d.auctions.Get(auctionID)
	if !ok {
		return protocol.NewErrorResponse(protocol.ActionAuctionDetail, shared.ErrAuctionNotFound.Error())
	}

	price, winner := a.PriceAndWinner()

	// Last 10 bids, newest first.
	bids := a.Bids()
	recent := make([]map[string]any, 0, 10)
	for i := len(bids) - 1; i >= 0 && len(recent) < 10; i-- {
		recent = append(recent, map[string]any{
			"bidder":    bids[i].Bidder,
			"amount":    bids[i].Amount,
			"timestamp": bids[i].Timestamp.UnixMilli(),
		})
	}

	return protocol.NewSuccessResponse(protocol.ActionAuctionDetail, "auction detail").
		Set("id", a.ID).
		Set("title", a.Title).
		Set("description", a.Description).
		Set("seller", a.Seller).
		Set("startPrice", a.StartPrice).
		Set("currentPrice", price).
		Set("currentWinner", winner).
		Set("startTime", a.StartTime.UnixMilli()).
		Set("endTime", a.EndTime.UnixMilli()).
		Set("remainingTime", a.RemainingTimeFormatted()).
		Set("remainingSeconds", a.RemainingSeconds()).
		Set("status", string(a.Status())).
		Set("bidCount", len(bids)).
		Set("recentBids", recent)
}

func (d *Dispatcher) handleBid(ctx context.Context, msg *protocol.Message, conn ClientConn, sess *session.Session) *protocol.Message {
	auctionID := msg.String("auctionId")
	if auctionID == "" {
		return protocol.NewErrorResponse(protocol.ActionBid, shared.ErrAuctionIDRequired.Error())
	}
	amount, ok := msg.Float("amount")
	if !ok || amount <= 0 {
		return protocol.NewErrorResponse(protocol.ActionBid, shared.ErrAmountRequired.Error())
	}

	outcome, a, err := d.auctions.PlaceBid(ctx, auctionID, sess.Username, amount)
	if err != nil {
		if errors.Is(err, shared.ErrBidTooLow) {
			// The rejection reports the price observed atomically.
			return protocol.NewErrorResponse(protocol.ActionBid, outcome.Message)
		}
		return protocol.NewErrorResponse(protocol.ActionBid, err.Error())
	}

	d.auditLog(protocol.ActionBid, sess.Username, conn, "bid placed on "+auctionID)

	d.notifier.NotifyNewBid(a.ID, a.Title, amount, sess.Username)
	d.notifier.NotifyOutbid(outcome.PreviousBidder, a.ID, a.Title, amount, sess.Username)

	return protocol.NewSuccessResponse(protocol.ActionBid, outcome.Message).
		Set("auctionId", a.ID).
		Set("amount", amount).
		Set("newPrice", outcome.NewPrice)
}

func (d *Dispatcher) handleMyHistory(_ context.Context, _ *protocol.Message, _ ClientConn, sess *session.Session) *protocol.Message {
	username := sess.Username

	mine := d.auctions.BySeller(username)
	myAuctions := make([]map[string]any, 0, len(mine))
	for _, a := range mine {
		myAuctions = append(myAuctions, map[string]any{
			"id":           a.ID,
			"title":        a.Title,
			"currentPrice": a.CurrentPrice(),
			"status":       string(a.Status()),
			"bidCount":     a.BidCount(),
		})
	}

	bidded := d.auctions.ByBidder(username)
	biddedAuctions := make([]map[string]any, 0, len(bidded))
	for _, a := range bidded {
		price, winner := a.PriceAndWinner()
		biddedAuctions = append(biddedAuctions, map[string]any{
			"id":           a.ID,
			"title":        a.Title,
			"currentPrice": price,
			"status":       string(a.Status()),
			"isWinning":    winner == username,
		})
	}

	won := d.auctions.WonBy(username)
	wonAuctions := make([]map[string]any, 0, len(won))
	for _, a := range won {
		wonAuctions = append(wonAuctions, map[string]any{
			"id":         a.ID,
			"title":      a.Title,
			"finalPrice": a.CurrentPrice(),
			"seller":     a.Seller,
		})
	}

	return protocol.NewSuccessResponse(protocol.ActionMyHistory, "user history").
		Set("myAuctions", myAuctions).
		Set("biddedAuctions", biddedAuctions).
		Set("wonAuctions", wonAuctions).
		Set("myAuctionsCount", len(myAuctions)).
		Set("biddedCount", len(biddedAuctions)).
		Set("wonCount", len(wonAuctions))
}

func (d *Dispatcher) handleCancelAuction(ctx context.Context, msg *protocol.Message, conn ClientConn, sess *session.Session) *protocol.Message {
	auctionID := msg.String("auctionId")
	if auctionID == "" {
		return protocol.NewErrorResponse(protocol.ActionCancelAuction, shared.ErrAuctionIDRequired.Error())
	}

	if err := d.auctions.Cancel(ctx, auctionID); err != nil {
		return protocol.NewErrorResponse(protocol.ActionCancelAuction, err.Error())
	}

	d.auditLog(protocol.ActionCancelAuction, sess.Username, conn, "auction cancelled: "+auctionID)
	return protocol.NewSuccessResponse(protocol.ActionCancelAuction, "auction cancelled successfully")
}

func (d *Dispatcher) handleBlockUser(ctx context.Context, msg *protocol.Message, conn ClientConn, sess *session.Session) *protocol.Message {
	username := msg.String("username")
	if username == "" {
		return protocol.NewErrorResponse(protocol.ActionBlockUser, shared.ErrUsernameRequired.Error())
	}
	blocked := msg.Bool("blocked", true)

	if username == sess.Username {
		return protocol.NewErrorResponse(protocol.ActionBlockUser, shared.ErrSelfBlock.Error())
	}

	if err := d.users.SetBlocked(ctx, username, blocked); err != nil {
		return protocol.NewErrorResponse(protocol.ActionBlockUser, err.Error())
	}

	if blocked {
		// Blocking forcibly ends any live session of that user.
		d.sessions.InvalidateForUser(username)
		d.notifier.Unregister(username, nil)
	}

	verb := "unblocked"
	if blocked {
		verb = "blocked"
	}
	d.auditLog(protocol.ActionBlockUser, sess.Username, conn, "user "+username+" "+verb)
	return protocol.NewSuccessResponse(protocol.ActionBlockUser, "user "+username+" "+verb+" successfully")
}

func (d *Dispatcher) handleViewLogs(_ context.Context, _ *protocol.Message, _ ClientConn, _ *session.Session) *protocol.Message {
	var logs []string
	if d.audit != nil {
		logs = d.audit.Recent(100)
	}
	if logs == nil {
		logs = []string{}
	}

	return protocol.NewSuccessResponse(protocol.ActionViewLogs, "audit log").
		Set("logs", logs).
		Set("count", len(logs))
}

var _ inbound.AuctionService = (*AuctionService)(nil)
var _ inbound.UserService = (*UserService)(nil)
var _ inbound.SessionStore = (*SessionStore)(nil)
