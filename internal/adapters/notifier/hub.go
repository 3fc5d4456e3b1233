// Package notifier implements the in-process notification hub that fans out
// bid and closure events to connected clients.
package notifier

import (
	"sync"

	"github.com/rs/zerolog"

	"netauction-server/internal/ports/outbound"
	"netauction-server/internal/protocol"
)

// Hub maps authenticated usernames to their outbound channel. Registration is
// last-wins: a reconnecting user replaces the old channel. Delivery is
// best-effort; push failures are logged and the stale registration is left
// for the owning connection to clean up on disconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]outbound.Pusher
	logger  zerolog.Logger
}

type HubParams struct {
	Logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(params HubParams) *Hub {
	return &Hub{
		clients: make(map[string]outbound.Pusher),
		logger:  params.Logger.With().Str("component", "notification_hub").Logger(),
	}
}

// Register binds a username to its outbound channel, replacing any previous
// registration for that user.
func (h *Hub) Register(username string, p outbound.Pusher) {
	if username == "" || p == nil {
		return
	}
	h.mu.Lock()
	h.clients[username] = p
	h.mu.Unlock()
	h.logger.Debug().Str("username", username).Msg("Client registered")
}

// Unregister removes the user's registration, but only if p still owns it:
// a reconnect may already have replaced the channel.
func (h *Hub) Unregister(username string, p outbound.Pusher) {
	if username == "" {
		return
	}
	h.mu.Lock()
	removed := false
	if current, ok := h.clients[username]; ok && (p == nil || current == p) {
		delete(h.clients, username)
		removed = true
	}
	h.mu.Unlock()
	if removed {
		h.logger.Debug().Str("username", username).Msg("Client unregistered")
	}
}

// IsRegistered reports whether a user currently has a channel.
func (h *Hub) IsRegistered(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[username]
	return ok
}

// ConnectedCount returns the number of registered clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifyNewBid broadcasts an accepted bid to every registered client.
func (h *Hub) NotifyNewBid(auctionID, auctionTitle string, amount float64, bidder string) {
	msg := protocol.NewNotification(protocol.NotifyNewBid).
		Set("auctionId", auctionID).
		Set("auctionTitle", auctionTitle).
		Set("amount", amount).
		Set("bidder", bidder)
	h.broadcast(msg)
}

// NotifyOutbid tells the displaced leader it was outbid. Skipped when there
// was no previous leader.
func (h *Hub) NotifyOutbid(previousBidder, auctionID, auctionTitle string, newAmount float64, newBidder string) {
	if previousBidder == "" {
		return
	}
	msg := protocol.NewNotification(protocol.NotifyOutbid).
		Set("auctionId", auctionID).
		Set("auctionTitle", auctionTitle).
		Set("newAmount", newAmount).
		Set("newBidder", newBidder)
	h.send(previousBidder, msg)
}

// NotifyAuctionClosed tells the seller, and the winner when one exists, that
// the auction finished.
func (h *Hub) NotifyAuctionClosed(auctionID, auctionTitle, winner string, finalPrice float64, seller string, deserted bool) {
	msg := protocol.NewNotification(protocol.NotifyAuctionClosed).
		Set("auctionId", auctionID).
		Set("auctionTitle", auctionTitle).
		Set("winner", winner).
		Set("finalPrice", finalPrice).
		Set("isDeserted", deserted)

	h.send(seller, msg)
	if !deserted && winner != "" && winner != seller {
		h.send(winner, msg)
	}
}

// send delivers a message to one user if registered.
func (h *Hub) send(username string, msg *protocol.Message) {
	h.mu.RLock()
	p, ok := h.clients[username]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if err := p.Push(msg); err != nil {
		h.logger.Warn().Err(err).Str("username", username).Str("action", msg.Action).
			Msg("Failed to push notification")
		return
	}
	h.logger.Debug().Str("username", username).Str("action", msg.Action).Msg("Notification sent")
}

// broadcast delivers a message to every registered user.
func (h *Hub) broadcast(msg *protocol.Message) {
	h.mu.RLock()
	usernames := make([]string, 0, len(h.clients))
	for username := range h.clients {
		usernames = append(usernames, username)
	}
	h.mu.RUnlock()

	for _, username := range usernames {
		h.send(username, msg)
	}
}
