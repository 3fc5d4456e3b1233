package outbound

import "netauction-server/internal/protocol"

// Pusher is one client's outbound channel. Implementations serialize writes
// against concurrent response traffic on the same socket.
type Pusher interface {
	Push(msg *protocol.Message) error
}

// Notifier fans out typed notifications to registered clients. Delivery is
// best-effort and never blocks or fails the triggering request; a broken
// channel is cleaned up by its owning connection on disconnect.
type Notifier interface {
	// Register binds a username to its outbound channel, replacing any
	// previous registration for that user.
	Register(username string, p Pusher)

	// Unregister removes the user's registration if p still owns it.
	Unregister(username string, p Pusher)

	// NotifyNewBid broadcasts an accepted bid to every registered client.
	NotifyNewBid(auctionID, auctionTitle string, amount float64, bidder string)

	// NotifyOutbid tells the displaced leader it was outbid. Skipped when
	// previousBidder is empty.
	NotifyOutbid(previousBidder, auctionID, auctionTitle string, newAmount float64, newBidder string)

	// NotifyAuctionClosed tells the seller, and the winner when one exists,
	// that the auction finished.
	NotifyAuctionClosed(auctionID, auctionTitle, winner string, finalPrice float64, seller string, deserted bool)
}
