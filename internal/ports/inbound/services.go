package inbound

import (
	"context"

	"netauction-server/internal/domain/auction"
	"netauction-server/internal/domain/session"
	"netauction-server/internal/domain/user"
)

// CreateAuctionRequest carries a seller's auction parameters.
type CreateAuctionRequest struct {
	Title           string
	Description     string
	Seller          string
	StartPrice      float64
	DurationMinutes int
}

// AuctionService defines the auction engine operations the protocol layer
// and the scheduler depend on.
type AuctionService interface {
	// Create validates and registers a new ACTIVE auction.
	Create(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// Get retrieves an auction by id.
	Get(auctionID string) (*auction.Auction, bool)

	// PlaceBid runs one atomic bid attempt and returns its outcome together
	// with the auction it hit.
	PlaceBid(ctx context.Context, auctionID, bidder string, amount float64) (auction.BidOutcome, *auction.Auction, error)

	// ListActive returns ACTIVE unexpired auctions ordered by ascending
	// remaining time.
	ListActive() []*auction.Auction

	// Expired returns ACTIVE auctions past their end time, the scheduler's
	// work queue.
	Expired() []*auction.Auction

	// Close marks an auction FINISHED.
	Close(ctx context.Context, auctionID string) bool

	// Cancel marks an ACTIVE auction CANCELLED.
	Cancel(ctx context.Context, auctionID string) error

	// BySeller returns the auctions a user created, newest first.
	BySeller(username string) []*auction.Auction

	// ByBidder returns the auctions containing at least one bid by the user.
	ByBidder(username string) []*auction.Auction

	// WonBy returns the finished auctions the user won.
	WonBy(username string) []*auction.Auction
}

// UserService defines the user directory operations.
type UserService interface {
	// Register validates and creates a new user.
	Register(ctx context.Context, username, password, email string) error

	// Authenticate verifies credentials and tracks failed attempts.
	Authenticate(ctx context.Context, username, password string) (*user.User, error)

	// Get retrieves a user by username, case-insensitive.
	Get(username string) (*user.User, bool)

	// SetBlocked blocks or unblocks an account.
	SetBlocked(ctx context.Context, username string, blocked bool) error
}

// SessionStore issues, validates and invalidates session tokens.
type SessionStore interface {
	// Create issues a fresh token, evicting any prior session for the user.
	Create(username, role string) *session.Session

	// Validate resolves a token, renewing the sliding expiry on success.
	Validate(token string) *session.Session

	// Invalidate removes one session by token.
	Invalidate(token string) bool

	// InvalidateForUser removes the user's session, if any.
	InvalidateForUser(username string) bool
}
