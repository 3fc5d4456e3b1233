package outbound

import (
	"context"

	"netauction-server/internal/domain/auction"
	"netauction-server/internal/domain/bid"
	"netauction-server/internal/domain/user"
)

// Store is the persistence collaborator. In-memory state stays authoritative
// for the process lifetime: the engine loads everything at startup and writes
// through on mutation, and it must keep working when no Store is configured.
type Store interface {
	// LoadAllUsers returns every stored user.
	LoadAllUsers(ctx context.Context) ([]*user.User, error)

	// InsertUser persists a newly registered user.
	InsertUser(ctx context.Context, u *user.User) error

	// UpdateUser persists mutable user state (role, block flag, lock window).
	UpdateUser(ctx context.Context, u *user.User) error

	// LoadAllAuctions returns every stored auction with its bid history.
	LoadAllAuctions(ctx context.Context) ([]*auction.Auction, error)

	// InsertAuction persists a newly created auction.
	InsertAuction(ctx context.Context, a *auction.Auction) error

	// UpdateAuction persists auction state after a bid, closure or cancel.
	UpdateAuction(ctx context.Context, a *auction.Auction) error

	// InsertBid appends one accepted bid.
	InsertBid(ctx context.Context, b bid.Bid) error

	// BidsForAuction returns the bid history of one auction in order.
	BidsForAuction(ctx context.Context, auctionID string) ([]bid.Bid, error)

	// Close releases the underlying connection.
	Close() error
}
