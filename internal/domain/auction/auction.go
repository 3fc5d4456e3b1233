package auction

import (
	"fmt"
	"sync"
	"time"

	"netauction-server/internal/domain/bid"
	"netauction-server/internal/domain/shared"
)

// Status represents the current status of an auction
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

// Auction represents a time-boxed auction. The embedded RWMutex guards
// current price, current winner and the bid list as one unit, so a bid's
// three effects are indivisible.
type Auction struct {
	ID          string
	Title       string
	Description string
	Seller      string
	StartPrice  float64
	StartTime   time.Time
	EndTime     time.Time

	mu            sync.RWMutex
	currentPrice  float64
	currentWinner string
	status        Status
	bids          []bid.Bid
}

// New creates an ACTIVE auction starting now and ending after the given
// duration. Validation happens in the application layer; New assumes a
// well-formed request.
func New(id, title, description, seller string, startPrice float64, duration time.Duration) *Auction {
	now := time.Now()
	return &Auction{
		ID:           id,
		Title:        title,
		Description:  description,
		Seller:       seller,
		StartPrice:   startPrice,
		StartTime:    now,
		EndTime:      now.Add(duration),
		currentPrice: startPrice,
		status:       StatusActive,
	}
}

// Restore rebuilds an auction loaded from persistence, including its bid
// history and terminal status.
func Restore(id, title, description, seller string, startPrice, currentPrice float64,
	currentWinner string, startTime, endTime time.Time, status Status, bids []bid.Bid) *Auction {
	return &Auction{
		ID:            id,
		Title:         title,
		Description:   description,
		Seller:        seller,
		StartPrice:    startPrice,
		StartTime:     startTime,
		EndTime:       endTime,
		currentPrice:  currentPrice,
		currentWinner: currentWinner,
		status:        status,
		bids:          bids,
	}
}

// BidOutcome is the atomically-observed result of a bid attempt. On success
// PreviousBidder carries the displaced leader (empty if none) for the OUTBID
// notification.
type BidOutcome struct {
	Accepted       bool
	Message        string
	PreviousBidder string
	NewPrice       float64
	Bid            bid.Bid
}

// PlaceBid attempts a bid. The whole check-and-commit runs under the write
// lock: a reader can never observe the new price without the new winner.
// A rejected bid reports the price that caused the rejection.
func (a *Auction) PlaceBid(bidder string, amount float64) (BidOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusActive || !time.Now().Before(a.EndTime) {
		return BidOutcome{}, shared.ErrAuctionNotActive
	}
	if bidder == a.Seller {
		return BidOutcome{}, shared.ErrSelfBid
	}
	if amount <= a.currentPrice {
		return BidOutcome{
			Message:  fmt.Sprintf("bid must be greater than current price (%.2f)", a.currentPrice),
			NewPrice: a.currentPrice,
		}, shared.ErrBidTooLow
	}

	previous := a.currentWinner
	committed := bid.New(a.ID, bidder, amount)
	a.bids = append(a.bids, committed)
	a.currentPrice = amount
	a.currentWinner = bidder

	return BidOutcome{
		Accepted:       true,
		Message:        "bid accepted",
		PreviousBidder: previous,
		NewPrice:       amount,
		Bid:            committed,
	}, nil
}

// Close marks the auction FINISHED. The scheduler calls it exactly once per
// auction; the lock only protects it against concurrent bids.
func (a *Auction) Close() {
	a.mu.Lock()
	a.status = StatusFinished
	a.mu.Unlock()
}

// Cancel marks the auction CANCELLED. Allowed only while ACTIVE.
func (a *Auction) Cancel() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusActive {
		return shared.ErrCancelNotActive
	}
	a.status = StatusCancelled
	return nil
}

// Status returns the current auction status.
func (a *Auction) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// CurrentPrice returns the current leading price, or the start price when no
// bid was placed yet.
func (a *Auction) CurrentPrice() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentPrice
}

// CurrentWinner returns the leading bidder, empty when there is none.
func (a *Auction) CurrentWinner() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentWinner
}

// PriceAndWinner returns the (price, winner) pair as one snapshot. Any value
// it returns corresponds to the initial state or to exactly one committed bid.
func (a *Auction) PriceAndWinner() (float64, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentPrice, a.currentWinner
}

// IsActive reports whether the auction still accepts bids: status ACTIVE and
// the end time not yet reached.
func (a *Auction) IsActive() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status == StatusActive && time.Now().Before(a.EndTime)
}

// HasExpired reports whether the auction is still ACTIVE but past its end
// time, which makes it work for the scheduler.
func (a *Auction) HasExpired() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status == StatusActive && !time.Now().Before(a.EndTime)
}

// IsDeserted reports whether the auction never received a bid.
func (a *Auction) IsDeserted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.bids) == 0
}

// BidCount returns the number of accepted bids.
func (a *Auction) BidCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.bids)
}

// Bids returns a copy of the bid history in acceptance order.
func (a *Auction) Bids() []bid.Bid {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]bid.Bid, len(a.bids))
	copy(out, a.bids)
	return out
}

// HasBidFrom reports whether the given user placed at least one bid.
func (a *Auction) HasBidFrom(bidder string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, b := range a.bids {
		if b.Bidder == bidder {
			return true
		}
	}
	return false
}

// RemainingSeconds computes the remaining lifetime on read, never stored, so
// it is always current. Zero once the end time has passed.
func (a *Auction) RemainingSeconds() int64 {
	remaining := time.Until(a.EndTime)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

// RemainingTimeFormatted renders the remaining time as "Xm Ys" or "Ys",
// or "finished" once expired.
func (a *Auction) RemainingTimeFormatted() string {
	seconds := a.RemainingSeconds()
	if seconds <= 0 {
		return "finished"
	}
	if seconds >= 60 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}

// ClosingSnapshot captures everything the scheduler needs to announce a
// closure, taken under one lock acquisition before Close is called.
type ClosingSnapshot struct {
	ID         string
	Title      string
	Seller     string
	Winner     string
	FinalPrice float64
	Deserted   bool
}

// Snapshot returns a closing snapshot of the auction.
func (a *Auction) Snapshot() ClosingSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ClosingSnapshot{
		ID:         a.ID,
		Title:      a.Title,
		Seller:     a.Seller,
		Winner:     a.currentWinner,
		FinalPrice: a.currentPrice,
		Deserted:   len(a.bids) == 0,
	}
}
