package bid

import "time"

// Bid represents a single accepted bid on an auction. Bids are append-only:
// once recorded they are never mutated.
type Bid struct {
	AuctionID string    `json:"auction_id"`
	Bidder    string    `json:"bidder"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a bid stamped with the current time.
func New(auctionID, bidder string, amount float64) Bid {
	return Bid{
		AuctionID: auctionID,
		Bidder:    bidder,
		Amount:    amount,
		Timestamp: time.Now(),
	}
}
