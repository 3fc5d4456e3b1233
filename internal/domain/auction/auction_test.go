package auction

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netauction-server/internal/domain/shared"
)

func newTestAuction(t *testing.T, duration time.Duration) *Auction {
	t.Helper()
	return New("AUC-1", "vintage radio", "works fine", "seller", 10.00, duration)
}

func TestPlaceBid_AcceptsHigherBid(t *testing.T) {
	a := newTestAuction(t, time.Minute)

	outcome, err := a.PlaceBid("alice", 12.50)
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, 12.50, outcome.NewPrice)
	assert.Empty(t, outcome.PreviousBidder)

	bids := a.Bids()
	require.Len(t, bids, 1)
	assert.Equal(t, bids[0], outcome.Bid)

	price, winner := a.PriceAndWinner()
	assert.Equal(t, 12.50, price)
	assert.Equal(t, "alice", winner)
	assert.Equal(t, 1, a.BidCount())
}

func TestPlaceBid_RejectsEqualOrLowerBid(t *testing.T) {
	a := newTestAuction(t, time.Minute)

	_, err := a.PlaceBid("alice", 15.00)
	require.NoError(t, err)

	// Equal to the current price is not enough.
	outcome, err := a.PlaceBid("bob", 15.00)
	require.ErrorIs(t, err, shared.ErrBidTooLow)
	assert.Contains(t, outcome.Message, "15.00")

	_, err = a.PlaceBid("bob", 14.00)
	require.ErrorIs(t, err, shared.ErrBidTooLow)

	price, winner := a.PriceAndWinner()
	assert.Equal(t, 15.00, price)
	assert.Equal(t, "alice", winner)
}

func TestPlaceBid_ReportsDisplacedLeader(t *testing.T) {
	a := newTestAuction(t, time.Minute)

	_, err := a.PlaceBid("alice", 11.00)
	require.NoError(t, err)

	outcome, err := a.PlaceBid("bob", 12.00)
	require.NoError(t, err)
	assert.Equal(t, "alice", outcome.PreviousBidder)
}

func TestPlaceBid_RejectsSeller(t *testing.T) {
	a := newTestAuction(t, time.Minute)

	_, err := a.PlaceBid("seller", 20.00)
	require.ErrorIs(t, err, shared.ErrSelfBid)
	assert.Equal(t, 0, a.BidCount())
}

func TestPlaceBid_RejectsExpiredAuction(t *testing.T) {
	a := newTestAuction(t, -time.Second)

	_, err := a.PlaceBid("alice", 20.00)
	require.ErrorIs(t, err, shared.ErrAuctionNotActive)
}

func TestPlaceBid_RejectsClosedAuction(t *testing.T) {
	a := newTestAuction(t, time.Minute)
	a.Close()

	_, err := a.PlaceBid("alice", 20.00)
	require.ErrorIs(t, err, shared.ErrAuctionNotActive)
	assert.Equal(t, StatusFinished, a.Status())
}

// Concurrent bids must resolve to exactly one winner whose amount is the
// final price, with the price never observed going down.
func TestPlaceBid_ConcurrentBiddersSingleWinner(t *testing.T) {
	a := newTestAuction(t, time.Minute)

	const bidders = 50
	var wg sync.WaitGroup
	accepted := make([]bool, bidders)

	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := a.PlaceBid(fmt.Sprintf("bidder%d", i), 10.00+float64(i+1))
			if err == nil {
				accepted[i] = outcome.Accepted
			} else {
				assert.ErrorIs(t, err, shared.ErrBidTooLow)
			}
		}(i)
	}
	wg.Wait()

	var acceptedCount int
	for _, ok := range accepted {
		if ok {
			acceptedCount++
		}
	}
	require.GreaterOrEqual(t, acceptedCount, 1)

	price, winner := a.PriceAndWinner()
	require.NotEmpty(t, winner)

	// The winner is whoever committed the highest accepted amount, and the
	// price matches exactly that bid.
	bids := a.Bids()
	require.NotEmpty(t, bids)
	last := bids[len(bids)-1]
	assert.Equal(t, last.Bidder, winner)
	assert.Equal(t, last.Amount, price)

	// Bid history is strictly increasing.
	for i := 1; i < len(bids); i++ {
		assert.Greater(t, bids[i].Amount, bids[i-1].Amount)
	}
}

func TestCancel_OnlyWhileActive(t *testing.T) {
	a := newTestAuction(t, time.Minute)
	require.NoError(t, a.Cancel())
	assert.Equal(t, StatusCancelled, a.Status())

	err := a.Cancel()
	require.True(t, errors.Is(err, shared.ErrCancelNotActive))

	b := newTestAuction(t, time.Minute)
	b.Close()
	require.ErrorIs(t, b.Cancel(), shared.ErrCancelNotActive)
}

func TestHasExpired(t *testing.T) {
	active := newTestAuction(t, time.Minute)
	assert.False(t, active.HasExpired())
	assert.True(t, active.IsActive())

	expired := newTestAuction(t, -time.Second)
	assert.True(t, expired.HasExpired())
	assert.False(t, expired.IsActive())

	// A closed auction is no longer scheduler work.
	expired.Close()
	assert.False(t, expired.HasExpired())
}

func TestIsDeserted(t *testing.T) {
	a := newTestAuction(t, time.Minute)
	assert.True(t, a.IsDeserted())

	_, err := a.PlaceBid("alice", 11.00)
	require.NoError(t, err)
	assert.False(t, a.IsDeserted())
}

func TestRemainingTimeFormatted(t *testing.T) {
	long := newTestAuction(t, 5*time.Minute)
	assert.Contains(t, long.RemainingTimeFormatted(), "m ")

	short := newTestAuction(t, 30*time.Second)
	formatted := short.RemainingTimeFormatted()
	assert.NotContains(t, formatted, "m")
	assert.Contains(t, formatted, "s")

	done := newTestAuction(t, -time.Second)
	assert.Equal(t, "finished", done.RemainingTimeFormatted())
	assert.EqualValues(t, 0, done.RemainingSeconds())
}

func TestSnapshot(t *testing.T) {
	a := newTestAuction(t, time.Minute)
	_, err := a.PlaceBid("alice", 13.00)
	require.NoError(t, err)

	snap := a.Snapshot()
	assert.Equal(t, a.ID, snap.ID)
	assert.Equal(t, "seller", snap.Seller)
	assert.Equal(t, "alice", snap.Winner)
	assert.Equal(t, 13.00, snap.FinalPrice)
	assert.False(t, snap.Deserted)
}

func TestHasBidFrom(t *testing.T) {
	a := newTestAuction(t, time.Minute)
	_, err := a.PlaceBid("alice", 11.00)
	require.NoError(t, err)

	assert.True(t, a.HasBidFrom("alice"))
	assert.False(t, a.HasBidFrom("bob"))
}

func TestRestore_KeepsState(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(-time.Minute)
	a := Restore("AUC-9", "old lamp", "", "seller", 5.00, 8.00, "alice",
		start, end, StatusFinished, nil)

	price, winner := a.PriceAndWinner()
	assert.Equal(t, 8.00, price)
	assert.Equal(t, "alice", winner)
	assert.Equal(t, StatusFinished, a.Status())
}
