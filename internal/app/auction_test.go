package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netauction-server/internal/domain/auction"
	"netauction-server/internal/domain/bid"
	"netauction-server/internal/domain/shared"
	"netauction-server/internal/domain/user"
	"netauction-server/internal/ports/inbound"
	"netauction-server/internal/ports/outbound"
)

// recordingStore captures InsertBid rows so tests can compare what was
// persisted against the in-memory history.
type recordingStore struct {
	mu   sync.Mutex
	bids []bid.Bid
}

var _ outbound.Store = (*recordingStore)(nil)

func (r *recordingStore) LoadAllUsers(context.Context) ([]*user.User, error) { return nil, nil }
func (r *recordingStore) InsertUser(context.Context, *user.User) error       { return nil }
func (r *recordingStore) UpdateUser(context.Context, *user.User) error       { return nil }
func (r *recordingStore) LoadAllAuctions(context.Context) ([]*auction.Auction, error) {
	return nil, nil
}
func (r *recordingStore) InsertAuction(context.Context, *auction.Auction) error { return nil }
func (r *recordingStore) UpdateAuction(context.Context, *auction.Auction) error { return nil }
func (r *recordingStore) BidsForAuction(context.Context, string) ([]bid.Bid, error) {
	return nil, nil
}
func (r *recordingStore) Close() error { return nil }

func (r *recordingStore) InsertBid(_ context.Context, b bid.Bid) error {
	r.mu.Lock()
	r.bids = append(r.bids, b)
	r.mu.Unlock()
	return nil
}

func (r *recordingStore) insertedBids() []bid.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bid.Bid(nil), r.bids...)
}

func newTestAuctionService(t *testing.T) *AuctionService {
	t.Helper()
	return NewAuctionService(AuctionServiceParams{Logger: zerolog.Nop()})
}

func createAuction(t *testing.T, s *AuctionService, seller string, minutes int) *auction.Auction {
	t.Helper()
	a, err := s.Create(context.Background(), inbound.CreateAuctionRequest{
		Title:           "lot",
		Description:     "",
		Seller:          seller,
		StartPrice:      10.00,
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return a
}

func TestCreate_AssignsIDAndRegisters(t *testing.T) {
	s := newTestAuctionService(t)

	a := createAuction(t, s, "seller", 5)
	assert.True(t, strings.HasPrefix(a.ID, "AUC-"))
	assert.Equal(t, auction.StatusActive, a.Status())

	got, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestCreate_Validation(t *testing.T) {
	s := newTestAuctionService(t)
	ctx := context.Background()

	base := inbound.CreateAuctionRequest{
		Title:           "lot",
		Seller:          "seller",
		StartPrice:      10.00,
		DurationMinutes: 5,
	}

	tests := []struct {
		name    string
		mutate  func(*inbound.CreateAuctionRequest)
		wantErr error
	}{
		{"blank title", func(r *inbound.CreateAuctionRequest) { r.Title = "   " }, shared.ErrTitleRequired},
		{"title too long", func(r *inbound.CreateAuctionRequest) { r.Title = strings.Repeat("x", 101) }, shared.ErrTitleTooLong},
		{"description too long", func(r *inbound.CreateAuctionRequest) { r.Description = strings.Repeat("x", 1001) }, shared.ErrDescriptionLong},
		{"price too low", func(r *inbound.CreateAuctionRequest) { r.StartPrice = 0 }, shared.ErrStartPriceLow},
		{"duration too short", func(r *inbound.CreateAuctionRequest) { r.DurationMinutes = 0 }, shared.ErrDurationTooShort},
		{"duration too long", func(r *inbound.CreateAuctionRequest) { r.DurationMinutes = 10081 }, shared.ErrDurationTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := s.Create(ctx, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	s := newTestAuctionService(t)

	_, _, err := s.PlaceBid(context.Background(), "AUC-missing", "alice", 20.00)
	assert.ErrorIs(t, err, shared.ErrAuctionNotFound)
}

func TestPlaceBid_Flow(t *testing.T) {
	s := newTestAuctionService(t)
	a := createAuction(t, s, "seller", 5)

	outcome, got, err := s.PlaceBid(context.Background(), a.ID, "alice", 12.00)
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Same(t, a, got)
	assert.Equal(t, 12.00, a.CurrentPrice())
}

// Parallel bidders on the same auction must leave the service with a
// consistent winner/price pair.
func TestPlaceBid_ConcurrentAcrossService(t *testing.T) {
	s := newTestAuctionService(t)
	a := createAuction(t, s, "seller", 5)
	ctx := context.Background()

	const bidders = 40
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.PlaceBid(ctx, a.ID, fmt.Sprintf("bidder%d", i), 10.00+float64(i+1))
			if err != nil {
				assert.ErrorIs(t, err, shared.ErrBidTooLow)
			}
		}(i)
	}
	wg.Wait()

	price, winner := a.PriceAndWinner()
	bids := a.Bids()
	require.NotEmpty(t, bids)
	assert.Equal(t, bids[len(bids)-1].Bidder, winner)
	assert.Equal(t, bids[len(bids)-1].Amount, price)
}

// Every accepted bid must be persisted exactly once, as the row this call
// committed, even when another bid lands between the commit and the write.
func TestPlaceBid_PersistsEachCommittedBidOnce(t *testing.T) {
	store := &recordingStore{}
	s := NewAuctionService(AuctionServiceParams{Store: store, Logger: zerolog.Nop()})
	a := createAuction(t, s, "seller", 5)
	ctx := context.Background()

	const bidders = 32
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.PlaceBid(ctx, a.ID, fmt.Sprintf("bidder%d", i), 10.00+float64(i+1))
			if err != nil {
				assert.ErrorIs(t, err, shared.ErrBidTooLow)
			}
		}(i)
	}
	wg.Wait()

	committed := a.Bids()
	persisted := store.insertedBids()
	require.Len(t, persisted, len(committed))

	// InsertBid calls interleave freely across goroutines; amounts are
	// unique per bidder, so sorting recovers the commit order.
	sort.Slice(persisted, func(i, j int) bool { return persisted[i].Amount < persisted[j].Amount })
	assert.Equal(t, committed, persisted)
}

func TestListActive_SortedByRemainingTime(t *testing.T) {
	s := newTestAuctionService(t)

	later := createAuction(t, s, "seller", 60)
	soon := createAuction(t, s, "seller", 5)

	list := s.ListActive()
	require.Len(t, list, 2)
	assert.Equal(t, soon.ID, list[0].ID)
	assert.Equal(t, later.ID, list[1].ID)
}

func TestListActive_ExcludesFinishedAndCancelled(t *testing.T) {
	s := newTestAuctionService(t)
	ctx := context.Background()

	live := createAuction(t, s, "seller", 5)
	closed := createAuction(t, s, "seller", 5)
	cancelled := createAuction(t, s, "seller", 5)

	require.True(t, s.Close(ctx, closed.ID))
	require.NoError(t, s.Cancel(ctx, cancelled.ID))

	list := s.ListActive()
	require.Len(t, list, 1)
	assert.Equal(t, live.ID, list[0].ID)
}

func TestCancel_Errors(t *testing.T) {
	s := newTestAuctionService(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Cancel(ctx, "AUC-missing"), shared.ErrAuctionNotFound)

	a := createAuction(t, s, "seller", 5)
	require.True(t, s.Close(ctx, a.ID))
	assert.ErrorIs(t, s.Cancel(ctx, a.ID), shared.ErrCancelNotActive)
}

func TestHistoryQueries(t *testing.T) {
	s := newTestAuctionService(t)
	ctx := context.Background()

	mine := createAuction(t, s, "alice", 5)
	other := createAuction(t, s, "bob", 5)

	_, _, err := s.PlaceBid(ctx, other.ID, "alice", 15.00)
	require.NoError(t, err)
	require.True(t, s.Close(ctx, other.ID))

	bySeller := s.BySeller("alice")
	require.Len(t, bySeller, 1)
	assert.Equal(t, mine.ID, bySeller[0].ID)

	byBidder := s.ByBidder("alice")
	require.Len(t, byBidder, 1)
	assert.Equal(t, other.ID, byBidder[0].ID)

	won := s.WonBy("alice")
	require.Len(t, won, 1)
	assert.Equal(t, other.ID, won[0].ID)

	assert.Empty(t, s.WonBy("bob"))
}

func TestExpired_ReturnsOnlyOverdueActive(t *testing.T) {
	s := newTestAuctionService(t)
	createAuction(t, s, "seller", 60)

	assert.Empty(t, s.Expired())
}
