package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"netauction-server/internal/domain/auction"
	"netauction-server/internal/domain/shared"
	"netauction-server/internal/ports/inbound"
	"netauction-server/internal/ports/outbound"
)

const (
	// MinStartPrice is the lowest allowed auction start price.
	MinStartPrice = 0.01

	// MinDurationMinutes and MaxDurationMinutes bound auction lifetimes
	// (one minute to seven days).
	MinDurationMinutes = 1
	MaxDurationMinutes = 10080

	maxTitleLength       = 100
	maxDescriptionLength = 1000
)

// AuctionService owns the concurrent auction registry. The registry map is
// guarded by its own lock for lookup and insertion; each auction guards its
// price, winner and bid list with its entity lock, so bids on different
// auctions proceed fully in parallel.
type AuctionService struct {
	mu       sync.RWMutex
	auctions map[string]*auction.Auction
	store    outbound.Store
	logger   zerolog.Logger
}

type AuctionServiceParams struct {
	Store  outbound.Store
	Logger zerolog.Logger
}

// NewAuctionService creates the registry and loads auctions from the store
// when one is configured.
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	s := &AuctionService{
		auctions: make(map[string]*auction.Auction),
		store:    params.Store,
		logger:   params.Logger.With().Str("component", "auction_service").Logger(),
	}

	if s.store != nil {
		loaded, err := s.store.LoadAllAuctions(context.Background())
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to load auctions, continuing memory-only")
		} else {
			for _, a := range loaded {
				s.auctions[a.ID] = a
			}
			s.logger.Info().Int("count", len(loaded)).Msg("Auctions loaded from store")
		}
	}

	return s
}

// Create validates and registers a new ACTIVE auction.
func (s *AuctionService) Create(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, shared.ErrTitleRequired
	}
	if len(title) > maxTitleLength {
		return nil, shared.ErrTitleTooLong
	}
	if len(req.Description) > maxDescriptionLength {
		return nil, shared.ErrDescriptionLong
	}
	if req.StartPrice < MinStartPrice {
		return nil, shared.ErrStartPriceLow
	}
	if req.DurationMinutes < MinDurationMinutes {
		return nil, shared.ErrDurationTooShort
	}
	if req.DurationMinutes > MaxDurationMinutes {
		return nil, shared.ErrDurationTooLong
	}

	a := auction.New(
		newAuctionID(),
		title,
		strings.TrimSpace(req.Description),
		req.Seller,
		req.StartPrice,
		time.Duration(req.DurationMinutes)*time.Minute,
	)

	s.mu.Lock()
	s.auctions[a.ID] = a
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.InsertAuction(ctx, a); err != nil {
			s.logger.Error().Err(err).Str("auction_id", a.ID).Msg("Failed to persist auction")
		}
	}

	s.logger.Info().
		Str("auction_id", a.ID).
		Str("seller", a.Seller).
		Float64("start_price", a.StartPrice).
		Time("end_time", a.EndTime).
		Msg("Auction created")

	return a, nil
}

// Register installs an existing auction, e.g. one restored from persistence.
func (s *AuctionService) Register(a *auction.Auction) {
	s.mu.Lock()
	s.auctions[a.ID] = a
	s.mu.Unlock()
}

// Get retrieves an auction by id.
func (s *AuctionService) Get(auctionID string) (*auction.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[auctionID]
	return a, ok
}

// PlaceBid runs one atomic bid attempt. The auction's entity lock serializes
// it against concurrent bids and against the scheduler's close; the loser of
// a bid race gets a rejection naming the price that beat it.
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, bidder string, amount float64) (auction.BidOutcome, *auction.Auction, error) {
	a, ok := s.Get(auctionID)
	if !ok {
		return auction.BidOutcome{}, nil, shared.ErrAuctionNotFound
	}

	outcome, err := a.PlaceBid(bidder, amount)
	if err != nil {
		return outcome, a, err
	}

	if s.store != nil {
		// Persist the bid committed by THIS call, not whatever happens to be
		// last in the history by now: a racing bid may already have appended.
		if err := s.store.InsertBid(ctx, outcome.Bid); err != nil {
			s.logger.Error().Err(err).Str("auction_id", auctionID).Msg("Failed to persist bid")
		}
		if err := s.store.UpdateAuction(ctx, a); err != nil {
			s.logger.Error().Err(err).Str("auction_id", auctionID).Msg("Failed to persist auction update")
		}
	}

	s.logger.Info().
		Str("auction_id", auctionID).
		Str("bidder", bidder).
		Float64("amount", amount).
		Msg("Bid accepted")

	return outcome, a, nil
}

// ListActive returns ACTIVE unexpired auctions ordered by ascending
// remaining time.
func (s *AuctionService) ListActive() []*auction.Auction {
	out := s.collect(func(a *auction.Auction) bool { return a.IsActive() })
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out
}

// Expired returns ACTIVE auctions past their end time.
func (s *AuctionService) Expired() []*auction.Auction {
	return s.collect(func(a *auction.Auction) bool { return a.HasExpired() })
}

// Close marks an auction FINISHED. The scheduler calls it exactly once per
// auction after capturing the closing snapshot.
func (s *AuctionService) Close(ctx context.Context, auctionID string) bool {
	a, ok := s.Get(auctionID)
	if !ok {
		return false
	}

	a.Close()
	s.persistUpdate(ctx, a)

	s.logger.Info().Str("auction_id", auctionID).Msg("Auction closed")
	return true
}

// Cancel marks an ACTIVE auction CANCELLED.
func (s *AuctionService) Cancel(ctx context.Context, auctionID string) error {
	a, ok := s.Get(auctionID)
	if !ok {
		return shared.ErrAuctionNotFound
	}

	if err := a.Cancel(); err != nil {
		return err
	}
	s.persistUpdate(ctx, a)

	s.logger.Info().Str("auction_id", auctionID).Msg("Auction cancelled")
	return nil
}

// BySeller returns the auctions a user created, newest first.
func (s *AuctionService) BySeller(username string) []*auction.Auction {
	out := s.collect(func(a *auction.Auction) bool { return a.Seller == username })
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}

// ByBidder returns the auctions containing at least one bid by the user,
// newest first.
func (s *AuctionService) ByBidder(username string) []*auction.Auction {
	out := s.collect(func(a *auction.Auction) bool { return a.HasBidFrom(username) })
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}

// WonBy returns the finished auctions the user won, most recently ended
// first.
func (s *AuctionService) WonBy(username string) []*auction.Auction {
	out := s.collect(func(a *auction.Auction) bool {
		return a.Status() == auction.StatusFinished && a.CurrentWinner() == username
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.After(out[j].EndTime) })
	return out
}

// Count returns the total number of known auctions.
func (s *AuctionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.auctions)
}

// collect returns a snapshot of registered auctions matching the predicate,
// safe for external iteration.
func (s *AuctionService) collect(match func(*auction.Auction) bool) []*auction.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*auction.Auction
	for _, a := range s.auctions {
		if match(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s *AuctionService) persistUpdate(ctx context.Context, a *auction.Auction) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateAuction(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("auction_id", a.ID).Msg("Failed to persist auction update")
	}
}

// newAuctionID allocates a fresh unique auction id.
func newAuctionID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return "AUC-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strings.ToUpper(hex.EncodeToString(buf))
}
