package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"netauction-server/internal/ports/inbound"
	"netauction-server/internal/ports/outbound"
)

// CheckInterval is how often the scheduler sweeps for expired auctions.
const CheckInterval = 1 * time.Second

// AuctionScheduler closes ACTIVE auctions whose end time has passed and
// announces every closure. Each auction is handled on its own; one failing
// closure never blocks the others.
type AuctionScheduler struct {
	auctions inbound.AuctionService
	notifier outbound.Notifier
	audit    outbound.Audit
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type AuctionSchedulerParams struct {
	Auctions inbound.AuctionService
	Notifier outbound.Notifier
	Audit    outbound.Audit
	Logger   zerolog.Logger
}

func NewAuctionScheduler(params AuctionSchedulerParams) *AuctionScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &AuctionScheduler{
		auctions: params.Auctions,
		notifier: params.Notifier,
		audit:    params.Audit,
		logger:   params.Logger.With().Str("component", "auction_scheduler").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the scheduler loop.
func (s *AuctionScheduler) Start() {
	s.logger.Info().Msg("Starting auction scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler.
func (s *AuctionScheduler) Stop() {
	s.logger.Info().Msg("Stopping auction scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *AuctionScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CheckExpiredAuctions()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// CheckExpiredAuctions runs one sweep: every ACTIVE auction past its end time
// is snapshotted, closed and announced.
func (s *AuctionScheduler) CheckExpiredAuctions() {
	for _, a := range s.auctions.Expired() {
		// The snapshot is taken before Close so the announced winner and
		// price are the ones the closure committed.
		snap := a.Snapshot()

		if !s.auctions.Close(s.ctx, a.ID) {
			continue
		}

		details := "winner: " + snap.Winner
		if snap.Deserted {
			details = "no bids"
		}
		if s.audit != nil {
			s.audit.Log("AUCTION_CLOSED", "SYSTEM", "SYSTEM", "auction "+snap.ID+" closed, "+details)
		}

		s.notifier.NotifyAuctionClosed(snap.ID, snap.Title, snap.Winner, snap.FinalPrice, snap.Seller, snap.Deserted)

		s.logger.Info().
			Str("auction_id", snap.ID).
			Str("winner", snap.Winner).
			Float64("final_price", snap.FinalPrice).
			Bool("deserted", snap.Deserted).
			Msg("Auction closed")
	}
}
