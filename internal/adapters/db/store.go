package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"netauction-server/internal/domain/auction"
	"netauction-server/internal/domain/bid"
	"netauction-server/internal/domain/user"
	"netauction-server/internal/ports/outbound"
)

// Supported driver names, matching the database/sql registration names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store persists users, auctions and bids through database/sql. It backs the
// in-memory engine: a full load at startup, write-through on mutation. All
// timestamps are stored as Unix milliseconds so both drivers scan them the
// same way.
type Store struct {
	db     *sql.DB
	driver string
	logger zerolog.Logger
}

type StoreParams struct {
	Driver string
	DSN    string
	Logger zerolog.Logger
}

// NewStore opens the database, verifies connectivity and creates the schema.
func NewStore(ctx context.Context, params StoreParams) (*Store, error) {
	conn, err := sql.Open(params.Driver, params.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     conn,
		driver: params.Driver,
		logger: params.Logger.With().Str("component", "store").Logger(),
	}

	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	s.logger.Info().Str("driver", params.Driver).Msg("Store ready")
	return s, nil
}

var schema = []string{
	`
	CREATE TABLE IF NOT EXISTS users (
		username        TEXT PRIMARY KEY,
		verifier        TEXT NOT NULL,
		salt            TEXT NOT NULL,
		email           TEXT NOT NULL,
		role            TEXT NOT NULL,
		blocked         INTEGER NOT NULL DEFAULT 0,
		failed_attempts INTEGER NOT NULL DEFAULT 0,
		locked_until    BIGINT NOT NULL DEFAULT 0,
		created_at      BIGINT NOT NULL
	)
	`,
	`
	CREATE TABLE IF NOT EXISTS auctions (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		description    TEXT NOT NULL,
		seller         TEXT NOT NULL,
		start_price    DOUBLE PRECISION NOT NULL,
		current_price  DOUBLE PRECISION NOT NULL,
		current_winner TEXT NOT NULL DEFAULT '',
		start_time     BIGINT NOT NULL,
		end_time       BIGINT NOT NULL,
		status         TEXT NOT NULL
	)
	`,
	`
	CREATE TABLE IF NOT EXISTS bids (
		auction_id TEXT NOT NULL,
		bidder     TEXT NOT NULL,
		amount     DOUBLE PRECISION NOT NULL,
		bid_time   BIGINT NOT NULL
	)
	`,
	`CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids (auction_id, bid_time)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to the $n form postgres expects. SQLite takes
// ? natively.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LoadAllUsers returns every stored user.
func (s *Store) LoadAllUsers(ctx context.Context) ([]*user.User, error) {
	query := `
		SELECT username, verifier, salt, email, role, blocked, failed_attempts, locked_until, created_at
		FROM users
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		var (
			username, verifier, salt, email, role string
			blocked                               int
			failedAttempts                        int
			lockedUntil, createdAt                int64
		)
		if err := rows.Scan(&username, &verifier, &salt, &email, &role,
			&blocked, &failedAttempts, &lockedUntil, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user.Restore(
			username, verifier, salt, email, user.Role(role),
			blocked != 0, failedAttempts, millisToTime(lockedUntil), millisToTime(createdAt),
		))
	}

	return users, rows.Err()
}

// InsertUser persists a newly registered user.
func (s *Store) InsertUser(ctx context.Context, u *user.User) error {
	query := s.rebind(`
		INSERT INTO users (username, verifier, salt, email, role, blocked, failed_attempts, locked_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		u.Username,
		u.Verifier,
		u.Salt,
		u.Email,
		string(u.Role),
		boolToInt(u.IsBlocked()),
		u.FailedAttempts(),
		timeToMillis(u.LockedUntil()),
		u.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateUser persists mutable user state.
func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	query := s.rebind(`
		UPDATE users
		SET role = ?, blocked = ?, failed_attempts = ?, locked_until = ?
		WHERE username = ?
	`)

	_, err := s.db.ExecContext(ctx, query,
		string(u.Role),
		boolToInt(u.IsBlocked()),
		u.FailedAttempts(),
		timeToMillis(u.LockedUntil()),
		u.Username,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// LoadAllAuctions returns every stored auction with its bid history attached.
func (s *Store) LoadAllAuctions(ctx context.Context) ([]*auction.Auction, error) {
	bidsByAuction, err := s.loadAllBids(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, title, description, seller, start_price, current_price, current_winner, start_time, end_time, status
		FROM auctions
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		var (
			id, title, description, seller, winner, status string
			startPrice, currentPrice                       float64
			startTime, endTime                             int64
		)
		if err := rows.Scan(&id, &title, &description, &seller,
			&startPrice, &currentPrice, &winner, &startTime, &endTime, &status); err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, auction.Restore(
			id, title, description, seller, startPrice, currentPrice, winner,
			millisToTime(startTime), millisToTime(endTime),
			auction.Status(status), bidsByAuction[id],
		))
	}

	return auctions, rows.Err()
}

// InsertAuction persists a newly created auction.
func (s *Store) InsertAuction(ctx context.Context, a *auction.Auction) error {
	query := s.rebind(`
		INSERT INTO auctions (id, title, description, seller, start_price, current_price, current_winner, start_time, end_time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	price, winner := a.PriceAndWinner()
	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.Title,
		a.Description,
		a.Seller,
		a.StartPrice,
		price,
		winner,
		a.StartTime.UnixMilli(),
		a.EndTime.UnixMilli(),
		string(a.Status()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// UpdateAuction persists auction state after a bid, closure or cancel.
func (s *Store) UpdateAuction(ctx context.Context, a *auction.Auction) error {
	query := s.rebind(`
		UPDATE auctions
		SET current_price = ?, current_winner = ?, status = ?
		WHERE id = ?
	`)

	price, winner := a.PriceAndWinner()
	_, err := s.db.ExecContext(ctx, query, price, winner, string(a.Status()), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	return nil
}

// InsertBid appends one accepted bid.
func (s *Store) InsertBid(ctx context.Context, b bid.Bid) error {
	query := s.rebind(`
		INSERT INTO bids (auction_id, bidder, amount, bid_time)
		VALUES (?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query, b.AuctionID, b.Bidder, b.Amount, b.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// BidsForAuction returns the bid history of one auction in acceptance order.
func (s *Store) BidsForAuction(ctx context.Context, auctionID string) ([]bid.Bid, error) {
	query := s.rebind(`
		SELECT auction_id, bidder, amount, bid_time
		FROM bids
		WHERE auction_id = ?
		ORDER BY bid_time ASC
	`)

	rows, err := s.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bids: %w", err)
	}
	defer rows.Close()

	return scanBids(rows, nil)
}

// loadAllBids reads the whole bid table grouped by auction in one pass.
func (s *Store) loadAllBids(ctx context.Context) (map[string][]bid.Bid, error) {
	query := `
		SELECT auction_id, bidder, amount, bid_time
		FROM bids
		ORDER BY auction_id, bid_time ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load bids: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]bid.Bid)
	if _, err := scanBids(rows, grouped); err != nil {
		return nil, err
	}
	return grouped, nil
}

// scanBids drains a bid result set. With a non-nil grouped map it fills the
// map; otherwise it returns the flat slice.
func scanBids(rows *sql.Rows, grouped map[string][]bid.Bid) ([]bid.Bid, error) {
	var flat []bid.Bid
	for rows.Next() {
		var (
			auctionID, bidder string
			amount            float64
			bidTime           int64
		)
		if err := rows.Scan(&auctionID, &bidder, &amount, &bidTime); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		b := bid.Bid{
			AuctionID: auctionID,
			Bidder:    bidder,
			Amount:    amount,
			Timestamp: millisToTime(bidTime),
		}
		if grouped != nil {
			grouped[auctionID] = append(grouped[auctionID], b)
			continue
		}
		flat = append(flat, b)
	}
	return flat, rows.Err()
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func millisToTime(millis int64) time.Time {
	if millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

var _ outbound.Store = (*Store)(nil)
