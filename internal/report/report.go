// Package report содержит read-only отчёты администратора поверх sqlx.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Stats содержит сводку по площадке.
type Stats struct {
	TotalAccounts    int64           `db:"total_accounts" json:"total_accounts"`
	TotalListings    int64           `db:"total_listings" json:"total_listings"`
	ActiveListings   int64           `db:"active_listings" json:"active_listings"`
	TotalBids        int64           `db:"total_bids" json:"total_bids"`
	Revenue          decimal.Decimal `db:"revenue" json:"revenue"`
	NewAccountsToday int64           `db:"new_accounts_today" json:"new_accounts_today"`
	BidsToday        int64           `db:"bids_today" json:"bids_today"`
}

// Period описывает активность за период.
type Period struct {
	From      time.Time       `db:"-" json:"from"`
	Accounts  int64           `db:"accounts" json:"accounts"`
	Bids      int64           `db:"bids" json:"bids"`
	BidVolume decimal.Decimal `db:"bid_volume" json:"bid_volume"`
}

// ListingSummary описывает строку рейтинга лотов.
type ListingSummary struct {
	ID           string          `db:"id" json:"id"`
	Number       string          `db:"number" json:"number"`
	Network      string          `db:"network" json:"network"`
	Status       string          `db:"status" json:"status"`
	CurrentPrice decimal.Decimal `db:"current_price" json:"current_price"`
	BidCount     int             `db:"bid_count" json:"bid_count"`
}

// AccountSummary описывает строку рейтинга участников.
type AccountSummary struct {
	ID       string          `db:"id" json:"id"`
	Login    string          `db:"login" json:"login"`
	FullName string          `db:"full_name" json:"full_name"`
	Balance  decimal.Decimal `db:"balance" json:"balance"`
}

// Store выполняет отчётные запросы.
type Store struct {
	db *sqlx.DB
}

// New оборачивает *sql.DB поверх драйвера pgx.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "pgx")}
}

// DayStart возвращает начало суток t в UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart возвращает начало месяца t в UTC.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

const statsQuery = `
	SELECT
		(SELECT count(*) FROM accounts) AS total_accounts,
		(SELECT count(*) FROM listings) AS total_listings,
		(SELECT count(*) FROM listings WHERE status = 'ACTIVE' AND end_time > $1) AS active_listings,
		(SELECT count(*) FROM bids) AS total_bids,
		(SELECT COALESCE(SUM(sale_price), 0) FROM listings WHERE status = 'SOLD') AS revenue,
		(SELECT count(*) FROM accounts WHERE created_at >= $2) AS new_accounts_today,
		(SELECT count(*) FROM bids WHERE created_at >= $2) AS bids_today`

// Stats возвращает сводку по площадке на момент now.
func (s *Store) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	var st Stats
	if err := s.db.GetContext(ctx, &st, statsQuery, now, DayStart(now)); err != nil {
		return nil, fmt.Errorf("report.Stats: %w", err)
	}
	return &st, nil
}

const periodQuery = `
	SELECT
		(SELECT count(*) FROM accounts WHERE created_at >= $1) AS accounts,
		(SELECT count(*) FROM bids WHERE created_at >= $1) AS bids,
		(SELECT COALESCE(SUM(amount), 0) FROM bids WHERE created_at >= $1) AS bid_volume`

// Period возвращает активность начиная с from.
func (s *Store) Period(ctx context.Context, from time.Time) (*Period, error) {
	p := Period{From: from}
	if err := s.db.GetContext(ctx, &p, periodQuery, from); err != nil {
		return nil, fmt.Errorf("report.Period: %w", err)
	}
	return &p, nil
}

// TopListings возвращает лоты с наибольшей текущей ценой.
func (s *Store) TopListings(ctx context.Context, limit int) ([]ListingSummary, error) {
	const q = `
		SELECT id, number, network, status, current_price, bid_count
		FROM listings
		ORDER BY current_price DESC, bid_count DESC, id
		LIMIT $1`
	var out []ListingSummary
	if err := s.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("report.TopListings: %w", err)
	}
	return out, nil
}

// TopAccounts возвращает участников с наибольшим балансом.
func (s *Store) TopAccounts(ctx context.Context, limit int) ([]AccountSummary, error) {
	const q = `
		SELECT id, login, full_name, balance
		FROM accounts
		ORDER BY balance DESC, login
		LIMIT $1`
	var out []AccountSummary
	if err := s.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("report.TopAccounts: %w", err)
	}
	return out, nil
}

// Close закрывает соединение с БД.
func (s *Store) Close() error {
	return s.db.Close()
}
