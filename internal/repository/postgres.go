// Package repository содержит реализации реестра аукциона: PostgreSQL и in-memory.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/simauction/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const listingColumns = `id, number, network, category, starting_price, current_price, buy_now_price,
	beauty_score, description, status, start_time, end_time, bid_count, winner_id, sale_price,
	created_at, updated_at`

var sortClauses = map[model.SortKey]string{
	model.SortByEndTime:     "end_time ASC, id",
	model.SortByPriceAsc:    "current_price ASC, end_time ASC, id",
	model.SortByPriceDesc:   "current_price DESC, end_time ASC, id",
	model.SortByBeautyScore: "beauty_score DESC, end_time ASC, id",
}

// PostgresRepository предоставляет доступ к реестру аукциона в PostgreSQL.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	retryDelays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:        pool,
		retryDelays: []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// SQLDB возвращает database/sql обёртку над пулом для read-only отчётов.
func (r *PostgresRepository) SQLDB() *sql.DB {
	return stdlib.OpenDBFromPool(r.pool)
}

// withRetry повторяет операцию при временных ошибках PostgreSQL.
// ErrConflict и прочие доменные ошибки не повторяются: решение о повторе принимает арбитр.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isTransient(err) || i == len(r.retryDelays) {
			break
		}

		timer := time.NewTimer(r.retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// inTx выполняет fn в транзакции уровня READ COMMITTED.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func scanListing(row pgx.Row) (*model.Listing, error) {
	var (
		l          model.Listing
		status     string
		start, end *time.Time
	)
	err := row.Scan(
		&l.ID, &l.Number, &l.Network, &l.Category, &l.StartingPrice, &l.CurrentPrice, &l.BuyNowPrice,
		&l.BeautyScore, &l.Description, &status, &start, &end, &l.BidCount, &l.WinnerID, &l.SalePrice,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = model.ListingStatus(status)
	if start != nil {
		l.StartTime = *start
	}
	if end != nil {
		l.EndTime = *end
	}
	return &l, nil
}

func collectListings(rows pgx.Rows) ([]model.Listing, error) {
	defer rows.Close()

	var res []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		res = append(res, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CreateListing сохраняет новый лот.
func (r *PostgresRepository) CreateListing(ctx context.Context, l *model.Listing) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		l.ID, l.Number, l.Network, l.Category, l.StartingPrice, l.CurrentPrice, l.BuyNowPrice,
		l.BeautyScore, l.Description, string(l.Status), nullTime(l.StartTime), nullTime(l.EndTime),
		l.BidCount, l.WinnerID, l.SalePrice, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetListing возвращает текущий снимок лота.
func (r *PostgresRepository) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanListing(r.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

// UpdateListing обновляет описательные поля лота. Цены и время меняются только у черновика.
func (r *PostgresRepository) UpdateListing(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	var out *model.Listing
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			updated, err := scanListing(tx.QueryRow(ctx,
				`UPDATE listings SET
					number = $2, network = $3, category = $4, beauty_score = $5, description = $6,
					buy_now_price = $7,
					starting_price = CASE WHEN status = 'DRAFT' THEN $8 ELSE starting_price END,
					current_price = CASE WHEN status = 'DRAFT' THEN $8 ELSE current_price END,
					start_time = CASE WHEN status = 'DRAFT' THEN $9 ELSE start_time END,
					end_time = CASE WHEN status = 'DRAFT' THEN $10 ELSE end_time END,
					updated_at = $11
				 WHERE id = $1 AND status IN ('DRAFT', 'ACTIVE')
				 RETURNING `+listingColumns,
				l.ID, l.Number, l.Network, l.Category, l.BeautyScore, l.Description, l.BuyNowPrice,
				l.StartingPrice, nullTime(l.StartTime), nullTime(l.EndTime), l.UpdatedAt,
			))
			if errors.Is(err, pgx.ErrNoRows) {
				return missingOrConflict(ctx, tx, l.ID)
			}
			if err != nil {
				return fmt.Errorf("update listing: %w", err)
			}
			out = updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PublishListing переводит черновик в статус ACTIVE.
func (r *PostgresRepository) PublishListing(ctx context.Context, id string, start, end time.Time) (*model.Listing, error) {
	var out *model.Listing
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		l, err := scanListing(tx.QueryRow(ctx,
			`UPDATE listings SET status = 'ACTIVE', start_time = $2, end_time = $3, updated_at = $2
			 WHERE id = $1 AND status = 'DRAFT'
			 RETURNING `+listingColumns,
			id, start, end,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return missingOrConflict(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("publish listing: %w", err)
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteListing удаляет лот без ставок.
func (r *PostgresRepository) DeleteListing(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var bidCount int
		err := tx.QueryRow(ctx, `SELECT bid_count FROM listings WHERE id = $1 FOR UPDATE`, id).Scan(&bidCount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock listing: %w", err)
		}
		if bidCount > 0 {
			return ErrListingHasBids
		}

		if _, err := tx.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
			if pgCode(err) == pgerrcode.ForeignKeyViolation {
				return ErrListingHasBids
			}
			return fmt.Errorf("delete listing: %w", err)
		}
		return nil
	})
}

// ListActive возвращает активные лоты, принимающие ставки в момент now.
func (r *PostgresRepository) ListActive(ctx context.Context, f model.ListingFilter, now time.Time) ([]model.Listing, error) {
	f = f.Normalize()

	var (
		where = []string{"status = 'ACTIVE'", "end_time > $1"}
		args  = []any{now}
	)
	if f.Network != "" {
		args = append(args, f.Network)
		where = append(where, fmt.Sprintf("network = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	args = append(args, f.Limit)

	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s ORDER BY %s LIMIT $%d`,
		listingColumns, strings.Join(where, " AND "), sortClauses[f.Sort], len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select active listings: %w", err)
	}
	return collectListings(rows)
}

// ListAll возвращает все лоты, новые первыми.
func (r *PostgresRepository) ListAll(ctx context.Context, limit, offset int) ([]model.Listing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select listings: %w", err)
	}
	return collectListings(rows)
}

// ListExpired возвращает активные лоты, время окончания которых наступило.
func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Listing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE status = 'ACTIVE' AND end_time <= $1
		 ORDER BY end_time
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired listings: %w", err)
	}
	return collectListings(rows)
}

// BidsForListing возвращает ленивую последовательность ставок лота. Каждый проход
// последовательности выполняет новый запрос.
func (r *PostgresRepository) BidsForListing(ctx context.Context, listingID string, order model.BidOrder) iter.Seq2[model.Bid, error] {
	orderBy := "b.created_at DESC, b.id DESC"
	if order == model.BidOrderAmountDesc {
		orderBy = "b.amount DESC, b.created_at ASC, b.id ASC"
	}

	return func(yield func(model.Bid, error) bool) {
		rows, err := r.pool.Query(ctx,
			`SELECT b.id, b.listing_id, b.bidder_id, COALESCE(NULLIF(a.full_name, ''), a.login), b.amount, b.created_at
			 FROM bids b
			 JOIN accounts a ON a.id = b.bidder_id
			 WHERE b.listing_id = $1
			 ORDER BY `+orderBy,
			listingID,
		)
		if err != nil {
			yield(model.Bid{}, fmt.Errorf("select bids: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var b model.Bid
			if err := rows.Scan(&b.ID, &b.ListingID, &b.BidderID, &b.BidderName, &b.Amount, &b.CreatedAt); err != nil {
				yield(model.Bid{}, fmt.Errorf("scan bid: %w", err))
				return
			}
			if !yield(b, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(model.Bid{}, fmt.Errorf("rows error: %w", err))
		}
	}
}

// querier покрывает операции транзакции, которыми пользуются шаги фиксации.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func missingOrConflict(ctx context.Context, q querier, listingID string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM listings WHERE id = $1`, listingID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check listing: %w", err)
	}
	return ErrConflict
}

func insertBid(ctx context.Context, q querier, b model.Bid) error {
	_, err := q.Exec(ctx,
		`INSERT INTO bids (id, listing_id, bidder_id, amount, created_at) VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.ListingID, b.BidderID, b.Amount, b.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("bidder %s: %w", b.BidderID, ErrNotFound)
		}
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

// debit списывает сумму с баланса, не допуская отрицательного остатка.
func debit(ctx context.Context, q querier, accountID string, amount decimal.Decimal) error {
	var balance decimal.Decimal
	err := q.QueryRow(ctx,
		`UPDATE accounts SET balance = balance - $2, updated_at = now()
		 WHERE id = $1 AND balance >= $2
		 RETURNING balance`,
		accountID, amount,
	).Scan(&balance)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("debit account: %w", err)
	}

	var one int
	err = q.QueryRow(ctx, `SELECT 1 FROM accounts WHERE id = $1`, accountID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	return ErrInsufficientFunds
}

// CommitBid атомарно принимает ставку, если текущая цена лота всё ещё равна expectedPrice.
func (r *PostgresRepository) CommitBid(ctx context.Context, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	var out *model.Listing
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			l, err := commitBid(ctx, tx, listingID, bid, expectedPrice)
			out = l
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func commitBid(ctx context.Context, q querier, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	l, err := scanListing(q.QueryRow(ctx,
		`UPDATE listings SET current_price = $2, bid_count = bid_count + 1, updated_at = $4
		 WHERE id = $1 AND status = 'ACTIVE' AND current_price = $3 AND $2 > current_price AND end_time > $4
		 RETURNING `+listingColumns,
		listingID, bid.Amount, expectedPrice, bid.CreatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missingOrConflict(ctx, q, listingID)
	}
	if err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}

	if err := insertBid(ctx, q, bid); err != nil {
		return nil, err
	}
	return l, nil
}

// CommitSale атомарно принимает ставку выкупа, переводит лот в SOLD и списывает баланс покупателя.
func (r *PostgresRepository) CommitSale(ctx context.Context, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	var out *model.Listing
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			l, err := commitSale(ctx, tx, listingID, bid, expectedPrice)
			out = l
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func commitSale(ctx context.Context, q querier, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	l, err := scanListing(q.QueryRow(ctx,
		`UPDATE listings SET status = 'SOLD', winner_id = $5, sale_price = $2, current_price = $2,
			bid_count = bid_count + 1, end_time = $4, updated_at = $4
		 WHERE id = $1 AND status = 'ACTIVE' AND current_price = $3 AND $2 > current_price AND end_time > $4
		 RETURNING `+listingColumns,
		listingID, bid.Amount, expectedPrice, bid.CreatedAt, bid.BidderID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missingOrConflict(ctx, q, listingID)
	}
	if err != nil {
		if pgCode(err) == pgerrcode.ForeignKeyViolation {
			return nil, fmt.Errorf("bidder %s: %w", bid.BidderID, ErrNotFound)
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}

	if err := debit(ctx, q, bid.BidderID, bid.Amount); err != nil {
		return nil, err
	}
	if err := insertBid(ctx, q, bid); err != nil {
		return nil, err
	}
	return l, nil
}

// CommitClose закрывает лот по решению арбитра. Для уже закрытого лота возвращает его состояние без изменений.
func (r *PostgresRepository) CommitClose(ctx context.Context, listingID string, outcome model.CloseOutcome) (*model.Listing, error) {
	var out *model.Listing
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			l, err := commitClose(ctx, tx, listingID, outcome)
			out = l
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func commitClose(ctx context.Context, q querier, listingID string, outcome model.CloseOutcome) (*model.Listing, error) {
	l, err := scanListing(q.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, listingID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock listing: %w", err)
	}

	if l.Status.IsTerminal() {
		return l, nil
	}
	if l.Status != model.ListingStatusActive || !l.CurrentPrice.Equal(outcome.ExpectedPrice) {
		return nil, ErrConflict
	}

	if outcome.Winner == nil {
		l, err = scanListing(q.QueryRow(ctx,
			`UPDATE listings SET status = 'ENDED', end_time = LEAST(end_time, $2), updated_at = $2
			 WHERE id = $1
			 RETURNING `+listingColumns,
			listingID, outcome.ClosedAt,
		))
		if err != nil {
			return nil, fmt.Errorf("end listing: %w", err)
		}
		return l, nil
	}

	if err := debit(ctx, q, outcome.Winner.BidderID, outcome.Winner.Amount); err != nil {
		return nil, err
	}

	l, err = scanListing(q.QueryRow(ctx,
		`UPDATE listings SET status = 'SOLD', winner_id = $2, sale_price = $3, end_time = $4, updated_at = $4
		 WHERE id = $1
		 RETURNING `+listingColumns,
		listingID, outcome.Winner.BidderID, outcome.Winner.Amount, outcome.ClosedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("sell listing: %w", err)
	}
	return l, nil
}

// CreateAccount создаёт новую учётную запись.
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, login, password_hash, full_name, role, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		a.ID, a.Login, a.PasswordHash, a.FullName, a.Role, a.Balance, a.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrAccountExists, a.Login)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

const accountColumns = `id, login, password_hash, full_name, role, balance, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Login, &a.PasswordHash, &a.FullName, &a.Role, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetAccountByLogin возвращает учётную запись по логину.
func (r *PostgresRepository) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE login = $1`, login))
}

// ListAccounts возвращает страницу учётных записей, новые первыми.
func (r *PostgresRepository) ListAccounts(ctx context.Context, limit, offset int) ([]model.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var res []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		res = append(res, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// AdjustBalance изменяет баланс на delta и возвращает новый баланс.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.withRetry(ctx, func() error {
		err := r.pool.QueryRow(ctx,
			`UPDATE accounts SET balance = balance + $2, updated_at = now() WHERE id = $1 RETURNING balance`,
			accountID, delta,
		).Scan(&balance)
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		switch pgCode(err) {
		case pgerrcode.CheckViolation:
			return ErrInsufficientFunds
		case pgerrcode.NumericValueOutOfRange:
			return ErrOutOfRange
		}
		return fmt.Errorf("adjust balance: %w", err)
	})
	return balance, err
}
