package repository

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/simauction/internal/model"
)

// maxBalance повторяет предел столбца NUMERIC(18, 2).
var maxBalance = decimal.New(1, 16)

// MemoryRepository реализует реестр аукциона в памяти процесса и безопасен для конкурентного доступа.
// Соблюдает тот же контракт сравнения-и-замены, что и PostgresRepository.
type MemoryRepository struct {
	mu       sync.RWMutex
	listings map[string]*model.Listing
	bids     map[string][]model.Bid // listingID -> ставки в порядке принятия
	accounts map[string]*model.Account
	logins   map[string]string // login -> accountID
}

// NewMemoryRepository создаёт пустой in-memory реестр.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		listings: make(map[string]*model.Listing),
		bids:     make(map[string][]model.Bid),
		accounts: make(map[string]*model.Account),
		logins:   make(map[string]string),
	}
}

// Ping всегда успешен.
func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

// Close ничего не делает.
func (r *MemoryRepository) Close() error { return nil }

// CreateListing сохраняет новый лот.
func (r *MemoryRepository) CreateListing(ctx context.Context, l *model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listings[l.ID]; ok {
		return fmt.Errorf("insert listing %s: duplicate id", l.ID)
	}
	r.listings[l.ID] = l.Clone()
	return nil
}

// GetListing возвращает текущий снимок лота.
func (r *MemoryRepository) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

// UpdateListing обновляет описательные поля лота. Цены и время меняются только у черновика.
func (r *MemoryRepository) UpdateListing(ctx context.Context, upd *model.Listing) (*model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[upd.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if l.Status.IsTerminal() {
		return nil, ErrConflict
	}

	l.Number = upd.Number
	l.Network = upd.Network
	l.Category = upd.Category
	l.BeautyScore = upd.BeautyScore
	l.Description = upd.Description
	l.BuyNowPrice = upd.BuyNowPrice
	if l.Status == model.ListingStatusDraft {
		l.StartingPrice = upd.StartingPrice
		l.CurrentPrice = upd.StartingPrice
		l.StartTime = upd.StartTime
		l.EndTime = upd.EndTime
	}
	l.UpdatedAt = upd.UpdatedAt
	return l.Clone(), nil
}

// PublishListing переводит черновик в статус ACTIVE.
func (r *MemoryRepository) PublishListing(ctx context.Context, id string, start, end time.Time) (*model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := l.Publish(start, end); err != nil {
		return nil, ErrConflict
	}
	return l.Clone(), nil
}

// DeleteListing удаляет лот без ставок.
func (r *MemoryRepository) DeleteListing(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listings[id]; !ok {
		return ErrNotFound
	}
	if len(r.bids[id]) > 0 {
		return ErrListingHasBids
	}
	delete(r.listings, id)
	return nil
}

func compareListings(key model.SortKey) func(a, b *model.Listing) int {
	return func(a, b *model.Listing) int {
		var c int
		switch key {
		case model.SortByPriceAsc:
			c = a.CurrentPrice.Cmp(b.CurrentPrice)
		case model.SortByPriceDesc:
			c = b.CurrentPrice.Cmp(a.CurrentPrice)
		case model.SortByBeautyScore:
			c = cmp.Compare(b.BeautyScore, a.BeautyScore)
		}
		if c != 0 {
			return c
		}
		if c = a.EndTime.Compare(b.EndTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

// ListActive возвращает активные лоты, принимающие ставки в момент now.
func (r *MemoryRepository) ListActive(ctx context.Context, f model.ListingFilter, now time.Time) ([]model.Listing, error) {
	f = f.Normalize()

	r.mu.RLock()
	var matched []*model.Listing
	for _, l := range r.listings {
		if !l.IsOpen(now) {
			continue
		}
		if f.Network != "" && l.Network != f.Network {
			continue
		}
		if f.Category != "" && l.Category != f.Category {
			continue
		}
		matched = append(matched, l.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, compareListings(f.Sort))
	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	res := make([]model.Listing, 0, len(matched))
	for _, l := range matched {
		res = append(res, *l)
	}
	return res, nil
}

// ListAll возвращает все лоты, новые первыми.
func (r *MemoryRepository) ListAll(ctx context.Context, limit, offset int) ([]model.Listing, error) {
	r.mu.RLock()
	all := make([]model.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		all = append(all, *l.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b model.Listing) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ListExpired возвращает активные лоты, время окончания которых наступило.
func (r *MemoryRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Listing, error) {
	r.mu.RLock()
	var res []model.Listing
	for _, l := range r.listings {
		if l.IsExpired(now) {
			res = append(res, *l.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(res, func(a, b model.Listing) int { return a.EndTime.Compare(b.EndTime) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// BidsForListing возвращает ленивую последовательность ставок лота. Каждый проход
// последовательности берёт новый снимок.
func (r *MemoryRepository) BidsForListing(ctx context.Context, listingID string, order model.BidOrder) iter.Seq2[model.Bid, error] {
	return func(yield func(model.Bid, error) bool) {
		r.mu.RLock()
		snapshot := slices.Clone(r.bids[listingID])
		for i := range snapshot {
			snapshot[i].BidderName = r.displayName(snapshot[i].BidderID)
		}
		r.mu.RUnlock()

		if order == model.BidOrderAmountDesc {
			slices.SortStableFunc(snapshot, func(a, b model.Bid) int { return b.Amount.Cmp(a.Amount) })
		} else {
			slices.Reverse(snapshot)
		}

		for _, b := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(model.Bid{}, err)
				return
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

func (r *MemoryRepository) displayName(accountID string) string {
	a, ok := r.accounts[accountID]
	if !ok {
		return ""
	}
	if a.FullName != "" {
		return a.FullName
	}
	return a.Login
}

// activeForCommit проверяет условия сравнения-и-замены. Вызывается под блокировкой.
func (r *MemoryRepository) activeForCommit(listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	l, ok := r.listings[listingID]
	if !ok {
		return nil, ErrNotFound
	}
	if !l.IsOpen(bid.CreatedAt) || !l.CurrentPrice.Equal(expectedPrice) || !bid.Amount.GreaterThan(l.CurrentPrice) {
		return nil, ErrConflict
	}
	if _, ok := r.accounts[bid.BidderID]; !ok {
		return nil, fmt.Errorf("bidder %s: %w", bid.BidderID, ErrNotFound)
	}
	return l, nil
}

// CommitBid атомарно принимает ставку, если текущая цена лота всё ещё равна expectedPrice.
func (r *MemoryRepository) CommitBid(ctx context.Context, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.activeForCommit(listingID, bid, expectedPrice)
	if err != nil {
		return nil, err
	}

	l.ApplyBid(bid)
	r.bids[listingID] = append(r.bids[listingID], bid)
	return l.Clone(), nil
}

// CommitSale атомарно принимает ставку выкупа, переводит лот в SOLD и списывает баланс покупателя.
func (r *MemoryRepository) CommitSale(ctx context.Context, listingID string, bid model.Bid, expectedPrice decimal.Decimal) (*model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.activeForCommit(listingID, bid, expectedPrice)
	if err != nil {
		return nil, err
	}

	acc := r.accounts[bid.BidderID]
	if acc.Balance.LessThan(bid.Amount) {
		return nil, ErrInsufficientFunds
	}

	next := l.Clone()
	next.ApplyBid(bid)
	if err := next.Sell(bid.BidderID, bid.Amount, bid.CreatedAt); err != nil {
		return nil, ErrConflict
	}

	acc.Balance = acc.Balance.Sub(bid.Amount)
	acc.UpdatedAt = bid.CreatedAt
	r.listings[listingID] = next
	r.bids[listingID] = append(r.bids[listingID], bid)
	return next.Clone(), nil
}

// CommitClose закрывает лот по решению арбитра. Для уже закрытого лота возвращает его состояние без изменений.
func (r *MemoryRepository) CommitClose(ctx context.Context, listingID string, outcome model.CloseOutcome) (*model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[listingID]
	if !ok {
		return nil, ErrNotFound
	}
	if l.Status.IsTerminal() {
		return l.Clone(), nil
	}
	if l.Status != model.ListingStatusActive || !l.CurrentPrice.Equal(outcome.ExpectedPrice) {
		return nil, ErrConflict
	}

	next := l.Clone()
	if outcome.Winner == nil {
		if err := next.End(outcome.ClosedAt); err != nil {
			return nil, ErrConflict
		}
		r.listings[listingID] = next
		return next.Clone(), nil
	}

	acc, ok := r.accounts[outcome.Winner.BidderID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", outcome.Winner.BidderID, ErrNotFound)
	}
	if acc.Balance.LessThan(outcome.Winner.Amount) {
		return nil, ErrInsufficientFunds
	}
	if err := next.Sell(outcome.Winner.BidderID, outcome.Winner.Amount, outcome.ClosedAt); err != nil {
		return nil, ErrConflict
	}

	acc.Balance = acc.Balance.Sub(outcome.Winner.Amount)
	acc.UpdatedAt = outcome.ClosedAt
	r.listings[listingID] = next
	return next.Clone(), nil
}

// CreateAccount создаёт новую учётную запись.
func (r *MemoryRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.logins[a.Login]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, a.Login)
	}
	c := *a
	r.accounts[a.ID] = &c
	r.logins[a.Login] = a.ID
	return nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *MemoryRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *a
	return &c, nil
}

// GetAccountByLogin возвращает учётную запись по логину.
func (r *MemoryRepository) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	r.mu.RLock()
	id, ok := r.logins[login]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetAccount(ctx, id)
}

// ListAccounts возвращает страницу учётных записей, новые первыми.
func (r *MemoryRepository) ListAccounts(ctx context.Context, limit, offset int) ([]model.Account, error) {
	r.mu.RLock()
	all := make([]model.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		all = append(all, *a)
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b model.Account) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// AdjustBalance изменяет баланс на delta и возвращает новый баланс.
func (r *MemoryRepository) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[accountID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}
	if next.GreaterThanOrEqual(maxBalance) {
		return decimal.Zero, ErrOutOfRange
	}
	a.Balance = next
	a.UpdatedAt = time.Now().UTC()
	return next, nil
}
