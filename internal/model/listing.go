// Package model содержит доменные сущности сервиса аукциона сим-карт.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus описывает состояние лота в жизненном цикле аукциона.
type ListingStatus string

const (
	ListingStatusDraft  ListingStatus = "DRAFT"
	ListingStatusActive ListingStatus = "ACTIVE"
	ListingStatusEnded  ListingStatus = "ENDED"
	ListingStatusSold   ListingStatus = "SOLD"
)

// IsTerminal сообщает, что из статуса нет переходов.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusEnded || s == ListingStatusSold
}

// Valid проверяет, что статус входит в допустимый набор.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusDraft, ListingStatusActive, ListingStatusEnded, ListingStatusSold:
		return true
	}
	return false
}

// CanTransition проверяет допустимость перехода между статусами.
func (s ListingStatus) CanTransition(to ListingStatus) bool {
	switch s {
	case ListingStatusDraft:
		return to == ListingStatusActive
	case ListingStatusActive:
		return to == ListingStatusEnded || to == ListingStatusSold
	}
	return false
}

// Listing описывает выставленный на аукцион номер.
type Listing struct {
	ID            string
	Number        string
	Network       string
	Category      string
	StartingPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
	BuyNowPrice   decimal.NullDecimal
	BeautyScore   int
	Description   string
	Status        ListingStatus
	StartTime     time.Time
	EndTime       time.Time
	BidCount      int
	WinnerID      *string
	SalePrice     decimal.NullDecimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsOpen сообщает, принимает ли лот ставки в момент now.
// Лот со статусом ACTIVE, у которого истекло время окончания, считается закрытым.
func (l *Listing) IsOpen(now time.Time) bool {
	return l.Status == ListingStatusActive && now.Before(l.EndTime)
}

// IsExpired сообщает, что активный лот ожидает закрытия по времени.
func (l *Listing) IsExpired(now time.Time) bool {
	return l.Status == ListingStatusActive && !now.Before(l.EndTime)
}

// BuyNowAvailable сообщает, можно ли купить лот сразу по текущей цене выкупа.
func (l *Listing) BuyNowAvailable() bool {
	return l.BuyNowPrice.Valid && l.BuyNowPrice.Decimal.GreaterThan(l.CurrentPrice)
}

// Clone возвращает независимую копию лота.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.WinnerID != nil {
		w := *l.WinnerID
		c.WinnerID = &w
	}
	return &c
}

// Publish переводит черновик в активное состояние.
func (l *Listing) Publish(start, end time.Time) error {
	if !l.Status.CanTransition(ListingStatusActive) {
		return &TransitionError{From: l.Status, To: ListingStatusActive}
	}
	l.Status = ListingStatusActive
	l.StartTime = start
	l.EndTime = end
	l.UpdatedAt = start
	return nil
}

// ApplyBid фиксирует принятую ставку в состоянии лота.
func (l *Listing) ApplyBid(b Bid) {
	l.CurrentPrice = b.Amount
	l.BidCount++
	l.UpdatedAt = b.CreatedAt
}

// Sell переводит лот в статус SOLD с указанным победителем.
func (l *Listing) Sell(winnerID string, price decimal.Decimal, at time.Time) error {
	if !l.Status.CanTransition(ListingStatusSold) {
		return &TransitionError{From: l.Status, To: ListingStatusSold}
	}
	l.Status = ListingStatusSold
	l.WinnerID = &winnerID
	l.SalePrice = decimal.NewNullDecimal(price)
	l.EndTime = at
	l.UpdatedAt = at
	return nil
}

// End завершает лот без победителя.
func (l *Listing) End(at time.Time) error {
	if !l.Status.CanTransition(ListingStatusEnded) {
		return &TransitionError{From: l.Status, To: ListingStatusEnded}
	}
	l.Status = ListingStatusEnded
	l.WinnerID = nil
	if at.Before(l.EndTime) {
		l.EndTime = at
	}
	l.UpdatedAt = at
	return nil
}

// TransitionError описывает недопустимый переход статуса.
type TransitionError struct {
	From ListingStatus
	To   ListingStatus
}

func (e *TransitionError) Error() string {
	return "invalid listing transition " + string(e.From) + " -> " + string(e.To)
}

// Bid описывает принятую ставку по лоту. Ставки не изменяются после создания.
type Bid struct {
	ID         string
	ListingID  string
	BidderID   string
	BidderName string
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// BidOrder задаёт порядок выдачи ставок.
type BidOrder int

const (
	// BidOrderNewest выдаёт сначала последние ставки.
	BidOrderNewest BidOrder = iota
	// BidOrderAmountDesc выдаёт ставки по убыванию суммы, при равенстве раньше сделанная идёт первой.
	BidOrderAmountDesc
)

// CloseOutcome описывает результат закрытия аукциона, вычисленный арбитром.
type CloseOutcome struct {
	ExpectedPrice decimal.Decimal
	Winner        *Bid
	ClosedAt      time.Time
}
