package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/simauction/internal/model"
	"github.com/mmeshcher/simauction/internal/validation"
)

type listingResponse struct {
	ID            string              `json:"id"`
	Number        string              `json:"number"`
	Network       string              `json:"network"`
	Category      string              `json:"category"`
	StartingPrice decimal.Decimal     `json:"starting_price"`
	CurrentPrice  decimal.Decimal     `json:"current_price"`
	BuyNowPrice   decimal.NullDecimal `json:"buy_now_price"`
	BeautyScore   int                 `json:"beauty_score"`
	Description   string              `json:"description,omitempty"`
	Status        string              `json:"status"`
	StartTime     *time.Time          `json:"start_time,omitempty"`
	EndTime       *time.Time          `json:"end_time,omitempty"`
	BidCount      int                 `json:"bid_count"`
	WinnerID      *string             `json:"winner_id,omitempty"`
	SalePrice     decimal.NullDecimal `json:"sale_price"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toListingResponse(l *model.Listing) listingResponse {
	return listingResponse{
		ID:            l.ID,
		Number:        l.Number,
		Network:       l.Network,
		Category:      l.Category,
		StartingPrice: l.StartingPrice,
		CurrentPrice:  l.CurrentPrice,
		BuyNowPrice:   l.BuyNowPrice,
		BeautyScore:   l.BeautyScore,
		Description:   l.Description,
		Status:        string(l.Status),
		StartTime:     optionalTime(l.StartTime),
		EndTime:       optionalTime(l.EndTime),
		BidCount:      l.BidCount,
		WinnerID:      l.WinnerID,
		SalePrice:     l.SalePrice,
	}
}

func toListingResponses(ls []model.Listing) []listingResponse {
	resp := make([]listingResponse, 0, len(ls))
	for i := range ls {
		resp = append(resp, toListingResponse(&ls[i]))
	}
	return resp
}

type bidResponse struct {
	ID         string          `json:"id"`
	BidderID   string          `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  string          `json:"created_at"`
}

type listingDetailResponse struct {
	listingResponse
	Bids []bidResponse `json:"bids"`
}

type accountResponse struct {
	ID        string          `json:"id"`
	Login     string          `json:"login"`
	FullName  string          `json:"full_name,omitempty"`
	Role      string          `json:"role"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Login:     a.Login,
		FullName:  a.FullName,
		Role:      a.Role,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
	}
}

func toAccountResponses(accounts []model.Account) []accountResponse {
	res := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		res = append(res, toAccountResponse(&accounts[i]))
	}
	return res
}

type listingRequest struct {
	Number        string              `json:"number"`
	Network       string              `json:"network"`
	Category      string              `json:"category"`
	StartingPrice decimal.Decimal     `json:"starting_price"`
	BuyNowPrice   decimal.NullDecimal `json:"buy_now_price"`
	BeautyScore   int                 `json:"beauty_score"`
	Description   string              `json:"description"`
	StartTime     *time.Time          `json:"start_time"`
	EndTime       *time.Time          `json:"end_time"`
}

func (r listingRequest) fields() validation.ListingFields {
	return validation.ListingFields{
		Number:        r.Number,
		Network:       r.Network,
		Category:      r.Category,
		StartingPrice: r.StartingPrice,
		BuyNowPrice:   r.BuyNowPrice,
		BeautyScore:   r.BeautyScore,
		Description:   r.Description,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
	}
}
