package model

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestListingStatusTransitions(t *testing.T) {
	tests := []struct {
		from ListingStatus
		to   ListingStatus
		ok   bool
	}{
		{ListingStatusDraft, ListingStatusActive, true},
		{ListingStatusDraft, ListingStatusSold, false},
		{ListingStatusActive, ListingStatusEnded, true},
		{ListingStatusActive, ListingStatusSold, true},
		{ListingStatusActive, ListingStatusDraft, false},
		{ListingStatusEnded, ListingStatusSold, false},
		{ListingStatusSold, ListingStatusEnded, false},
		{ListingStatusSold, ListingStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			check.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}

	check.True(t, ListingStatusEnded.IsTerminal())
	check.True(t, ListingStatusSold.IsTerminal())
	check.False(t, ListingStatusActive.IsTerminal())
	check.False(t, ListingStatus("UNKNOWN").Valid())
}

func TestListingIsOpenHonoursEndTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := &Listing{Status: ListingStatusActive, EndTime: now.Add(time.Minute)}

	check.True(t, l.IsOpen(now))
	check.False(t, l.IsExpired(now))

	l.EndTime = now.Add(-time.Second)
	check.False(t, l.IsOpen(now))
	check.True(t, l.IsExpired(now))

	l.Status = ListingStatusEnded
	check.False(t, l.IsExpired(now))
}

func TestListingSellAndEnd(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := &Listing{Status: ListingStatusActive, EndTime: now.Add(time.Hour)}

	check.NoError(t, l.Sell("acc-1", decimal.NewFromInt(2000000), now))
	check.Equal(t, ListingStatusSold, l.Status)
	check.NotNil(t, l.WinnerID)
	check.Equal(t, "acc-1", *l.WinnerID)
	check.True(t, l.SalePrice.Decimal.Equal(decimal.NewFromInt(2000000)))
	check.Equal(t, now, l.EndTime)

	check.Error(t, l.End(now))

	draft := &Listing{Status: ListingStatusDraft}
	check.Error(t, draft.End(now))
	check.NoError(t, draft.Publish(now, now.Add(time.Hour)))
	check.Equal(t, ListingStatusActive, draft.Status)
}

func TestBuyNowAvailable(t *testing.T) {
	l := &Listing{CurrentPrice: decimal.NewFromInt(750000)}
	check.False(t, l.BuyNowAvailable())

	l.BuyNowPrice = decimal.NewNullDecimal(decimal.NewFromInt(2000000))
	check.True(t, l.BuyNowAvailable())

	l.CurrentPrice = decimal.NewFromInt(2000000)
	check.False(t, l.BuyNowAvailable())
}

func TestListingCloneIsIndependent(t *testing.T) {
	winner := "acc-1"
	l := &Listing{ID: "l-1", WinnerID: &winner}
	c := l.Clone()
	*c.WinnerID = "acc-2"
	check.Equal(t, "acc-1", *l.WinnerID)
}

func TestListingFilterNormalize(t *testing.T) {
	f := ListingFilter{Sort: "bogus"}.Normalize()
	check.Equal(t, SortByEndTime, f.Sort)
	check.Equal(t, DefaultPageSize, f.Limit)

	f = ListingFilter{Sort: SortByPriceDesc, Limit: 1000}.Normalize()
	check.Equal(t, SortByPriceDesc, f.Sort)
	check.Equal(t, MaxPageSize, f.Limit)
}

func TestCallerRoles(t *testing.T) {
	c := Caller{ID: "a", Roles: []string{RoleUser}}
	check.False(t, c.IsAdmin())
	c.Roles = append(c.Roles, RoleAdmin)
	check.True(t, c.IsAdmin())
}
