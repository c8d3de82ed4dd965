package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/simauction/internal/model"
	"github.com/mmeshcher/simauction/internal/repository"
	"github.com/mmeshcher/simauction/internal/validation"
)

func validListingFields() validation.ListingFields {
	return validation.ListingFields{
		Number:        "090 123-4567",
		Network:       "Viettel",
		Category:      "Sảnh tiến",
		StartingPrice: money("750000"),
		BuyNowPrice:   decimal.NewNullDecimal(money("2000000")),
		BeautyScore:   4,
		Description:   "Số đẹp",
	}
}

func TestCreateListing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.CreateListing(ctx, admin, validListingFields())
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusDraft, draft.Status)
	assert.Equal(t, "0901234567", draft.Number)
	assert.True(t, draft.CurrentPrice.Equal(draft.StartingPrice))

	in := validListingFields()
	start, end := testNow, testNow.Add(24*time.Hour)
	in.StartTime, in.EndTime = &start, &end
	active, err := svc.CreateListing(ctx, admin, in)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusActive, active.Status)
	assert.True(t, active.EndTime.Equal(end))
}

func TestCreateListingValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := validListingFields()
	in.BeautyScore = 7
	_, err := svc.CreateListing(context.Background(), admin, in)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateListing(context.Background(), model.Caller{ID: "u"}, validListingFields())
	require.ErrorIs(t, err, ErrForbidden)
}

func TestListActiveHidesExpiredAndDrafts(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	seedListing(t, repo, "open", "100", "", testNow.Add(time.Hour))
	seedListing(t, repo, "expired", "100", "", testNow.Add(-time.Hour))
	_, err := svc.CreateListing(ctx, admin, validListingFields())
	require.NoError(t, err)

	got, err := svc.ListActive(ctx, model.ListingFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "open", got[0].ID)
}

func TestGetListingDetailOrdersBidsNewestFirst(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()
	seedListing(t, repo, "l1", "100", "", testNow.Add(time.Hour))
	u := seedAccount(t, repo, "u", "1000")
	require.NoError(t, repo.CreateAccount(ctx, &model.Account{ID: "v", Login: "vlogin", FullName: "Nguyễn Văn A", Balance: money("1000")}))
	v := model.Caller{ID: "v"}

	_, err := svc.PlaceBid(ctx, u, "l1", money("150"))
	require.NoError(t, err)
	clk.t = clk.t.Add(time.Minute)
	_, err = svc.PlaceBid(ctx, v, "l1", money("200"))
	require.NoError(t, err)

	d, err := svc.GetListingDetail(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, d.Bids, 2)
	assert.True(t, d.Bids[0].Amount.Equal(money("200")))
	assert.Equal(t, "Nguyễn Văn A", d.Bids[0].BidderName)
	assert.Equal(t, "u", d.Bids[1].BidderName)

	_, err = svc.GetListingDetail(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateListing(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.CreateListing(ctx, admin, validListingFields())
	require.NoError(t, err)

	in := validListingFields()
	in.StartingPrice = money("800000")
	in.Description = "updated"
	upd, err := svc.UpdateListing(ctx, admin, draft.ID, in)
	require.NoError(t, err)
	assert.True(t, upd.StartingPrice.Equal(money("800000")))
	assert.True(t, upd.CurrentPrice.Equal(money("800000")))
	assert.Equal(t, "updated", upd.Description)

	seedListing(t, repo, "active", "100", "", testNow.Add(time.Hour))
	in = validListingFields()
	in.StartingPrice = money("50")
	upd, err = svc.UpdateListing(ctx, admin, "active", in)
	require.NoError(t, err)
	assert.True(t, upd.StartingPrice.Equal(money("100")), "starting price is frozen once active")
	assert.Equal(t, "Số đẹp", upd.Description)

	_, err = svc.CloseAuction(ctx, admin, "active")
	require.NoError(t, err)
	_, err = svc.UpdateListing(ctx, admin, "active", validListingFields())
	require.ErrorIs(t, err, ErrAuctionClosed)
}

func TestPublishListing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.CreateListing(ctx, admin, validListingFields())
	require.NoError(t, err)

	_, err = svc.PublishListing(ctx, admin, draft.ID, PublishParams{})
	require.ErrorIs(t, err, ErrValidation)

	l, err := svc.PublishListing(ctx, admin, draft.ID, PublishParams{Duration: 48 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusActive, l.Status)
	assert.True(t, l.StartTime.Equal(testNow))
	assert.True(t, l.EndTime.Equal(testNow.Add(48*time.Hour)))

	_, err = svc.PublishListing(ctx, admin, draft.ID, PublishParams{Duration: time.Hour})
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteListing(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	seedListing(t, repo, "with-bids", "100", "", testNow.Add(time.Hour))
	seedListing(t, repo, "empty", "100", "", testNow.Add(time.Hour))
	u := seedAccount(t, repo, "u", "1000")

	_, err := svc.PlaceBid(ctx, u, "with-bids", money("150"))
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteListing(ctx, admin, "with-bids"), repository.ErrListingHasBids)
	require.NoError(t, svc.DeleteListing(ctx, admin, "empty"))
	require.ErrorIs(t, svc.DeleteListing(ctx, admin, "empty"), repository.ErrNotFound)
}

func TestListAllListings(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedListing(t, repo, "a", "100", "", testNow.Add(time.Hour))
	seedListing(t, repo, "b", "100", "", testNow.Add(-time.Hour))

	got, err := svc.ListAllListings(context.Background(), admin, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
