package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/simauction/internal/model"
)

func TestSweepExpired(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()
	seedListing(t, repo, "with-bid", "100", "", testNow.Add(time.Minute))
	seedListing(t, repo, "no-bids", "100", "", testNow.Add(time.Minute))
	seedListing(t, repo, "running", "100", "", testNow.Add(time.Hour))
	u := seedAccount(t, repo, "u", "1000")

	_, err := svc.PlaceBid(ctx, u, "with-bid", money("300"))
	require.NoError(t, err)

	clk.t = testNow.Add(2 * time.Minute)
	assert.Equal(t, 2, svc.SweepExpired(ctx))

	sold, err := repo.GetListing(ctx, "with-bid")
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusSold, sold.Status)
	assert.True(t, balanceOf(t, repo, "u").Equal(money("700")))

	ended, err := repo.GetListing(ctx, "no-bids")
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusEnded, ended.Status)
	assert.True(t, ended.EndTime.Equal(testNow.Add(time.Minute)))

	running, err := repo.GetListing(ctx, "running")
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusActive, running.Status)

	assert.Equal(t, 0, svc.SweepExpired(ctx))
}

func TestStartSweeperStopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
