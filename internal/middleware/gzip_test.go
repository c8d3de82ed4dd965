package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bidBody struct {
	Amount string `json:"amount"`
}

type listingBody struct {
	ID           string `json:"id"`
	CurrentPrice string `json:"current_price"`
	TotalBids    int    `json:"total_bids"`
}

// bidEndpoint принимает ставку и отвечает обновлённым лотом, как обработчик POST /bids.
func bidEndpoint(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req bidBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		assert.Empty(t, r.Header.Get("Content-Encoding"), "request encoding must be stripped after decompression")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(listingBody{ID: "l1", CurrentPrice: req.Amount, TotalBids: 1})
	})
}

func gzipped(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func decodeListing(t *testing.T, res *http.Response) listingBody {
	t.Helper()
	var body io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer zr.Close()
		body = zr
	}
	var l listingBody
	require.NoError(t, json.NewDecoder(body).Decode(&l))
	return l
}

func TestGzipCompressedBidRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/listings/l1/bids", gzipped(t, `{"amount":"800000.00"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()

	GzipMiddleware(bidEndpoint(t)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
	assert.Empty(t, res.Header.Get("Content-Length"))

	l := decodeListing(t, res)
	assert.Equal(t, listingBody{ID: "l1", CurrentPrice: "800000.00", TotalBids: 1}, l)
}

func TestGzipPlainClientGetsPlainJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/listings/l1/bids", strings.NewReader(`{"amount":"900000"}`))
	rec := httptest.NewRecorder()

	GzipMiddleware(bidEndpoint(t)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, res.Header.Get("Content-Encoding"))
	assert.Equal(t, "900000", decodeListing(t, res).CurrentPrice)
}

func TestGzipRejectsCorruptBidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/listings/l1/bids", strings.NewReader(`{"amount":"1"}`))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()

	called := false
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestGzipSkipsEmptyAndBinaryResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "deleted listing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			status: http.StatusNoContent,
		},
		{
			name: "binary export",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = w.Write([]byte{0x1f, 0x8b, 0x00})
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/listings/l1", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rec := httptest.NewRecorder()

			GzipMiddleware(tt.handler).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, rec.Header().Get("Content-Encoding"))
		})
	}
}
