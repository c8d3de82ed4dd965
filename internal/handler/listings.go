package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/simauction/internal/model"
)

// ListListings возвращает активные лоты с фильтрами network, category, sort и limit.
func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ListingFilter{
		Network:  q.Get("network"),
		Category: q.Get("category"),
		Sort:     model.ParseSortKey(q.Get("sort")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.badRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = limit
	}

	listings, err := h.service.ListActive(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

// GetListing возвращает лот и его ставки, новые первыми.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetListingDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := listingDetailResponse{
		listingResponse: toListingResponse(detail.Listing),
		Bids:            make([]bidResponse, 0, len(detail.Bids)),
	}
	for _, b := range detail.Bids {
		resp.Bids = append(resp.Bids, bidResponse{
			ID:         b.ID,
			BidderID:   b.BidderID,
			BidderName: b.BidderName,
			Amount:     b.Amount,
			CreatedAt:  b.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type bidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PlaceBid принимает ставку текущего участника.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req bidRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	l, err := h.service.PlaceBid(r.Context(), caller, chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponse(l))
}

// BuyNow выкупает лот по цене выкупа.
func (h *Handler) BuyNow(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	l, err := h.service.BuyNow(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponse(l))
}
