package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/simauction/internal/report"
	"github.com/mmeshcher/simauction/internal/service"
)

const defaultTopLimit = 10

func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// AdminListListings возвращает все лоты, новые первыми.
func (h *Handler) AdminListListings(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	limit, ok1 := queryInt(r, "limit", 0)
	offset, ok2 := queryInt(r, "offset", 0)
	if !ok1 || !ok2 {
		h.badRequest(w, "limit and offset must be non-negative integers")
		return
	}

	listings, err := h.service.ListAllListings(r.Context(), caller, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

// AdminListAccounts возвращает учётные записи участников, новые первыми.
func (h *Handler) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	limit, ok1 := queryInt(r, "limit", 0)
	offset, ok2 := queryInt(r, "offset", 0)
	if !ok1 || !ok2 {
		h.badRequest(w, "limit and offset must be non-negative integers")
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), caller, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponses(accounts))
}

// CreateListing создаёт лот.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	l, err := h.service.CreateListing(r.Context(), caller, req.fields())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingResponse(l))
}

// UpdateListing изменяет лот.
func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	l, err := h.service.UpdateListing(r.Context(), caller, chi.URLParam(r, "id"), req.fields())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(l))
}

// DeleteListing удаляет лот без ставок.
func (h *Handler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteListing(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type publishRequest struct {
	Duration string     `json:"duration,omitempty"`
	EndTime  *time.Time `json:"end_time,omitempty"`
}

// PublishListing открывает торги по черновику.
func (h *Handler) PublishListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	p := service.PublishParams{EndTime: req.EndTime}
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			h.badRequest(w, "duration must be a Go duration like 72h")
			return
		}
		p.Duration = d
	}

	l, err := h.service.PublishListing(r.Context(), caller, chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(l))
}

// CloseAuction принудительно закрывает торги.
func (h *Handler) CloseAuction(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	l, err := h.service.CloseAuction(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(l))
}

type balanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type balanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// AdjustBalance изменяет баланс участника на знаковую величину.
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	id := chi.URLParam(r, "id")
	balance, err := h.service.AdjustBalance(r.Context(), caller, id, req.Delta)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{AccountID: id, Balance: balance})
}

// Stats возвращает сводку по площадке.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: "reports require a database"})
		return
	}

	st, err := h.reports.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		h.reportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type reportsResponse struct {
	Today       *report.Period          `json:"today"`
	Month       *report.Period          `json:"month"`
	TopListings []report.ListingSummary `json:"top_listings"`
	TopAccounts []report.AccountSummary `json:"top_accounts"`
}

// Reports возвращает активность за сутки и месяц и рейтинги лотов и участников.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: "reports require a database"})
		return
	}
	top, ok := queryInt(r, "top", defaultTopLimit)
	if !ok || top == 0 {
		h.badRequest(w, "top must be a positive integer")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	var (
		resp reportsResponse
		err  error
	)
	if resp.Today, err = h.reports.Period(ctx, report.DayStart(now)); err != nil {
		h.reportError(w, r, err)
		return
	}
	if resp.Month, err = h.reports.Period(ctx, report.MonthStart(now)); err != nil {
		h.reportError(w, r, err)
		return
	}
	if resp.TopListings, err = h.reports.TopListings(ctx, top); err != nil {
		h.reportError(w, r, err)
		return
	}
	if resp.TopAccounts, err = h.reports.TopAccounts(ctx, top); err != nil {
		h.reportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// reportError отвечает 503 на любой сбой хранилища отчётов.
func (h *Handler) reportError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, fmt.Errorf("%w: %w", service.ErrUnavailable, err))
}
