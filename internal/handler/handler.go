// Package handler содержит HTTP-обработчики API сервиса аукциона.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/simauction/internal/middleware"
	"github.com/mmeshcher/simauction/internal/model"
	"github.com/mmeshcher/simauction/internal/report"
	"github.com/mmeshcher/simauction/internal/repository"
	"github.com/mmeshcher/simauction/internal/service"
	"github.com/mmeshcher/simauction/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, login, password, fullName string) (*model.Account, error)
	Authenticate(ctx context.Context, login, password string) (*model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	AdjustBalance(ctx context.Context, caller model.Caller, accountID string, delta decimal.Decimal) (decimal.Decimal, error)

	ListActive(ctx context.Context, f model.ListingFilter) ([]model.Listing, error)
	GetListingDetail(ctx context.Context, id string) (*service.ListingDetail, error)
	PlaceBid(ctx context.Context, caller model.Caller, listingID string, amount decimal.Decimal) (*model.Listing, error)
	BuyNow(ctx context.Context, caller model.Caller, listingID string) (*model.Listing, error)
	CloseAuction(ctx context.Context, caller model.Caller, listingID string) (*model.Listing, error)

	CreateListing(ctx context.Context, caller model.Caller, in validation.ListingFields) (*model.Listing, error)
	UpdateListing(ctx context.Context, caller model.Caller, id string, in validation.ListingFields) (*model.Listing, error)
	PublishListing(ctx context.Context, caller model.Caller, id string, p service.PublishParams) (*model.Listing, error)
	DeleteListing(ctx context.Context, caller model.Caller, id string) error
	ListAllListings(ctx context.Context, caller model.Caller, limit, offset int) ([]model.Listing, error)
	ListAccounts(ctx context.Context, caller model.Caller, limit, offset int) ([]model.Account, error)

	Ping(ctx context.Context) error
}

// Reporter определяет отчёты администратора. Может отсутствовать при in-memory хранилище.
type Reporter interface {
	Stats(ctx context.Context, now time.Time) (*report.Stats, error)
	Period(ctx context.Context, from time.Time) (*report.Period, error)
	TopListings(ctx context.Context, limit int) ([]report.ListingSummary, error)
	TopAccounts(ctx context.Context, limit int) ([]report.AccountSummary, error)
}

// Handler реализует HTTP-обработчики API сервиса аукциона.
type Handler struct {
	service        Service
	reports        Reporter
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	limiter        *middleware.RateLimiter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, reports Reporter, logger *zap.Logger, auth *middleware.AuthMiddleware, limiter *middleware.RateLimiter) *Handler {
	if limiter == nil {
		limiter = middleware.NewRateLimiter(0, 0)
	}
	return &Handler{
		service:        s,
		reports:        reports,
		logger:         logger,
		authMiddleware: auth,
		limiter:        limiter,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: msg})
}

// writeError отображает ошибку сервиса в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, service.ErrAuctionClosed):
		status, code = http.StatusConflict, "auction_closed"
	case errors.Is(err, service.ErrBidTooLow):
		status, code = http.StatusConflict, "bid_too_low"
	case errors.Is(err, service.ErrNoBuyNowPrice):
		status, code = http.StatusConflict, "no_buy_now_price"
	case errors.Is(err, service.ErrContention):
		w.Header().Set("Retry-After", "1")
		status, code = http.StatusConflict, "contention"
	case errors.Is(err, repository.ErrInsufficientFunds):
		status, code = http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, repository.ErrAccountExists):
		status, code = http.StatusConflict, "account_exists"
	case errors.Is(err, repository.ErrListingHasBids):
		status, code = http.StatusConflict, "listing_has_bids"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		status, code = http.StatusServiceUnavailable, "unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, errorResponse{Error: code})
		return
	}
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}

// caller возвращает вызывающего из контекста, иначе отвечает 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (model.Caller, bool) {
	c, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return c, ok
}

// Health проверяет доступность хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
