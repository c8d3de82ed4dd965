package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/simauction/internal/model"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Register обрабатывает регистрацию нового участника.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		h.badRequest(w, "login and password are required")
		return
	}

	acc, err := h.service.Register(r.Context(), req.Login, req.Password, req.FullName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.signIn(w, r, acc)
}

// Login выполняет аутентификацию участника и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	if req.Login == "" || req.Password == "" {
		h.badRequest(w, "login and password are required")
		return
	}

	acc, err := h.service.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.signIn(w, r, acc)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, acc *model.Account) {
	if err := h.authMiddleware.SetAuthCookie(w, acc.ID, []string{acc.Role}); err != nil {
		h.logger.Error("issue token error", zap.Error(err), zap.String("account_id", acc.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

// GetBalance возвращает учётную запись и баланс текущего участника.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	acc, err := h.service.GetAccount(r.Context(), caller.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}
