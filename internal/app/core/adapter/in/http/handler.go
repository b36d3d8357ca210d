// Package http 帳本服務的 REST 入口 (chi)。
// 路由沿用 /api/account/... 與 /api/users/{id}/...，Session 由 AuthToken Cookie 或 Bearer Header 攜帶。
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-bank/pkg/session"
)

// DefaultCookieName Session Cookie 名稱
const DefaultCookieName = "AuthToken"

// PasswordHasher 註冊時將密碼轉為憑證
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Handler REST Driving Adapter
type Handler struct {
	core       *usecase.CoreUseCase
	sessions   *session.Manager
	hasher     PasswordHasher
	logger     *zap.Logger
	cookieName string
}

// NewHandler 建立 REST Handler
//
// 參數:
//
//	cookieName: string - 空字串時使用 DefaultCookieName
func NewHandler(core *usecase.CoreUseCase, sessions *session.Manager, hasher PasswordHasher, logger *zap.Logger, cookieName string) *Handler {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Handler{
		core:       core,
		sessions:   sessions,
		hasher:     hasher,
		logger:     logger.Named("http"),
		cookieName: cookieName,
	}
}

// Routes 組裝路由
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/account/create", h.createAccount)
		r.Post("/account/login", h.login)
		r.With(h.authenticated).Post("/account/logout", h.logout)
		r.With(h.authenticated, h.active).Post("/account/deactivate", h.deactivate)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Use(h.authenticated, h.owner, h.active)
			r.Get("/balance", h.balance)
			r.Get("/history", h.history)
			r.Post("/deposit", h.deposit)
			r.Post("/withdraw", h.withdraw)
			r.Post("/transfer", h.transfer)
		})
	})
	return r
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile := domain.Profile{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Address:     strings.TrimSpace(req.Address),
	}
	if profile.Name == "" || profile.Email == "" || profile.PhoneNumber == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email, phoneNumber and password are required")
		return
	}
	credential, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.Error("hash password failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	profile.Credential = credential

	account, err := h.core.CreateAccount(r.Context(), profile)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/api/users/"+account.ID.String()+"/balance")
	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

// login 帳號或密碼錯誤回 400，停用帳戶回 403
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := h.core.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusBadRequest, "invalid credentials")
			return
		}
		writeDomainError(w, err)
		return
	}
	if !account.Active {
		h.logger.Warn("login to deactivated account", zap.Stringer("account_id", account.ID))
		writeError(w, http.StatusForbidden, domain.ErrInactiveAccount.Error())
		return
	}

	token, expires, err := h.sessions.Issue(account.ID)
	if err != nil {
		h.logger.Error("issue session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("logged in", zap.Stringer("account_id", account.ID))
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// deactivate 成功時一併登出；並行請求已先停用時回 400
func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	changed, err := h.core.Deactivate(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !changed {
		writeError(w, http.StatusBadRequest, "account already deactivated")
		return
	}
	h.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	account, err := h.core.GetAccount(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{AccountBalance: account.Balance})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	history, err := h.core.GetTransactionHistory(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]transactionResponse, 0, len(history))
	for _, tran := range history {
		resp = append(resp, newTransactionResponse(tran))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidAmount.Error())
		return
	}
	tran, err := h.core.Deposit(r.Context(), accountID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(tran))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidAmount.Error())
		return
	}
	tran, err := h.core.Withdraw(r.Context(), accountID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(tran))
}

// transfer 同帳戶轉帳回 409，非正數金額回 400
func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DestinationAccount == accountID {
		h.logger.Warn("blocked same-account transfer", zap.Stringer("account_id", accountID))
		writeError(w, http.StatusConflict, domain.ErrInvalidOperation.Error())
		return
	}
	if req.DestinationAccount == uuid.Nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidAccount.Error())
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidAmount.Error())
		return
	}
	tran, err := h.core.Transfer(r.Context(), accountID, req.DestinationAccount, req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(tran))
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
