package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

type accountKey struct{}

// AccountFromContext 取得驗證後的帳戶 ID
func AccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey{}).(uuid.UUID)
	return id, ok
}

// requestLogger 每個請求一行日誌
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Error("http", fields...)
				return
			}
			logger.Info("http", fields...)
		})
	}
}

// authenticated 從 Cookie 或 "Authorization: Bearer" 取得 Session
func (h *Handler) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(h.cookieName); err == nil {
			token = c.Value
		}
		if token == "" {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				token = strings.TrimSpace(parts[1])
			}
		}
		if token == "" {
			h.logger.Warn("unauthenticated access attempt", zap.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		accountID, err := h.sessions.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, accountID)))
	})
}

// active 帳戶停用後，尚未過期的 Session 也不可再使用
func (h *Handler) active(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, _ := AccountFromContext(r.Context())
		account, err := h.core.GetAccount(r.Context(), accountID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !account.Active {
			writeDomainError(w, domain.ErrInactiveAccount)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// owner 路徑上的 {id} 必須是登入者本人
func (h *Handler) owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ := AccountFromContext(r.Context())
		requested, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil || requested != caller {
			h.logger.Warn("ownership mismatch", zap.Stringer("account_id", caller), zap.String("path", r.URL.Path))
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
