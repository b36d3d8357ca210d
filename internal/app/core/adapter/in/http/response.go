package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeDomainError 將核心錯誤轉為 HTTP 狀態碼，內部錯誤不回傳細節
func writeDomainError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAccount),
		errors.Is(err, domain.ErrAccountExists):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidOperation):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrInactiveAccount):
		code = http.StatusForbidden
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeError(w, code, err.Error())
}
