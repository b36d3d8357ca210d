package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

type createAccountRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// amountRequest 存款/提款，amount 可為 JSON 數字或字串
type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	DestinationAccount uuid.UUID       `json:"destinationAccount"`
	Amount             decimal.Decimal `json:"amount"`
	Description        string          `json:"description"`
}

// accountResponse 對外帳戶資料，不含憑證
type accountResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	PhoneNumber    string          `json:"phoneNumber"`
	Address        string          `json:"address"`
	AccountBalance decimal.Decimal `json:"accountBalance"`
	Active         bool            `json:"active"`
}

type balanceResponse struct {
	AccountBalance decimal.Decimal `json:"accountBalance"`
}

type transactionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Sequence           int64           `json:"sequence,string"`
	Timestamp          time.Time       `json:"timestamp"`
	Amount             decimal.Decimal `json:"amount"`
	Type               string          `json:"type"`
	Description        string          `json:"description"`
	OriginAccount      uuid.UUID       `json:"originAccount"`
	DestinationAccount uuid.UUID       `json:"destinationAccount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		PhoneNumber:    a.PhoneNumber,
		Address:        a.Address,
		AccountBalance: a.Balance,
		Active:         a.Active,
	}
}

func newTransactionResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:                 t.ID,
		Sequence:           t.Sequence,
		Timestamp:          t.Timestamp,
		Amount:             t.Amount,
		Type:               t.Type.String(),
		Description:        t.Description,
		OriginAccount:      t.Origin,
		DestinationAccount: t.Destination,
	}
}
