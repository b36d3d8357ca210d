package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Profile 建立帳戶時的個人資料
// 欄位格式由 Transport 層先行驗證
type Profile struct {
	Name        string
	Email       string
	PhoneNumber string
	Address     string
	// Credential 由身分驗證端處理 (例如 bcrypt hash)，核心不解讀
	Credential string
}

// Account 帳戶
type Account struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	PhoneNumber string          `json:"phone_number"`
	Address     string          `json:"address"`
	Credential  string          `json:"credential"`
	Balance     decimal.Decimal `json:"balance"`
	Active      bool            `json:"active"`
	// History 依序記錄參與過的交易 ID (以 Transaction Log 為準)
	History []uuid.UUID `json:"history"`
}

// NewAccount 依 Profile 建立新帳戶，餘額為 0 且為啟用狀態
func NewAccount(profile Profile) *Account {
	return &Account{
		ID:          uuid.New(),
		Name:        profile.Name,
		Email:       profile.Email,
		PhoneNumber: profile.PhoneNumber,
		Address:     profile.Address,
		Credential:  profile.Credential,
		Balance:     decimal.Zero,
		Active:      true,
		History:     make([]uuid.UUID, 0),
	}
}

// Clone 深拷貝，避免呼叫端改到 Store 內部的資料
func (a *Account) Clone() *Account {
	cp := *a
	cp.History = make([]uuid.UUID, len(a.History))
	copy(cp.History, a.History)
	return &cp
}

// Deposit 存款
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	a.Balance = a.Balance.Add(amount)
	return nil
}

// Withdraw 提款，停用中的帳戶不可作為扣款方
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !a.Active {
		return ErrInactiveAccount
	}

	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Record 把交易 ID 加進歷史紀錄
func (a *Account) Record(tranID uuid.UUID) {
	a.History = append(a.History, tranID)
}

// NormalizeEmail Email 比對不分大小寫
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
