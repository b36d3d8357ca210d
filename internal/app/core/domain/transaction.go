package domain

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExternalAccount 代表「外部世界」的帳戶 (Sentinel)
// 存款的 Origin、提款的 Destination 都是它
var ExternalAccount = uuid.Nil

// AmountScale 金額最多的小數位數，需與 sqlstore 的 decimal(20,4) 欄位一致
const AmountScale = 4

// maxAmountDigits 金額整數部分最多位數 (decimal(20,4) 的整數位)
const maxAmountDigits = 16

var maxAmount = decimal.New(1, maxAmountDigits)

// ValidateAmount 金額必須為正數、最多 AmountScale 位小數且小於 10^16
func ValidateAmount(amount decimal.Decimal) error {
	exp := amount.Exponent()
	// 先擋掉極端指數，之後的比較與 Truncate 成本才有上限
	if exp > maxAmountDigits || exp < -(AmountScale+maxAmountDigits) {
		return ErrInvalidAmount
	}
	if !amount.IsPositive() || amount.Cmp(maxAmount) >= 0 {
		return ErrInvalidAmount
	}
	// "1.50000" 這類尾端為 0 的寫法仍可接受
	if exp < -AmountScale && !amount.Equal(amount.Truncate(AmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// TransactionType 交易類型
// 為了極致節省記憶體，使用 uint8
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
	// 轉帳
	TransactionTypeTransfer TransactionType = 3
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "Deposit"
	case TransactionTypeWithdraw:
		return "Withdraw"
	case TransactionTypeTransfer:
		return "Transfer"
	}
	return "Unknown"
}

// Transaction 交易，建立後不可再修改
type Transaction struct {
	ID uuid.UUID `json:"id"`
	// Sequence: 全局遞增的順序號 (Snowflake)，Timestamp 相同時用來排序
	Sequence    int64           `json:"sequence"`
	Timestamp   time.Time       `json:"timestamp"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Origin      uuid.UUID       `json:"origin_account"`
	Destination uuid.UUID       `json:"destination_account"`
}

// NewTransaction 建立一筆尚未提交的交易，並檢查基本不變量
//
// 參數:
//
//	tranType: 交易類型
//	origin, destination: 帳戶 ID，存款的 origin 與提款的 destination 會被設為 ExternalAccount
//	amount: 金額，必須為正數且最多 AmountScale 位小數
//	description: 說明，空白時使用交易類型名稱
//
// 回傳:
//
//	*Transaction: 交易物件 (Sequence / Timestamp 於提交時才填入)
//	error: ErrInvalidAmount / ErrInvalidAccount / ErrInvalidOperation
func NewTransaction(tranType TransactionType, origin, destination uuid.UUID, amount decimal.Decimal, description string) (*Transaction, error) {
	switch tranType {
	case TransactionTypeDeposit:
		origin = ExternalAccount
		if destination == ExternalAccount {
			return nil, ErrInvalidAccount
		}
	case TransactionTypeWithdraw:
		destination = ExternalAccount
		if origin == ExternalAccount {
			return nil, ErrInvalidAccount
		}
	case TransactionTypeTransfer:
		if origin == ExternalAccount || destination == ExternalAccount {
			return nil, ErrInvalidAccount
		}
		if origin == destination {
			return nil, ErrInvalidOperation
		}
	default:
		return nil, ErrInvalidOperation
	}

	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	if strings.TrimSpace(description) == "" {
		description = tranType.String()
	}

	return &Transaction{
		ID:          uuid.New(),
		Amount:      amount,
		Type:        tranType,
		Description: description,
		Origin:      origin,
		Destination: destination,
	}, nil
}

// Stamp 於提交時寫入順序號與 UTC 時間
func (t *Transaction) Stamp(sequence int64, now time.Time) {
	t.Sequence = sequence
	t.Timestamp = now.UTC()
}

// Involves 判斷帳戶是否為此交易的參與者
func (t *Transaction) Involves(accountID uuid.UUID) bool {
	if accountID == ExternalAccount {
		return false
	}
	return t.Origin == accountID || t.Destination == accountID
}

// GetLockIDs 回傳需要鎖定的帳號 ID，並確保順序以避免死鎖
func (t *Transaction) GetLockIDs() (ids []uuid.UUID) {
	// 預先宣告一個容量為 2 的 slice，避免多次分配
	ids = make([]uuid.UUID, 0, 2)
	switch t.Type {
	case TransactionTypeTransfer:
		if bytes.Compare(t.Origin[:], t.Destination[:]) < 0 {
			ids = append(ids, t.Origin, t.Destination)
		} else {
			ids = append(ids, t.Destination, t.Origin)
		}
	case TransactionTypeDeposit:
		ids = append(ids, t.Destination)
	case TransactionTypeWithdraw:
		ids = append(ids, t.Origin)
	}
	return ids
}

// Before 依 Timestamp、Sequence 排序
func (t *Transaction) Before(other *Transaction) bool {
	if !t.Timestamp.Equal(other.Timestamp) {
		return t.Timestamp.Before(other.Timestamp)
	}
	return t.Sequence < other.Sequence
}

// Clone 複製一份交易
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}
