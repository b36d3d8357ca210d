package domain

import "errors"

// 可由呼叫端修正的錯誤 (Recoverable)，上層 Adapter 依此轉換成對外狀態碼
var (
	// ErrInvalidAmount 金額必須為正數
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAccount 傳入外部帳戶 (Sentinel) 或空白 ID
	ErrInvalidAccount = errors.New("invalid account id")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidOperation 不允許的操作 (例如轉帳給自己)
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrAccountExists Email 或電話已被使用
	// 訊息刻意不帶任何個資
	ErrAccountExists = errors.New("account could not be created")

	// ErrInactiveAccount 帳戶已停用
	ErrInactiveAccount = errors.New("account is inactive")
)

// 內部錯誤，不對外揭露細節
var (
	// ErrInternalFault 儲存層或不變量檢查失敗
	ErrInternalFault = errors.New("internal fault")

	// ErrDuplicateAccount 帳戶 ID 重複 (Store 層防呆)
	ErrDuplicateAccount = errors.New("duplicate account id")

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = errors.New("wal write failed")
)

// IsRecoverable 判斷錯誤是否屬於呼叫端可修正的業務錯誤
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrInactiveAccount):
		return true
	}
	return false
}
