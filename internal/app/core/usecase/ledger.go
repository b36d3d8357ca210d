package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// AccountStore 帳戶儲存介面 (Driven Port)
// 實作需可被多個 goroutine 同時呼叫，且回傳的 *Account 必須是副本
type AccountStore interface {
	// GetByID 找不到時回傳 domain.ErrAccountNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// GetByEmail Email 不分大小寫，找不到時回傳 domain.ErrAccountNotFound
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// ExistsByEmailOrPhone Email 不分大小寫，電話完全比對
	ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error)
	// Add ID 已存在時回傳 domain.ErrDuplicateAccount
	Add(ctx context.Context, account *domain.Account) error
	// Update 覆蓋整筆帳戶資料，找不到時回傳 domain.ErrAccountNotFound
	Update(ctx context.Context, account *domain.Account) error
	// ListAll 管理/診斷用
	ListAll(ctx context.Context) ([]*domain.Account, error)
}

// AccountRestorer 可選介面：過帳失敗時還原帳戶
// 與 Update 不同，即使落地失敗也必須還原記憶體中的狀態
type AccountRestorer interface {
	Restore(ctx context.Context, account *domain.Account) error
}

// TransactionLog 交易紀錄介面 (Driven Port)，只能追加
type TransactionLog interface {
	// Append 追加一筆交易，不做冪等檢查 (每筆交易 ID 皆唯一)
	Append(ctx context.Context, tran *domain.Transaction) error
	// ListByAccount 回傳帳戶為 Origin 或 Destination 的交易，依時間遞增
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Transaction, error)
	// ListAll 依時間遞增回傳全部交易
	ListAll(ctx context.Context) ([]*domain.Transaction, error)
}
