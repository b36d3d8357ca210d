package usecase

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/pkg/keylock"
)

// CredentialMatcher 比對儲存的憑證與呼叫端提供的憑證
type CredentialMatcher func(stored, presented string) bool

// ExactCredentialMatcher 完全相同才算通過 (constant time)
func ExactCredentialMatcher(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// Option CoreUseCase 設定
type Option func(*CoreUseCase)

// WithNodeID 設定 Snowflake 節點編號 (0~1023)
func WithNodeID(nodeID int64) Option {
	return func(c *CoreUseCase) {
		c.nodeID = nodeID
	}
}

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(c *CoreUseCase) {
		c.now = now
	}
}

// WithCredentialMatcher 替換憑證比對方式 (例如 bcrypt)
func WithCredentialMatcher(matcher CredentialMatcher) Option {
	return func(c *CoreUseCase) {
		c.matchCredential = matcher
	}
}

// CoreUseCase 是核心業務邏輯層 (Ledger Service)
//
// 結構:
//
//	accounts: 帳戶儲存
//	transactions: 交易紀錄
//	locks: 以帳戶 ID 為單位的鎖表，涵蓋 讀取 -> 檢查 -> 寫回 整段流程
//	registerMu: 序列化開戶，確保 Email/電話 唯一性檢查與寫入是原子的
type CoreUseCase struct {
	accounts     AccountStore
	transactions TransactionLog

	locks      *keylock.Table[uuid.UUID]
	registerMu sync.Mutex

	sequence        *snowflake.Node
	nodeID          int64
	now             func() time.Time
	matchCredential CredentialMatcher
	logger          *zap.Logger
}

// NewCoreUseCase 建立 Ledger Service
//
// 參數:
//
//	accounts: 帳戶儲存
//	transactions: 交易紀錄
//	logger: 結構化 Logger (nil 時不輸出)
//	opts: 其他設定
//
// 回傳:
//
//	*CoreUseCase: 實例
//	error: 初始化錯誤 (如 Snowflake 節點編號超出範圍)
func NewCoreUseCase(accounts AccountStore, transactions TransactionLog, logger *zap.Logger, opts ...Option) (*CoreUseCase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CoreUseCase{
		accounts:     accounts,
		transactions: transactions,
		locks: keylock.New(func(a, b uuid.UUID) int {
			return bytes.Compare(a[:], b[:])
		}),
		now:             time.Now,
		matchCredential: ExactCredentialMatcher,
		logger:          logger.Named("ledger"),
	}
	for _, opt := range opts {
		opt(c)
	}

	node, err := snowflake.NewNode(c.nodeID)
	if err != nil {
		return nil, fmt.Errorf("init sequence node %d: %w", c.nodeID, err)
	}
	c.sequence = node
	return c, nil
}

// CreateAccount 開戶
// Email 或電話已存在時回傳 domain.ErrAccountExists (不帶個資)
func (c *CoreUseCase) CreateAccount(ctx context.Context, profile domain.Profile) (*domain.Account, error) {
	log := c.logger.With(zap.String("op", "CreateAccount"))

	c.registerMu.Lock()
	defer c.registerMu.Unlock()

	exists, err := c.accounts.ExistsByEmailOrPhone(ctx, profile.Email, profile.PhoneNumber)
	if err != nil {
		return nil, c.fault(log, err)
	}
	if exists {
		// 詳細內容只寫進內部 Log
		log.Warn("email or phone number already in use",
			zap.String("email", profile.Email),
			zap.String("phone_number", profile.PhoneNumber))
		return nil, domain.ErrAccountExists
	}

	account := domain.NewAccount(profile)
	if err := c.accounts.Add(ctx, account); err != nil {
		return nil, c.fault(log, err)
	}

	log.Info("account created", zap.Stringer("account_id", account.ID))
	return account.Clone(), nil
}

// Authenticate 以 Email + 憑證取得帳戶
// 查無 Email 與憑證錯誤一律回傳 domain.ErrAccountNotFound
func (c *CoreUseCase) Authenticate(ctx context.Context, email, credential string) (*domain.Account, error) {
	log := c.logger.With(zap.String("op", "Authenticate"))

	account, err := c.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		log.Warn("invalid credentials")
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, c.fault(log, err)
	}
	if !c.matchCredential(account.Credential, credential) {
		log.Warn("invalid credentials", zap.Stringer("account_id", account.ID))
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

// GetAccount 取得帳戶
func (c *CoreUseCase) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	log := c.logger.With(zap.String("op", "GetAccount"), zap.Stringer("account_id", accountID))
	return c.loadAccount(ctx, log, accountID)
}

// FindAccountByEmail 以 Email (不分大小寫) 取得帳戶，不比對憑證
func (c *CoreUseCase) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := c.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, c.fault(c.logger.With(zap.String("op", "FindAccountByEmail")), err)
	}
	return account, nil
}

// ListAccounts 列出全部帳戶 (管理/診斷用)
func (c *CoreUseCase) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := c.accounts.ListAll(ctx)
	if err != nil {
		return nil, c.fault(c.logger.With(zap.String("op", "ListAccounts")), err)
	}
	return accounts, nil
}

// GetTransactionHistory 取得帳戶的交易紀錄，依時間遞增
func (c *CoreUseCase) GetTransactionHistory(ctx context.Context, accountID uuid.UUID) ([]*domain.Transaction, error) {
	log := c.logger.With(zap.String("op", "GetTransactionHistory"), zap.Stringer("account_id", accountID))
	if _, err := c.loadAccount(ctx, log, accountID); err != nil {
		return nil, err
	}
	history, err := c.transactions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, c.fault(log, err)
	}
	return history, nil
}

// Deactivate 停用帳戶
//
// 回傳:
//
//	bool: 是否真的從啟用變成停用 (已停用的帳戶回傳 false，不改變任何狀態)
//	error: domain.ErrInvalidAccount / domain.ErrAccountNotFound / domain.ErrInternalFault
func (c *CoreUseCase) Deactivate(ctx context.Context, accountID uuid.UUID) (bool, error) {
	log := c.logger.With(zap.String("op", "Deactivate"), zap.Stringer("account_id", accountID))

	unlock := c.locks.Lock(accountID)
	defer unlock()

	account, err := c.loadAccount(ctx, log, accountID)
	if err != nil {
		return false, err
	}
	if !account.Active {
		log.Warn("account already inactive")
		return false, nil
	}

	account.Active = false
	if err := c.accounts.Update(ctx, account); err != nil {
		return false, c.fault(log, err)
	}
	log.Info("account deactivated")
	return true, nil
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	log := c.logger.With(zap.String("op", "Deposit"), zap.Stringer("account_id", accountID))
	tran, err := domain.NewTransaction(domain.TransactionTypeDeposit, domain.ExternalAccount, accountID, amount, "")
	if err != nil {
		return nil, c.reject(log, err)
	}
	return c.post(ctx, log, tran)
}

// Withdraw 提款
func (c *CoreUseCase) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	log := c.logger.With(zap.String("op", "Withdraw"), zap.Stringer("account_id", accountID))
	tran, err := domain.NewTransaction(domain.TransactionTypeWithdraw, accountID, domain.ExternalAccount, amount, "")
	if err != nil {
		return nil, c.reject(log, err)
	}
	return c.post(ctx, log, tran)
}

// Transfer 轉帳，description 空白時為 "Transfer"
func (c *CoreUseCase) Transfer(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount decimal.Decimal, description string) (*domain.Transaction, error) {
	log := c.logger.With(zap.String("op", "Transfer"),
		zap.Stringer("from_account_id", fromAccountID),
		zap.Stringer("to_account_id", toAccountID))
	tran, err := domain.NewTransaction(domain.TransactionTypeTransfer, fromAccountID, toAccountID, amount, description)
	if err != nil {
		return nil, c.reject(log, err)
	}
	return c.post(ctx, log, tran)
}

// post 執行交易核心邏輯
// 鎖住相關帳戶 -> 讀取 -> 檢查並計算新餘額 -> 寫回帳戶 -> 追加交易
// 任何一步失敗都不會留下部分結果
func (c *CoreUseCase) post(ctx context.Context, log *zap.Logger, tran *domain.Transaction) (*domain.Transaction, error) {
	lockIDs := tran.GetLockIDs()
	unlock := c.locks.Lock(lockIDs...)
	defer unlock()

	// 1. 讀取帳戶 (副本)，保留原始資料供 rollback
	originals := make(map[uuid.UUID]*domain.Account, len(lockIDs))
	working := make(map[uuid.UUID]*domain.Account, len(lockIDs))
	for _, id := range lockIDs {
		account, err := c.loadAccount(ctx, log, id)
		if err != nil {
			return nil, err
		}
		originals[id] = account
		working[id] = account.Clone()
	}

	// 2. 核心交易分發
	var err error
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		err = c.handleDeposit(working[tran.Destination], tran)
	case domain.TransactionTypeWithdraw:
		err = working[tran.Origin].Withdraw(tran.Amount)
	case domain.TransactionTypeTransfer:
		err = c.handleTransfer(working[tran.Origin], working[tran.Destination], tran)
	default:
		err = domain.ErrInvalidOperation
	}
	if err != nil {
		return nil, c.reject(log, err, zap.String("amount", tran.Amount.String()))
	}

	// 3. 提交：填入順序號與時間，記錄到參與帳戶的歷史
	tran.Stamp(c.sequence.Generate().Int64(), c.now())
	for _, id := range lockIDs {
		working[id].Record(tran.ID)
	}

	// 4. 寫回帳戶，失敗時還原已寫入的帳戶
	updated := make([]uuid.UUID, 0, len(lockIDs))
	for _, id := range lockIDs {
		if err := c.accounts.Update(ctx, working[id]); err != nil {
			c.rollback(ctx, log, originals, updated)
			return nil, c.fault(log, err, zap.Stringer("transaction_id", tran.ID))
		}
		updated = append(updated, id)
	}

	// 5. 追加交易紀錄
	if err := c.transactions.Append(ctx, tran); err != nil {
		c.rollback(ctx, log, originals, updated)
		return nil, c.fault(log, err, zap.Stringer("transaction_id", tran.ID))
	}

	log.Info("transaction posted",
		zap.Stringer("transaction_id", tran.ID),
		zap.Stringer("type", tran.Type),
		zap.String("amount", tran.Amount.String()))
	return tran.Clone(), nil
}

// handleDeposit 存款：停用中的帳戶不接受本人存款
func (c *CoreUseCase) handleDeposit(to *domain.Account, tran *domain.Transaction) error {
	if !to.Active {
		return domain.ErrInactiveAccount
	}
	return to.Deposit(tran.Amount)
}

// handleTransfer 轉帳：先扣後存，兩者都只改動副本
func (c *CoreUseCase) handleTransfer(from, to *domain.Account, tran *domain.Transaction) error {
	if err := from.Withdraw(tran.Amount); err != nil {
		return err
	}
	return to.Deposit(tran.Amount)
}

// rollback 還原已寫入的帳戶
// 儲存實作 AccountRestorer 時改用 Restore，WAL 故障時記憶體仍會回到原始狀態
func (c *CoreUseCase) rollback(ctx context.Context, log *zap.Logger, originals map[uuid.UUID]*domain.Account, updated []uuid.UUID) {
	restore := c.accounts.Update
	if r, ok := c.accounts.(AccountRestorer); ok {
		restore = r.Restore
	}
	for _, id := range updated {
		if err := restore(ctx, originals[id]); err != nil {
			log.Error("rollback failed", zap.Stringer("account_id", id), zap.Error(err))
		}
	}
}

// loadAccount 讀取帳戶並將錯誤分類
func (c *CoreUseCase) loadAccount(ctx context.Context, log *zap.Logger, accountID uuid.UUID) (*domain.Account, error) {
	if accountID == domain.ExternalAccount {
		return nil, c.reject(log, domain.ErrInvalidAccount)
	}
	account, err := c.accounts.GetByID(ctx, accountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, c.reject(log, domain.ErrAccountNotFound, zap.Stringer("missing_account_id", accountID))
	}
	if err != nil {
		return nil, c.fault(log, err)
	}
	return account, nil
}

// reject 記錄可修正的業務錯誤 (Warn)，原樣回傳
func (c *CoreUseCase) reject(log *zap.Logger, err error, fields ...zap.Field) error {
	log.Warn(err.Error(), fields...)
	return err
}

// fault 記錄內部錯誤 (Error)，對外只回傳 domain.ErrInternalFault
func (c *CoreUseCase) fault(log *zap.Logger, err error, fields ...zap.Field) error {
	log.Error("internal fault", append(fields, zap.Error(err))...)
	return domain.ErrInternalFault
}
