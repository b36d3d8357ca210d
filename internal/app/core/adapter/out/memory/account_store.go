package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// AccountStore 是一個使用 RWMutex 保護的帳戶儲存
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	emails: 正規化 Email -> 帳戶 ID
//	phones: 電話 -> 帳戶 ID
//	journal: Write-Ahead Log (可為 nil)
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
	emails   map[string]uuid.UUID
	phones   map[string]uuid.UUID
	// Write-Ahead Logging
	journal Journal
}

// NewAccountStore 建立一個新的 AccountStore 實例
//
// 參數:
//
//	journal: Write-Ahead Log，nil 表示不落地
//
// 回傳:
//
//	*AccountStore: AccountStore 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewAccountStore(journal Journal) (*AccountStore, error) {
	store := &AccountStore{
		accounts: make(map[uuid.UUID]*domain.Account),
		emails:   make(map[string]uuid.UUID),
		phones:   make(map[string]uuid.UUID),
		journal:  journal,
	}
	if err := store.recoverFromWAL(); err != nil {
		return nil, err
	}
	return store, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳戶，同一帳戶以最後一筆已提交的快照為準
// 只有 NewAccountStore 呼叫，無需 Lock (單執行緒)
func (s *AccountStore) recoverFromWAL() error {
	return replayAccounts(s.journal, s.put)
}

// GetByID 取得帳戶副本
func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetByEmail 以 Email (不分大小寫) 取得帳戶副本
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return s.accounts[id].Clone(), nil
}

// ExistsByEmailOrPhone Email 不分大小寫，電話完全比對
func (s *AccountStore) ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.emails[domain.NormalizeEmail(email)]; ok {
		return true, nil
	}
	_, ok := s.phones[phone]
	return ok, nil
}

// Add 新增帳戶
func (s *AccountStore) Add(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return domain.ErrDuplicateAccount
	}
	// 1. 寫入 WAL (Critical Path)
	if err := journal(s.journal, walRecord{Kind: recordKindAccount, Account: account}); err != nil {
		return err
	}
	// 2. 更新 Map
	s.put(account.Clone())
	return nil
}

// Update 覆蓋帳戶資料
func (s *AccountStore) Update(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	if err := journal(s.journal, walRecord{Kind: recordKindAccount, Account: account}); err != nil {
		return err
	}
	s.put(account.Clone())
	return nil
}

// Restore 過帳失敗時還原帳戶
// 記憶體一律還原；WAL 寫入失敗時仍回傳錯誤，重啟時由重放規則略過未提交的快照
func (s *AccountStore) Restore(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(account.Clone())
	return journal(s.journal, walRecord{Kind: recordKindAccount, Account: account})
}

// ListAll 列出全部帳戶副本
func (s *AccountStore) ListAll(ctx context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		list = append(list, account.Clone())
	}
	return list, nil
}

// put 寫入 Map 並維護索引，呼叫端需持有寫鎖
func (s *AccountStore) put(account *domain.Account) {
	if prev, ok := s.accounts[account.ID]; ok {
		delete(s.emails, domain.NormalizeEmail(prev.Email))
		delete(s.phones, prev.PhoneNumber)
	}
	s.accounts[account.ID] = account
	s.emails[domain.NormalizeEmail(account.Email)] = account.ID
	if account.PhoneNumber != "" {
		s.phones[account.PhoneNumber] = account.ID
	}
}

var (
	_ usecase.AccountStore    = (*AccountStore)(nil)
	_ usecase.AccountRestorer = (*AccountStore)(nil)
)
