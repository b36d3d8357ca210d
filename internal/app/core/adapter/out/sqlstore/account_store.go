package sqlstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// AccountStore 以關聯式資料庫實作的帳戶儲存
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{
		db: db,
	}
}

// GetByID 取得帳戶，History 由 transactions 表依時間排序帶出
func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.first(ctx, "id = ?", id.String())
}

// GetByEmail Email 不分大小寫
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.first(ctx, "email_key = ?", domain.NormalizeEmail(email))
}

// ExistsByEmailOrPhone Email 不分大小寫，電話完全比對
func (s *AccountStore) ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&sqlAccount{}).
		Where("email_key = ?", domain.NormalizeEmail(email))
	if phone != "" {
		query = query.Or("phone_number = ?", phone)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Add 新增帳戶
func (s *AccountStore) Add(ctx context.Context, account *domain.Account) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&sqlAccount{}).Where("id = ?", account.ID.String()).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrDuplicateAccount
		}
		row := toSQLAccount(account)
		return tx.Create(&row).Error
	})
}

// Update 覆蓋帳戶資料 (History 不寫入)
func (s *AccountStore) Update(ctx context.Context, account *domain.Account) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&sqlAccount{}).Where("id = ?", account.ID.String()).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrAccountNotFound
		}
		row := toSQLAccount(account)
		return tx.Model(&sqlAccount{}).Where("id = ?", row.ID).Updates(map[string]any{
			"name":         row.Name,
			"email":        row.Email,
			"email_key":    row.EmailKey,
			"phone_number": row.PhoneNumber,
			"address":      row.Address,
			"credential":   row.Credential,
			"balance":      row.Balance,
			"active":       row.Active,
		}).Error
	})
}

// ListAll 列出全部帳戶
func (s *AccountStore) ListAll(ctx context.Context) ([]*domain.Account, error) {
	var rows []sqlAccount
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	list := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		history, err := s.history(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		account, err := rows[i].toDomain(history)
		if err != nil {
			return nil, err
		}
		list = append(list, account)
	}
	return list, nil
}

func (s *AccountStore) first(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	var row sqlAccount
	err := s.db.WithContext(ctx).Where(query, args...).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	history, err := s.history(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return row.toDomain(history)
}

// history 取得帳戶參與過的交易 ID
func (s *AccountStore) history(ctx context.Context, accountID string) ([]uuid.UUID, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&sqlTransaction{}).
		Where("origin_account_id = ? OR destination_account_id = ?", accountID, accountID).
		Order("posted_at").Order("sequence").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	history := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		history = append(history, id)
	}
	return history, nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
