package sqlstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// TransactionLog 以關聯式資料庫實作的交易紀錄 (只 INSERT，不 UPDATE)
type TransactionLog struct {
	db *gorm.DB
}

func NewTransactionLog(db *gorm.DB) *TransactionLog {
	return &TransactionLog{
		db: db,
	}
}

// Append 建立交易紀錄
func (l *TransactionLog) Append(ctx context.Context, tran *domain.Transaction) error {
	row := toSQLTransaction(tran)
	return l.db.WithContext(ctx).Create(&row).Error
}

// ListByAccount 取得帳戶相關交易，依時間遞增
func (l *TransactionLog) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Transaction, error) {
	if accountID == domain.ExternalAccount {
		return []*domain.Transaction{}, nil
	}
	id := accountID.String()
	return l.find(l.db.WithContext(ctx).
		Where("origin_account_id = ? OR destination_account_id = ?", id, id))
}

// ListAll 取得全部交易，依時間遞增
func (l *TransactionLog) ListAll(ctx context.Context) ([]*domain.Transaction, error) {
	return l.find(l.db.WithContext(ctx))
}

func (l *TransactionLog) find(query *gorm.DB) ([]*domain.Transaction, error) {
	var rows []sqlTransaction
	if err := query.Order("posted_at").Order("sequence").Find(&rows).Error; err != nil {
		return nil, err
	}
	list := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		list = append(list, tran)
	}
	return list, nil
}

var _ usecase.TransactionLog = (*TransactionLog)(nil)
