package sqlstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// sqlAccount 對應資料庫的 accounts 表
// History 不落表，由 transactions 表推導
type sqlAccount struct {
	ID          string          `gorm:"primaryKey;type:char(36)"`
	Name        string          `gorm:"size:100"`
	Email       string          `gorm:"size:255"`
	EmailKey    string          `gorm:"size:255;uniqueIndex"` // 正規化後的 Email，用於不分大小寫比對
	PhoneNumber string          `gorm:"size:50;index"`
	Address     string          `gorm:"size:255"`
	Credential  string          `gorm:"size:255"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,4);not null"` // 小數位數 = domain.AmountScale
	Active      bool
	CreatedAt   int64 `gorm:"autoCreateTime:milli"` // 自動寫入時間
	UpdatedAt   int64 `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID                   string          `gorm:"primaryKey;type:char(36)"`
	Sequence             int64           `gorm:"index"`
	PostedAt             time.Time       `gorm:"index"`
	OriginAccountID      string          `gorm:"type:char(36);index"`
	DestinationAccountID string          `gorm:"type:char(36);index"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,4);not null"` // 小數位數 = domain.AmountScale
	Type                 uint8
	Description          string `gorm:"size:255"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// Migrate 建立 / 更新資料表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

func toSQLAccount(a *domain.Account) sqlAccount {
	return sqlAccount{
		ID:          a.ID.String(),
		Name:        a.Name,
		Email:       a.Email,
		EmailKey:    domain.NormalizeEmail(a.Email),
		PhoneNumber: a.PhoneNumber,
		Address:     a.Address,
		Credential:  a.Credential,
		Balance:     a.Balance,
		Active:      a.Active,
	}
}

func (r *sqlAccount) toDomain(history []uuid.UUID) (*domain.Account, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = make([]uuid.UUID, 0)
	}
	return &domain.Account{
		ID:          id,
		Name:        r.Name,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
		Credential:  r.Credential,
		Balance:     r.Balance,
		Active:      r.Active,
		History:     history,
	}, nil
}

func toSQLTransaction(t *domain.Transaction) sqlTransaction {
	return sqlTransaction{
		ID:                   t.ID.String(),
		Sequence:             t.Sequence,
		PostedAt:             t.Timestamp.UTC(),
		OriginAccountID:      t.Origin.String(),
		DestinationAccountID: t.Destination.String(),
		Amount:               t.Amount,
		Type:                 uint8(t.Type),
		Description:          t.Description,
	}
}

func (r *sqlTransaction) toDomain() (*domain.Transaction, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	origin, err := uuid.Parse(r.OriginAccountID)
	if err != nil {
		return nil, err
	}
	destination, err := uuid.Parse(r.DestinationAccountID)
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		ID:          id,
		Sequence:    r.Sequence,
		Timestamp:   r.PostedAt.UTC(),
		Amount:      r.Amount,
		Type:        domain.TransactionType(r.Type),
		Description: r.Description,
		Origin:      origin,
		Destination: destination,
	}, nil
}
