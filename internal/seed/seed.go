// Package seed 啟動時建立預設帳戶 (YAML)。
// 開戶金額以一筆 Deposit 入帳，所以帳本守恆在重啟後依然成立。
// 已存在的帳戶略過；若上次在開戶與入帳之間中斷 (餘額 0 且沒有任何交易)，補上開戶金額。
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// Account 種子帳戶
type Account struct {
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	PhoneNumber string `yaml:"phone_number"`
	Address     string `yaml:"address"`
	Password    string `yaml:"password"`
	Balance     string `yaml:"balance"` // 開戶金額，十進位字串
}

// File 種子檔格式
type File struct {
	Accounts []Account `yaml:"accounts"`
}

// PasswordHasher 將明文密碼轉為憑證
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Load 讀取並解析種子檔
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse 解析種子內容並檢查必填欄位
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, acc := range f.Accounts {
		if strings.TrimSpace(acc.Email) == "" || acc.Password == "" {
			return nil, fmt.Errorf("seed account #%d: email and password are required", i)
		}
		if _, err := acc.balance(); err != nil {
			return nil, fmt.Errorf("seed account #%d: %w", i, err)
		}
	}
	return &f, nil
}

func (a Account) balance() (decimal.Decimal, error) {
	if strings.TrimSpace(a.Balance) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(a.Balance))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q", a.Balance)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative balance %q", a.Balance)
	}
	return d, nil
}

// Apply 建立種子帳戶
//
// 回傳:
//
//	int: 本次新建的帳戶數
//	error: 雜湊或核心操作失敗 (帳戶已存在不算錯誤)
func Apply(ctx context.Context, core *usecase.CoreUseCase, hasher PasswordHasher, f *File, logger *zap.Logger) (int, error) {
	log := logger.Named("seed")
	created := 0
	for _, acc := range f.Accounts {
		credential, err := hasher.Hash(acc.Password)
		if err != nil {
			return created, fmt.Errorf("hash seed password: %w", err)
		}
		account, err := core.CreateAccount(ctx, domain.Profile{
			Name:        acc.Name,
			Email:       acc.Email,
			PhoneNumber: acc.PhoneNumber,
			Address:     acc.Address,
			Credential:  credential,
		})
		if errors.Is(err, domain.ErrAccountExists) {
			if err := resumeFunding(ctx, core, acc, log); err != nil {
				return created, err
			}
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create seed account: %w", err)
		}
		created++

		opening, _ := acc.balance()
		if opening.IsPositive() {
			if _, err := core.Deposit(ctx, account.ID, opening); err != nil {
				return created, fmt.Errorf("fund seed account: %w", err)
			}
		}
		log.Info("seed account created", zap.Stringer("account_id", account.ID), zap.Stringer("balance", opening))
	}
	return created, nil
}

// resumeFunding 帳戶已存在時，只在從未有過交易的情況下補入開戶金額
func resumeFunding(ctx context.Context, core *usecase.CoreUseCase, acc Account, log *zap.Logger) error {
	opening, _ := acc.balance()
	if !opening.IsPositive() {
		log.Debug("seed account already exists, skipping")
		return nil
	}
	existing, err := core.FindAccountByEmail(ctx, acc.Email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		// 電話與其他帳戶重複
		log.Warn("seed account conflicts with an existing phone number, skipping", zap.String("email", acc.Email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up seed account: %w", err)
	}
	if !existing.Balance.IsZero() || len(existing.History) > 0 {
		log.Debug("seed account already exists, skipping", zap.Stringer("account_id", existing.ID))
		return nil
	}
	if _, err := core.Deposit(ctx, existing.ID, opening); err != nil {
		return fmt.Errorf("fund seed account: %w", err)
	}
	log.Warn("seed account was left unfunded, opening balance deposited",
		zap.Stringer("account_id", existing.ID), zap.Stringer("balance", opening))
	return nil
}
