// Package credential 負責密碼雜湊與比對 (bcrypt)。
// 核心層只保存與傳遞雜湊值，不解讀內容。
package credential

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword 密碼不可為空
var ErrEmptyPassword = errors.New("password must not be empty")

// Hasher bcrypt 雜湊器
type Hasher struct {
	cost int
}

// NewHasher cost 為 0 時使用 bcrypt.DefaultCost
func NewHasher(cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash 產生密碼雜湊
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Match 比對儲存的雜湊與明文密碼，可直接作為 usecase.CredentialMatcher
func (h *Hasher) Match(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
}
