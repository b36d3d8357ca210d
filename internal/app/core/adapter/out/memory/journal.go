package memory

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/pkg/wal"
)

// Journal 記憶體儲存落地用的 append-only 紀錄 (通常是 *wal.WAL)
//
// 帳戶與交易必須寫入同一個 Journal：重放帳戶時需要知道哪些交易已提交
type Journal interface {
	Write(v any) error
	ReadAll(callback func(jsonRaw []byte) error) error
}

var _ Journal = (*wal.WAL)(nil)

// recordKind WAL 內的紀錄種類
// 帳戶與交易共用同一個 WAL 檔，各自只重放自己的種類
type recordKind string

const (
	recordKindAccount     recordKind = "account"
	recordKindTransaction recordKind = "transaction"
)

// walRecord WAL 的一行
type walRecord struct {
	Kind        recordKind          `json:"kind"`
	Account     *domain.Account     `json:"account,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// journal 寫入 WAL，j 為 nil 時不做事 (純記憶體模式)
func journal(j Journal, rec walRecord) error {
	if j == nil {
		return nil
	}
	if err := j.Write(rec); err != nil {
		return domain.ErrWALWriteFailed
	}
	return nil
}

// replay 從 WAL 檔案依序取出全部紀錄
func replay(j Journal, apply func(rec walRecord) error) error {
	if j == nil {
		return nil
	}
	return j.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		return apply(rec)
	})
}

// replayAccounts 依序重放帳戶快照，只採用已提交的狀態
//
// 過帳時先寫帳戶快照、最後才寫交易；快照的最後一筆 History 若對應的交易
// 始終沒有出現，表示該次過帳中途失敗，快照不可套用。
// 帳戶在過帳期間持有鎖，因此待定快照之後不會出現同帳戶的其他快照，
// 交易出現時直接套用即可。
func replayAccounts(j Journal, put func(*domain.Account)) error {
	committed := make(map[uuid.UUID]struct{})
	pending := make(map[uuid.UUID][]*domain.Account)
	return replay(j, func(rec walRecord) error {
		switch rec.Kind {
		case recordKindTransaction:
			if rec.Transaction == nil {
				return nil
			}
			id := rec.Transaction.ID
			committed[id] = struct{}{}
			for _, account := range pending[id] {
				put(account)
			}
			delete(pending, id)
		case recordKindAccount:
			if rec.Account == nil {
				return nil
			}
			history := rec.Account.History
			if len(history) == 0 {
				put(rec.Account)
				return nil
			}
			last := history[len(history)-1]
			if _, ok := committed[last]; ok {
				put(rec.Account)
				return nil
			}
			pending[last] = append(pending[last], rec.Account)
		}
		return nil
	})
}
