package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// shardCount 交易分片數量，Append 只鎖單一分片
const shardCount = 32

type shard struct {
	mu    sync.Mutex
	items []*domain.Transaction
}

// accountIndex 單一帳戶的交易索引
type accountIndex struct {
	mu    sync.Mutex
	items []*domain.Transaction
}

// TransactionLog 只能追加的交易紀錄
//
// 結構:
//
//	shards: 依交易 ID 分片儲存，避免全域鎖
//	byAccount: 帳戶 ID -> *accountIndex，查詢歷史時不用掃全部分片
//	journal: Write-Ahead Log (可為 nil)
type TransactionLog struct {
	shards    [shardCount]shard
	byAccount sync.Map
	journal   Journal
}

// NewTransactionLog 建立交易紀錄，並從 WAL 重放既有交易
func NewTransactionLog(journal Journal) (*TransactionLog, error) {
	l := &TransactionLog{journal: journal}
	err := replay(journal, func(rec walRecord) error {
		if rec.Kind == recordKindTransaction && rec.Transaction != nil {
			l.insert(rec.Transaction)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Append 追加交易 (先寫 WAL 再寫記憶體)
func (l *TransactionLog) Append(ctx context.Context, tran *domain.Transaction) error {
	if err := journal(l.journal, walRecord{Kind: recordKindTransaction, Transaction: tran}); err != nil {
		return err
	}
	l.insert(tran.Clone())
	return nil
}

// ListByAccount 取得帳戶相關交易，依 Timestamp、Sequence 遞增
func (l *TransactionLog) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Transaction, error) {
	v, ok := l.byAccount.Load(accountID)
	if !ok {
		return []*domain.Transaction{}, nil
	}
	idx := v.(*accountIndex)

	idx.mu.Lock()
	list := cloneAll(idx.items)
	idx.mu.Unlock()

	sortTransactions(list)
	return list, nil
}

// ListAll 取得全部交易，依 Timestamp、Sequence 遞增
func (l *TransactionLog) ListAll(ctx context.Context) ([]*domain.Transaction, error) {
	list := make([]*domain.Transaction, 0)
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		list = append(list, cloneAll(s.items)...)
		s.mu.Unlock()
	}
	sortTransactions(list)
	return list, nil
}

// insert 寫入分片與帳戶索引
func (l *TransactionLog) insert(tran *domain.Transaction) {
	s := &l.shards[int(tran.ID[0])%shardCount]
	s.mu.Lock()
	s.items = append(s.items, tran)
	s.mu.Unlock()

	for _, id := range []uuid.UUID{tran.Origin, tran.Destination} {
		if id == domain.ExternalAccount {
			continue
		}
		v, _ := l.byAccount.LoadOrStore(id, &accountIndex{})
		idx := v.(*accountIndex)
		idx.mu.Lock()
		idx.items = append(idx.items, tran)
		idx.mu.Unlock()
	}
}

func cloneAll(items []*domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, len(items))
	for i, tran := range items {
		out[i] = tran.Clone()
	}
	return out
}

func sortTransactions(list []*domain.Transaction) {
	slices.SortFunc(list, func(a, b *domain.Transaction) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
}

var _ usecase.TransactionLog = (*TransactionLog)(nil)
