// Package keylock 提供以 key 為單位的互斥鎖表。
// 同一個 key 的 read-modify-write 會被序列化，不同 key 可並行。
package keylock

import (
	"slices"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table 鎖表，沒有人持有的 key 會被回收
type Table[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
	compare func(a, b K) int
}

// New 建立鎖表，compare 決定多個 key 的上鎖順序 (避免死鎖)
func New[K comparable](compare func(a, b K) int) *Table[K] {
	return &Table[K]{
		entries: make(map[K]*entry),
		compare: compare,
	}
}

// Lock 依固定順序鎖住所有 key，重複的 key 只鎖一次
// 回傳的 unlock 必須呼叫且只能呼叫一次
func (t *Table[K]) Lock(keys ...K) (unlock func()) {
	ordered := slices.Clone(keys)
	slices.SortFunc(ordered, t.compare)
	ordered = slices.CompactFunc(ordered, func(a, b K) bool { return t.compare(a, b) == 0 })

	held := make([]*entry, 0, len(ordered))
	for _, key := range ordered {
		e := t.acquire(key)
		e.mu.Lock()
		held = append(held, e)
	}

	return func() {
		// 反向釋放
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			t.release(ordered[i], held[i])
		}
	}
}

// Len 目前表內的 key 數量 (測試與監控用)
func (t *Table[K]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table[K]) acquire(key K) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	e.refs++
	return e
}

func (t *Table[K]) release(key K, e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
}
