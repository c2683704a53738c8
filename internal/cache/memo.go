package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultCleanupInterval 清理周期
	DefaultCleanupInterval = 10 * time.Minute
	// DefaultMaxEntries 清理后保留的最大条目数
	DefaultMaxEntries = 1000
)

type entry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time // zero = 不过期
}

// Memo 进程内的查询结果缓存
// 写入时不做容量控制，由定时清理删除过期条目并把条目数裁剪到 maxEntries（先删最早写入的）
type Memo[V any] struct {
	mu         sync.RWMutex
	items      map[string]entry[V]
	maxEntries int
	interval   time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewMemo 创建缓存，maxEntries/interval 非正数时使用默认值
func NewMemo[V any](maxEntries int, interval time.Duration, logger *zap.Logger) *Memo[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &Memo[V]{
		items:      make(map[string]entry[V]),
		maxEntries: maxEntries,
		interval:   interval,
		now:        time.Now,
		logger:     logger,
	}
}

// Get 读取未过期的条目
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero V
	e, ok := m.items[key]
	if !ok {
		return zero, false
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Set 写入条目，ttl <= 0 表示不过期
func (m *Memo[V]) Set(key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := entry[V]{value: value, storedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.items[key] = e
}

// Delete 删除条目
func (m *Memo[V]) Delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Len 当前条目数（含已过期但尚未清理的）
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Cleanup 删除过期条目并裁剪容量，返回删除数量
func (m *Memo[V]) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.items {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.items, k)
			removed++
		}
	}

	overflow := len(m.items) - m.maxEntries
	if overflow <= 0 {
		return removed
	}

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m.items[keys[i]].storedAt.Before(m.items[keys[j]].storedAt)
	})
	for _, k := range keys[:overflow] {
		delete(m.items, k)
	}
	return removed + overflow
}

// Run 周期性清理，直到 ctx 取消
func (m *Memo[V]) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Cleanup(); removed > 0 {
				m.logger.Debug("Memo cache cleaned",
					zap.Int("removed", removed),
					zap.Int("remaining", m.Len()),
				)
			}
		}
	}
}
