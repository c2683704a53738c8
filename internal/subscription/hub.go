package subscription

import (
	"sync"

	"babycare-backend/internal/models"
)

// Callback 收到设备新事件时调用；不应阻塞
type Callback func(models.Event)

// Unsubscribe 取消订阅，可重复调用
type Unsubscribe func()

// Hub 按设备分发实时事件
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Callback
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]Callback)}
}

// Subscribe 订阅设备事件
func (h *Hub) Subscribe(deviceID string, fn Callback) Unsubscribe {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[deviceID] == nil {
		h.subs[deviceID] = make(map[uint64]Callback)
	}
	h.subs[deviceID][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[deviceID], id)
			if len(h.subs[deviceID]) == 0 {
				delete(h.subs, deviceID)
			}
		})
	}
}

// Publish 把事件分发给该设备的所有订阅者，返回分发数量
// 回调在锁外执行，回调内可以安全地取消订阅
func (h *Hub) Publish(ev models.Event) int {
	h.mu.RLock()
	callbacks := make([]Callback, 0, len(h.subs[ev.DeviceID]))
	for _, fn := range h.subs[ev.DeviceID] {
		callbacks = append(callbacks, fn)
	}
	h.mu.RUnlock()

	for _, fn := range callbacks {
		fn(ev)
	}
	return len(callbacks)
}

// Count 设备当前订阅者数量
func (h *Hub) Count(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[deviceID])
}
