package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"babycare-backend/internal/models"

	"go.uber.org/zap"
)

const (
	snapshotKeyPrefix = "babycare:device:"
	snapshotKeySuffix = ":snapshot"
)

// DefaultSnapshotTTL 统计快照默认有效期
const DefaultSnapshotTTL = 60 * time.Second

// SnapshotKey 设备统计快照的缓存键
func SnapshotKey(deviceID string) string {
	return snapshotKeyPrefix + deviceID + snapshotKeySuffix
}

// SnapshotCache 设备统计快照缓存（stats worker 写入，API 读取）
type SnapshotCache struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotCache 创建快照缓存
func NewSnapshotCache(kv KV, ttl time.Duration, logger *zap.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotCache{kv: kv, ttl: ttl, logger: logger}
}

// Put 写入快照
func (c *SnapshotCache) Put(ctx context.Context, snap *models.DeviceSnapshot) error {
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := SnapshotKey(snap.DeviceID)
	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated device snapshot cache",
		zap.String("device_id", snap.DeviceID),
		zap.String("key", key),
	)
	return nil
}

// Get 读取快照，不存在时返回 ErrMiss
func (c *SnapshotCache) Get(ctx context.Context, deviceID string) (*models.DeviceSnapshot, error) {
	raw, err := c.kv.Get(ctx, SnapshotKey(deviceID))
	if err != nil {
		return nil, err
	}

	var snap models.DeviceSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Invalidate 删除快照（新事件写入后调用）
func (c *SnapshotCache) Invalidate(ctx context.Context, deviceID string) error {
	if err := c.kv.Del(ctx, SnapshotKey(deviceID)); err != nil && !errors.Is(err, ErrMiss) {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}

// CachedDeviceIDs 扫描当前有快照的设备
func (c *SnapshotCache) CachedDeviceIDs(ctx context.Context) ([]string, error) {
	keys, err := c.kv.ScanKeys(ctx, snapshotKeyPrefix+"*"+snapshotKeySuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(key, snapshotKeyPrefix), snapshotKeySuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
