package service

import (
	"context"
	"fmt"
	"time"

	"babycare-backend/internal/metrics"
	"babycare-backend/internal/models"

	"go.uber.org/zap"
)

// DeviceLister 设备列表
type DeviceLister interface {
	ListDeviceIDs(ctx context.Context) ([]string, error)
}

// SnapshotWriter 快照写入
type SnapshotWriter interface {
	Put(ctx context.Context, snap *models.DeviceSnapshot) error
}

// cachedLister 可选：能列出已缓存快照的 writer
type cachedLister interface {
	CachedDeviceIDs(ctx context.Context) ([]string, error)
}

// StatsWorker 定时为全部设备预计算快照
type StatsWorker struct {
	devices  DeviceLister
	stats    *StatisticsService
	writer   SnapshotWriter
	interval time.Duration
	logger   *zap.Logger
}

// NewStatsWorker 创建统计任务
func NewStatsWorker(devices DeviceLister, stats *StatisticsService, writer SnapshotWriter, interval time.Duration, logger *zap.Logger) *StatsWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatsWorker{
		devices:  devices,
		stats:    stats,
		writer:   writer,
		interval: interval,
		logger:   logger,
	}
}

// Start 启动轮询，阻塞到 ctx 取消
func (w *StatsWorker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting stats worker", zap.Duration("interval", w.interval))

	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("Failed to refresh snapshots on startup", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Failed to refresh snapshots", zap.Error(err))
			}
		}
	}
}

// RunOnce 刷新一轮全部设备的快照
func (w *StatsWorker) RunOnce(ctx context.Context) error {
	deviceIDs, err := w.devices.ListDeviceIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	successCount := 0
	errorCount := 0
	for _, deviceID := range deviceIDs {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		snap, err := w.stats.Compute(ctx, deviceID)
		if err != nil {
			// 保留缓存中上一次的快照
			w.logger.Warn("Skipping snapshot, events unavailable",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			errorCount++
			continue
		}
		if err := w.writer.Put(ctx, snap); err != nil {
			w.logger.Error("Failed to write snapshot",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			errorCount++
			continue
		}
		successCount++
	}

	w.logger.Info("Snapshots refreshed",
		zap.Int("success_count", successCount),
		zap.Int("error_count", errorCount),
	)

	if lister, ok := w.writer.(cachedLister); ok {
		cached, err := lister.CachedDeviceIDs(ctx)
		if err != nil {
			w.logger.Warn("Failed to count cached snapshots", zap.Error(err))
		} else {
			metrics.SetCachedSnapshots(len(cached))
		}
	}
	return nil
}
