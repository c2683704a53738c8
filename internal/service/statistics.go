package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"babycare-backend/internal/cache"
	"babycare-backend/internal/metrics"
	"babycare-backend/internal/models"
	"babycare-backend/internal/stats"
	"babycare-backend/internal/store"

	"go.uber.org/zap"
)

// EventSource 事件查询
type EventSource interface {
	ListEventsSince(ctx context.Context, deviceID string, since time.Time) ([]models.Event, error)
}

// SnapshotStore 设备快照缓存
type SnapshotStore interface {
	Get(ctx context.Context, deviceID string) (*models.DeviceSnapshot, error)
	Put(ctx context.Context, snap *models.DeviceSnapshot) error
}

// StatisticsService 取数并计算设备状态与统计
// 取数失败时记录日志并按空事件列表计算，调用方总能拿到结果
type StatisticsService struct {
	events    EventSource
	memo      *cache.Memo[[]models.Event]
	memoTTL   time.Duration
	snapshots SnapshotStore
	params    stats.Params
	logger    *zap.Logger
	now       func() time.Time
}

// NewStatisticsService memo 与 snapshots 均可为 nil
func NewStatisticsService(
	events EventSource,
	memo *cache.Memo[[]models.Event],
	memoTTL time.Duration,
	snapshots SnapshotStore,
	params stats.Params,
	logger *zap.Logger,
) *StatisticsService {
	return &StatisticsService{
		events:    events,
		memo:      memo,
		memoTTL:   memoTTL,
		snapshots: snapshots,
		params:    params.Normalize(),
		logger:    logger,
		now:       time.Now,
	}
}

// Params 当前统计参数
func (s *StatisticsService) Params() stats.Params {
	return s.params
}

// LookbackStart 统计所需的最早事件时间：关联曲线首日零点与 now-24h 中较早者
func LookbackStart(now time.Time, p stats.Params) time.Time {
	p = p.Normalize()
	since := stats.StartOfDay(now, p.Location).AddDate(0, 0, -(p.CorrelationDays - 1))
	if trailing := now.Add(-24 * time.Hour); trailing.Before(since) {
		since = trailing
	}
	return since
}

// 事件来源，作为统计指标的 source 标签
const (
	sourceMemo     = "memo"
	sourceDatabase = "database"
	sourceCache    = "cache"
)

// fetchEvents 取设备事件（先查进程内缓存），同时返回数据来源
func (s *StatisticsService) fetchEvents(ctx context.Context, deviceID string) ([]models.Event, string, error) {
	if s.memo != nil {
		if events, ok := s.memo.Get(deviceID); ok {
			return events, sourceMemo, nil
		}
	}

	events, err := s.events.ListEventsSince(ctx, deviceID, LookbackStart(s.now(), s.params))
	if err != nil {
		return nil, sourceDatabase, fmt.Errorf("failed to list events: %w", err)
	}

	if s.memo != nil {
		s.memo.Set(deviceID, events, s.memoTTL)
		metrics.SetMemoCacheEntries(s.memo.Len())
	}
	return events, sourceDatabase, nil
}

// Events 取设备事件，失败时返回空列表
func (s *StatisticsService) Events(ctx context.Context, deviceID string) []models.Event {
	events, _, err := s.fetchEvents(ctx, deviceID)
	if err != nil {
		s.logger.Error("Failed to fetch events, using empty list",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return []models.Event{}
	}
	return events
}

// Invalidate 丢弃设备的进程内缓存（收到新事件时调用）
func (s *StatisticsService) Invalidate(deviceID string) {
	if s.memo != nil {
		s.memo.Delete(deviceID)
	}
}

// Status 设备当前状态
func (s *StatisticsService) Status(ctx context.Context, deviceID string) models.DeviceStatus {
	return stats.ReduceStatus(s.Events(ctx, deviceID), s.now())
}

// Compute 重新计算设备快照，不读写快照缓存
// 取数失败时仍返回按空列表计算的快照，同时返回 error，调用方不应缓存该快照
func (s *StatisticsService) Compute(ctx context.Context, deviceID string) (*models.DeviceSnapshot, error) {
	start := time.Now()
	now := s.now()

	result := metrics.ResultSuccess
	events, source, err := s.fetchEvents(ctx, deviceID)
	if err != nil {
		result = metrics.ResultError
		s.logger.Error("Failed to fetch events, computing empty snapshot",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		events = []models.Event{}
	}

	snap := &models.DeviceSnapshot{
		DeviceID:    deviceID,
		Status:      stats.ReduceStatus(events, now),
		Statistics:  stats.BuildStatistics(events, now, s.params),
		EventCount:  len(events),
		GeneratedAt: now.UnixMilli(),
	}
	metrics.ObserveStatistics(source, result, time.Since(start))
	return snap, err
}

// Snapshot 优先读取快照缓存，未命中时计算并回写（取数失败的结果不回写）
func (s *StatisticsService) Snapshot(ctx context.Context, deviceID string) *models.DeviceSnapshot {
	if s.snapshots != nil {
		start := time.Now()
		snap, err := s.snapshots.Get(ctx, deviceID)
		switch {
		case err == nil:
			metrics.ObserveStatistics(sourceCache, metrics.ResultSuccess, time.Since(start))
			return snap
		case !errors.Is(err, store.ErrMiss):
			metrics.ObserveStatistics(sourceCache, metrics.ResultError, time.Since(start))
			s.logger.Warn("Failed to read snapshot cache",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
	}

	snap, err := s.Compute(ctx, deviceID)
	if err != nil || s.snapshots == nil {
		return snap
	}
	if err := s.snapshots.Put(ctx, snap); err != nil {
		s.logger.Warn("Failed to write snapshot cache",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	return snap
}

// Statistics 设备统计数据
func (s *StatisticsService) Statistics(ctx context.Context, deviceID string) models.StatisticsData {
	return s.Snapshot(ctx, deviceID).Statistics
}
