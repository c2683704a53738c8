package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"babycare-backend/internal/models"

	"go.uber.org/zap"
)

// EventsRepository 设备事件仓库
type EventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventsRepository 创建事件仓库
func NewEventsRepository(db *sql.DB, logger *zap.Logger) *EventsRepository {
	return &EventsRepository{db: db, logger: logger}
}

// InsertEvent 写入事件，id 已存在时忽略（流消息可能重复投递）
// 返回是否真正插入
func (r *EventsRepository) InsertEvent(ctx context.Context, ev models.Event) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}

	query := `
		INSERT INTO events (id, device_id, type, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, ev.ID, ev.DeviceID, string(ev.Type), ev.Time.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListEventsSince 查询设备在 since 之后的事件，按时间升序
func (r *EventsRepository) ListEventsSince(ctx context.Context, deviceID string, since time.Time) ([]models.Event, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT id, device_id, type, occurred_at
		FROM events
		WHERE device_id = $1
		  AND occurred_at >= $2
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// ListRecentEvents 查询设备最近 limit 条事件，按时间倒序
func (r *EventsRepository) ListRecentEvents(ctx context.Context, deviceID string, limit int) ([]models.Event, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, device_id, type, occurred_at
		FROM events
		WHERE device_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// scanEvents 扫描结果集，类型不在枚举内的行跳过并记录告警
func (r *EventsRepository) scanEvents(rows *sql.Rows) ([]models.Event, error) {
	events := make([]models.Event, 0)
	for rows.Next() {
		var ev models.Event
		var rawType string
		if err := rows.Scan(&ev.ID, &ev.DeviceID, &rawType, &ev.Time); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		t, err := models.ParseEventType(rawType)
		if err != nil {
			r.logger.Warn("Skipping event with unknown type",
				zap.String("event_id", ev.ID),
				zap.String("event_type", rawType),
			)
			continue
		}
		ev.Type = t
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
