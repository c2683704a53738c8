package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"babycare-backend/internal/export"
	"babycare-backend/internal/metrics"
	"babycare-backend/internal/models"
	"babycare-backend/internal/stats"
	"babycare-backend/internal/subscription"

	"go.uber.org/zap"
)

// StatisticsProvider 设备状态与统计
type StatisticsProvider interface {
	Status(ctx context.Context, deviceID string) models.DeviceStatus
	Snapshot(ctx context.Context, deviceID string) *models.DeviceSnapshot
	Params() stats.Params
}

// EventLister 最近事件查询
type EventLister interface {
	ListRecentEvents(ctx context.Context, deviceID string, limit int) ([]models.Event, error)
}

// EventSubscriber 实时事件订阅
type EventSubscriber interface {
	Subscribe(deviceID string, fn subscription.Callback) subscription.Unsubscribe
	Count(deviceID string) int
}

// DeviceHandler 设备状态、统计与事件接口
type DeviceHandler struct {
	stats     StatisticsProvider
	events    EventLister
	hub       EventSubscriber
	keepAlive time.Duration
	logger    *zap.Logger
}

func NewDeviceHandler(stats StatisticsProvider, events EventLister, hub EventSubscriber, keepAlive time.Duration, logger *zap.Logger) *DeviceHandler {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &DeviceHandler{
		stats:     stats,
		events:    events,
		hub:       hub,
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// GET /api/v1/devices/{id}/status
func (h *DeviceHandler) GetStatus(w http.ResponseWriter, r *http.Request, deviceID string) {
	writeJSON(w, http.StatusOK, Ok(h.stats.Status(r.Context(), deviceID)))
}

// GET /api/v1/devices/{id}/statistics
func (h *DeviceHandler) GetStatistics(w http.ResponseWriter, r *http.Request, deviceID string) {
	writeJSON(w, http.StatusOK, Ok(h.stats.Snapshot(r.Context(), deviceID).Statistics))
}

// GET /api/v1/devices/{id}/statistics/export
func (h *DeviceHandler) ExportStatistics(w http.ResponseWriter, r *http.Request, deviceID string) {
	snap := h.stats.Snapshot(r.Context(), deviceID)
	loc := h.stats.Params().Location
	generatedAt := time.UnixMilli(snap.GeneratedAt)

	data, err := export.GenerateStatisticsWorkbook(export.Report{
		DeviceID:    deviceID,
		GeneratedAt: generatedAt,
		Location:    loc,
		Statistics:  snap.Statistics,
	})
	if err != nil {
		h.logger.Error("Failed to generate statistics workbook",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("babycare-%s-%s.xlsx", deviceID, generatedAt.In(loc).Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GET /api/v1/devices/{id}/events?limit=
// 查询失败时返回空列表
func (h *DeviceHandler) GetEvents(w http.ResponseWriter, r *http.Request, deviceID string) {
	limit := parseInt(r.URL.Query().Get("limit"), 0)

	events, err := h.events.ListRecentEvents(r.Context(), deviceID, limit)
	if err != nil {
		h.logger.Warn("Failed to list events, returning empty list",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

// GET /api/v1/devices/{id}/events/stream
// Server-Sent Events：先推送当前状态，之后每个新事件推送 event 与最新 status
func (h *DeviceHandler) StreamEvents(w http.ResponseWriter, r *http.Request, deviceID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, Fail("streaming unsupported"))
		return
	}
	ctx := r.Context()

	incoming := make(chan models.Event, 16)
	unsubscribe := h.hub.Subscribe(deviceID, func(ev models.Event) {
		select {
		case incoming <- ev:
		default:
			h.logger.Warn("Dropping event for slow stream client",
				zap.String("device_id", deviceID),
				zap.String("event_id", ev.ID),
			)
		}
	})
	defer unsubscribe()

	metrics.StreamOpened()
	defer metrics.StreamClosed()
	h.logger.Debug("Event stream opened",
		zap.String("device_id", deviceID),
		zap.Int("device_streams", h.hub.Count(deviceID)),
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "status", h.stats.Status(ctx, deviceID)); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-incoming:
			if err := writeSSE(w, "event", ev); err != nil {
				return
			}
			if err := writeSSE(w, "status", h.stats.Status(ctx, deviceID)); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
