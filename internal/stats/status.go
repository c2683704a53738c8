package stats

import (
	"time"

	"babycare-backend/internal/models"
)

// ReduceStatus 取每个状态族中最新的事件作为当前状态
// 时间相同时 ID 较大者胜出；某一族没有事件时使用默认值并以 now 作为时间
func ReduceStatus(events []models.Event, now time.Time) models.DeviceStatus {
	var position, crying, blanket *models.Event

	for i := range events {
		ev := &events[i]
		switch ev.Type {
		case models.EventSide, models.EventProne, models.EventSupine:
			position = newer(position, ev)
		case models.EventCrying, models.EventNoCrying:
			crying = newer(crying, ev)
		case models.EventBlanket, models.EventNoBlanket:
			blanket = newer(blanket, ev)
		}
	}

	status := models.DeviceStatus{
		Crying:   models.CryingStatus{IsDetected: false, Timestamp: now},
		Position: models.PositionStatus{Status: models.PositionSupine, Timestamp: now},
		Blanket:  models.BlanketStatus{IsDetected: true, Timestamp: now},
	}

	if position != nil {
		status.Position = models.PositionStatus{Status: positionOf(position.Type), Timestamp: position.Time}
	}
	if crying != nil {
		status.Crying = models.CryingStatus{IsDetected: crying.Type == models.EventCrying, Timestamp: crying.Time}
	}
	if blanket != nil {
		status.Blanket = models.BlanketStatus{IsDetected: blanket.Type == models.EventBlanket, Timestamp: blanket.Time}
	}
	return status
}

func newer(cur, cand *models.Event) *models.Event {
	if cur == nil {
		return cand
	}
	if cand.Time.After(cur.Time) {
		return cand
	}
	if cand.Time.Equal(cur.Time) && cand.ID > cur.ID {
		return cand
	}
	return cur
}

func positionOf(t models.EventType) models.Position {
	switch t {
	case models.EventSide:
		return models.PositionSide
	case models.EventProne:
		return models.PositionProne
	default:
		return models.PositionSupine
	}
}
