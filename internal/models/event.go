package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownEventType 事件类型不在枚举范围内
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrInvalidEvent 事件文档缺少必填字段或字段格式错误
	ErrInvalidEvent = errors.New("invalid event")
)

// EventType 设备上报的事件类型（封闭枚举）
type EventType string

const (
	EventSide      EventType = "Side"
	EventProne     EventType = "Prone"
	EventSupine    EventType = "Supine"
	EventBlanket   EventType = "Blanket"
	EventNoBlanket EventType = "NoBlanket"
	EventCrying    EventType = "Crying"
	EventNoCrying  EventType = "NoCrying"
)

// AllEventTypes 全部事件类型
var AllEventTypes = []EventType{
	EventSide, EventProne, EventSupine,
	EventBlanket, EventNoBlanket,
	EventCrying, EventNoCrying,
}

// ParseEventType 严格解析事件类型
func ParseEventType(s string) (EventType, error) {
	for _, t := range AllEventTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
}

// IsBadPosition 侧卧、俯卧计入"姿势不当"
func (t EventType) IsBadPosition() bool {
	return t == EventSide || t == EventProne
}

// IsCrying 只有 Crying 计入哭闹统计
func (t EventType) IsCrying() bool {
	return t == EventCrying
}

// IsAlert 需要推送通知的事件类型
func (t EventType) IsAlert() bool {
	switch t {
	case EventCrying, EventSide, EventProne, EventNoBlanket:
		return true
	}
	return false
}

// Event 设备事件，创建后不可变
type Event struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	Type     EventType `json:"type"`
	Time     time.Time `json:"time"`
}

// Validate 检查必填字段
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if e.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidEvent)
	}
	if _, err := ParseEventType(string(e.Type)); err != nil {
		return err
	}
	if e.Time.IsZero() {
		return fmt.Errorf("%w: time is required", ErrInvalidEvent)
	}
	return nil
}

// Category 统计分类
type Category string

const (
	CategoryBadPosition Category = "bad_position"
	CategoryCrying      Category = "crying"
)

// FilterCategory 返回属于指定分类的事件（保持原顺序）
func FilterCategory(events []Event, c Category) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		switch c {
		case CategoryBadPosition:
			if e.Type.IsBadPosition() {
				out = append(out, e)
			}
		case CategoryCrying:
			if e.Type.IsCrying() {
				out = append(out, e)
			}
		}
	}
	return out
}

// FilterWindow 返回 time ∈ [start, end) 的事件
func FilterWindow(events []Event, start, end time.Time) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Time.Before(start) && e.Time.Before(end) {
			out = append(out, e)
		}
	}
	return out
}
