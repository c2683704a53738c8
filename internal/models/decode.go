package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// 毫秒时间戳阈值：大于该值的数字按毫秒解析
const unixMilliThreshold = 1e12

// DecodeEvent 把松散结构的事件文档（MQTT 负载、旧库导出等）转换为 Event
// 兼容 device_id/deviceId、time/timestamp/created_at，以及 RFC3339、秒/毫秒时间戳、
// {"seconds":..,"nanoseconds":..} 形式的时间
func DecodeEvent(doc map[string]any) (Event, error) {
	ev := Event{
		ID:       EventID(doc),
		DeviceID: stringField(doc, "device_id", "deviceId"),
	}

	rawType := stringField(doc, "type", "event_type", "eventType")
	t, err := ParseEventType(rawType)
	if err != nil {
		return Event{}, err
	}
	ev.Type = t

	for _, key := range []string{"time", "timestamp", "created_at", "createdAt"} {
		raw, ok := doc[key]
		if !ok || raw == nil {
			continue
		}
		ts, err := ParseTime(raw)
		if err != nil {
			return Event{}, fmt.Errorf("%w: field %s: %v", ErrInvalidEvent, key, err)
		}
		ev.Time = ts
		break
	}

	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// EventID 文档中的事件 ID（兼容数字与别名），缺省为空串
func EventID(doc map[string]any) string {
	return stringField(doc, "id", "event_id", "eventId")
}

// DecodeDevice 转换设备文档
func DecodeDevice(doc map[string]any) (Device, error) {
	d := Device{
		DeviceID:     stringField(doc, "device_id", "deviceId", "id"),
		Name:         stringField(doc, "name", "device_name"),
		SerialNumber: stringField(doc, "serial_number", "serialNumber"),
		OwnerID:      stringField(doc, "owner_id", "ownerId", "user_id", "userId"),
	}
	if d.DeviceID == "" {
		return Device{}, fmt.Errorf("%w: device_id is required", ErrInvalidEvent)
	}
	if raw, ok := doc["created_at"]; ok && raw != nil {
		ts, err := ParseTime(raw)
		if err != nil {
			return Device{}, fmt.Errorf("%w: created_at: %v", ErrInvalidEvent, err)
		}
		d.CreatedAt = ts
	}
	return d, nil
}

// DecodeConnection 转换配对关系文档
func DecodeConnection(doc map[string]any) (Connection, error) {
	c := Connection{
		ConnectionID: stringField(doc, "connection_id", "connectionId", "id"),
		UserID:       stringField(doc, "user_id", "userId"),
		DeviceID:     stringField(doc, "device_id", "deviceId"),
	}
	if c.UserID == "" || c.DeviceID == "" {
		return Connection{}, fmt.Errorf("%w: user_id and device_id are required", ErrInvalidEvent)
	}
	if raw, ok := doc["created_at"]; ok && raw != nil {
		ts, err := ParseTime(raw)
		if err != nil {
			return Connection{}, fmt.Errorf("%w: created_at: %v", ErrInvalidEvent, err)
		}
		c.CreatedAt = ts
	}
	return c, nil
}

// ParseTime 解析多种时间表示
func ParseTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, fmt.Errorf("empty time")
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("unsupported time format %q", s)
		}
		return fromUnixNumber(f)
	case float64:
		return fromUnixNumber(v)
	case float32:
		return fromUnixNumber(float64(v))
	case int:
		return fromUnixNumber(float64(v))
	case int64:
		return fromUnixNumber(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, err
		}
		return fromUnixNumber(f)
	case map[string]any:
		secRaw, ok := v["seconds"]
		if !ok {
			secRaw, ok = v["_seconds"]
		}
		if !ok {
			return time.Time{}, fmt.Errorf("timestamp object without seconds")
		}
		sec, err := toFloat(secRaw)
		if err != nil {
			return time.Time{}, err
		}
		var nanos float64
		if nRaw, ok := v["nanoseconds"]; ok {
			nanos, _ = toFloat(nRaw)
		} else if nRaw, ok := v["_nanoseconds"]; ok {
			nanos, _ = toFloat(nRaw)
		}
		return time.Unix(int64(sec), int64(nanos)), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time type %T", raw)
	}
}

func fromUnixNumber(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, fmt.Errorf("invalid unix time %v", f)
	}
	if f > unixMilliThreshold {
		return time.UnixMilli(int64(f)), nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported number type %T", raw)
	}
}

func stringField(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		raw, ok := doc[k]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			if v != "" {
				return strings.TrimSpace(v)
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
