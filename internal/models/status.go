package models

import "time"

// Position 婴儿睡姿
type Position string

const (
	PositionSide   Position = "side"
	PositionProne  Position = "prone"
	PositionSupine Position = "supine"
)

// CryingStatus 哭闹状态
type CryingStatus struct {
	IsDetected bool      `json:"is_detected"`
	Timestamp  time.Time `json:"timestamp"`
}

// PositionStatus 睡姿状态
type PositionStatus struct {
	Status    Position  `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// BlanketStatus 被子覆盖状态，IsDetected=true 表示被子正常
type BlanketStatus struct {
	IsDetected bool      `json:"is_detected"`
	Timestamp  time.Time `json:"timestamp"`
}

// DeviceStatus 由事件列表推导的当前状态，不落库
type DeviceStatus struct {
	Crying   CryingStatus   `json:"crying"`
	Position PositionStatus `json:"position"`
	Blanket  BlanketStatus  `json:"blanket"`
}
