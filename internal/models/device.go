package models

import "time"

// Device 摄像头/传感器设备
type Device struct {
	DeviceID     string    `json:"device_id"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number"`
	OwnerID      string    `json:"owner_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Connection 用户与设备的配对关系
type Connection struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	DeviceID     string    `json:"device_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// PushToken 用户设备的推送令牌
type PushToken struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
