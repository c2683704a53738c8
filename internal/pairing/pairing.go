// Package pairing 处理 App 扫码后的用户与设备配对
package pairing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"babycare-backend/internal/models"
	"babycare-backend/internal/repository"

	"go.uber.org/zap"
)

const (
	// Scheme 二维码中的 URL scheme
	Scheme = "babycare"
	// deviceParam 二维码 URL 中携带设备 ID 的参数
	deviceParam = "device"
)

var (
	// ErrInvalidPayload 二维码内容无法识别
	ErrInvalidPayload = errors.New("invalid pairing payload")
	// ErrDeviceNotFound 设备从未上报过
	ErrDeviceNotFound = errors.New("device not found")
)

// ParsePayload 从二维码内容中取出设备 ID
// 支持 babycare://pair?device=<id> 以及直接印在二维码上的设备 ID
func ParsePayload(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	if !strings.Contains(payload, "://") {
		if strings.ContainsAny(payload, " /?&=#") {
			return "", fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
		}
		return payload, nil
	}

	u, err := url.Parse(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if u.Scheme != Scheme || u.Host != "pair" {
		return "", fmt.Errorf("%w: unexpected target %s://%s", ErrInvalidPayload, u.Scheme, u.Host)
	}
	deviceID := strings.TrimSpace(u.Query().Get(deviceParam))
	if deviceID == "" {
		return "", fmt.Errorf("%w: missing %s parameter", ErrInvalidPayload, deviceParam)
	}
	return deviceID, nil
}

// DeviceLookup 设备查询
type DeviceLookup interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
}

// ConnectionStore 配对关系存储
type ConnectionStore interface {
	CreateConnection(ctx context.Context, userID, deviceID string) (*models.Connection, error)
	DeleteConnection(ctx context.Context, userID, deviceID string) error
}

// Service 配对服务
type Service struct {
	devices     DeviceLookup
	connections ConnectionStore
	logger      *zap.Logger
}

// NewService 创建配对服务
func NewService(devices DeviceLookup, connections ConnectionStore, logger *zap.Logger) *Service {
	return &Service{devices: devices, connections: connections, logger: logger}
}

// Pair 解析二维码并建立配对，同一用户重复扫码返回已有配对
func (s *Service) Pair(ctx context.Context, userID, payload string) (*models.Connection, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidPayload)
	}

	deviceID, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}

	if _, err := s.devices.GetDevice(ctx, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	conn, err := s.connections.CreateConnection(ctx, userID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	s.logger.Info("Device paired",
		zap.String("user_id", userID),
		zap.String("device_id", deviceID),
		zap.String("connection_id", conn.ConnectionID),
	)
	return conn, nil
}

// Unpair 解除配对
func (s *Service) Unpair(ctx context.Context, userID, deviceID string) error {
	if err := s.connections.DeleteConnection(ctx, userID, deviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	s.logger.Info("Device unpaired",
		zap.String("user_id", userID),
		zap.String("device_id", deviceID),
	)
	return nil
}
