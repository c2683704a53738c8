package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"babycare-backend/internal/models"

	"go.uber.org/zap"
)

// DevicesRepository 设备仓库
type DevicesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDevicesRepository 创建设备仓库
func NewDevicesRepository(db *sql.DB, logger *zap.Logger) *DevicesRepository {
	return &DevicesRepository{db: db, logger: logger}
}

const deviceColumns = `device_id, name, serial_number, COALESCE(owner_id, ''), created_at`

// GetDevice 按 device_id 查询
func (r *DevicesRepository) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`
	return r.getOne(ctx, query, deviceID)
}

// GetDeviceBySerial 按序列号查询
func (r *DevicesRepository) GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE serial_number = $1`
	return r.getOne(ctx, query, serial)
}

func (r *DevicesRepository) getOne(ctx context.Context, query string, arg string) (*models.Device, error) {
	var d models.Device
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&d.DeviceID, &d.Name, &d.SerialNumber, &d.OwnerID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &d, nil
}

// UpsertDevice 注册或更新设备
func (r *DevicesRepository) UpsertDevice(ctx context.Context, d models.Device) error {
	if d.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	query := `
		INSERT INTO devices (device_id, name, serial_number, owner_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (device_id)
		DO UPDATE SET name = EXCLUDED.name,
		              serial_number = EXCLUDED.serial_number,
		              owner_id = COALESCE(EXCLUDED.owner_id, devices.owner_id)
	`
	if _, err := r.db.ExecContext(ctx, query, d.DeviceID, d.Name, d.SerialNumber, d.OwnerID); err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// ListDeviceIDs 全部设备 ID（stats worker 轮询使用）
func (r *DevicesRepository) ListDeviceIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT device_id FROM devices ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan device id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDevicesByUser 查询用户已配对的设备
func (r *DevicesRepository) ListDevicesByUser(ctx context.Context, userID string) ([]models.Device, error) {
	query := `
		SELECT d.device_id, d.name, d.serial_number, COALESCE(d.owner_id, ''), d.created_at
		FROM devices d
		JOIN connections c ON c.device_id = d.device_id
		WHERE c.user_id = $1
		ORDER BY c.created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user devices: %w", err)
	}
	defer rows.Close()

	devices := make([]models.Device, 0)
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.DeviceID, &d.Name, &d.SerialNumber, &d.OwnerID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
