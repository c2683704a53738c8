package repository

import (
	"context"
	"database/sql"
	"fmt"

	"babycare-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConnectionsRepository 用户-设备配对仓库
type ConnectionsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConnectionsRepository 创建配对仓库
func NewConnectionsRepository(db *sql.DB, logger *zap.Logger) *ConnectionsRepository {
	return &ConnectionsRepository{db: db, logger: logger}
}

// CreateConnection 创建配对，同一用户重复配对同一设备时返回已有记录
func (r *ConnectionsRepository) CreateConnection(ctx context.Context, userID, deviceID string) (*models.Connection, error) {
	if userID == "" || deviceID == "" {
		return nil, fmt.Errorf("user_id and device_id are required")
	}

	query := `
		INSERT INTO connections (connection_id, user_id, device_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, device_id)
		DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING connection_id, user_id, device_id, created_at
	`
	var c models.Connection
	err := r.db.QueryRowContext(ctx, query, uuid.New().String(), userID, deviceID).
		Scan(&c.ConnectionID, &c.UserID, &c.DeviceID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	return &c, nil
}

// DeleteConnection 解除配对
func (r *ConnectionsRepository) DeleteConnection(ctx context.Context, userID, deviceID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE user_id = $1 AND device_id = $2`, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
