package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// PushTokensRepository 推送令牌仓库
type PushTokensRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPushTokensRepository 创建推送令牌仓库
func NewPushTokensRepository(db *sql.DB, logger *zap.Logger) *PushTokensRepository {
	return &PushTokensRepository{db: db, logger: logger}
}

// SaveToken 保存令牌；令牌换了用户时归属新用户
func (r *PushTokensRepository) SaveToken(ctx context.Context, userID, token, platform string) error {
	if userID == "" || token == "" {
		return fmt.Errorf("user_id and token are required")
	}
	query := `
		INSERT INTO push_tokens (token, user_id, platform, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (token)
		DO UPDATE SET user_id = EXCLUDED.user_id,
		              platform = EXCLUDED.platform,
		              updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, token, userID, platform); err != nil {
		return fmt.Errorf("failed to save push token: %w", err)
	}
	return nil
}

// TokensForDevice 查询与设备配对的所有用户的推送令牌
func (r *PushTokensRepository) TokensForDevice(ctx context.Context, deviceID string) ([]string, error) {
	query := `
		SELECT DISTINCT t.token
		FROM push_tokens t
		JOIN connections c ON c.user_id = t.user_id
		WHERE c.device_id = $1
		ORDER BY t.token
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// DeleteTokens 删除推送服务判定为失效的令牌
func (r *PushTokensRepository) DeleteTokens(ctx context.Context, tokens ...string) error {
	for _, token := range tokens {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE token = $1`, token); err != nil {
			return fmt.Errorf("failed to delete push token: %w", err)
		}
	}
	return nil
}
