package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewConnectionsRepository(db, zap.NewNop())

	created := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO connections`).
		WithArgs(sqlmock.AnyArg(), "u1", "d1").
		WillReturnRows(sqlmock.NewRows([]string{"connection_id", "user_id", "device_id", "created_at"}).
			AddRow("c-existing", "u1", "d1", created))

	c, err := repo.CreateConnection(context.Background(), "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "c-existing", c.ConnectionID)
	assert.Equal(t, created, c.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConnection_RequiresIDs(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewConnectionsRepository(db, zap.NewNop())

	_, err = repo.CreateConnection(context.Background(), "", "d1")
	assert.Error(t, err)
}

func TestDeleteConnection_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewConnectionsRepository(db, zap.NewNop())

	mock.ExpectExec(`DELETE FROM connections`).
		WithArgs("u1", "d1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteConnection(context.Background(), "u1", "d1"), ErrNotFound)
}

func TestPushTokens_SaveAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPushTokensRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO push_tokens`).
		WithArgs("ExponentPushToken[abc]", "u1", "ios").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM push_tokens t`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("ExponentPushToken[abc]"))
	mock.ExpectExec(`DELETE FROM push_tokens`).
		WithArgs("ExponentPushToken[abc]").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, repo.SaveToken(ctx, "u1", "ExponentPushToken[abc]", "ios"))

	tokens, err := repo.TokensForDevice(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ExponentPushToken[abc]"}, tokens)

	require.NoError(t, repo.DeleteTokens(ctx, "ExponentPushToken[abc]"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesAllStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range schemaStatements {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}
