package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"schedule-designgen/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func TestPostgresClient_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS design_overrides")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS design_overrides")).
		WillReturnError(errors.New("permission denied"))

	c := &PostgresClient{DB: db}
	assert.NoError(t, c.Migrate(context.Background()))
	assert.ErrorContains(t, c.Migrate(context.Background()), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.ErrorContains(t, c.Ping(context.Background()), "redis ping failed")
}

func TestNewRedis_EmptyAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestReady(t *testing.T) {
	assert.NoError(t, Ready(context.Background(), time.Second, map[string]Pinger{
		"redis":    stubPinger{},
		"postgres": nil,
	}))

	err := Ready(context.Background(), time.Second, map[string]Pinger{
		"redis":    stubPinger{err: errors.New("refused")},
		"postgres": stubPinger{err: errors.New("timeout")},
	})
	require.Error(t, err)
	assert.Equal(t, "dependencies unavailable: postgres: timeout; redis: refused", err.Error())
}
