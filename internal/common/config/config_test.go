package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_LoadFromEnvAndDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db.local")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "babycare")
	t.Setenv("DB_MAX_CONNS", "not-a-number")
	t.Setenv("DB_CONNECT_TIMEOUT", "3")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "pw", SSLMode: "disable", MaxConns: 4}
	cfg.LoadFromEnv("DB")

	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, 4, cfg.MaxConns, "invalid number keeps previous value")
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "host=db.local port=6543 user=postgres password=pw dbname=babycare sslmode=disable connect_timeout=3", cfg.GetDSN())
	require.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSNQuotingAndOptionalFields(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Database: "babycare", SSLMode: "require",
		Password: "it's secret", ApplicationName: "babycare-api",
	}
	assert.Equal(t,
		`host=db port=5432 user=app password='it\'s secret' dbname=babycare sslmode=require application_name=babycare-api`,
		cfg.GetDSN())

	cfg.Password = ""
	cfg.ApplicationName = ""
	assert.Equal(t, "host=db port=5432 user=app dbname=babycare sslmode=require", cfg.GetDSN())
}

func TestDatabaseConfig_Validate(t *testing.T) {
	assert.Error(t, (&DatabaseConfig{Port: 5432, Database: "x"}).Validate())
	assert.Error(t, (&DatabaseConfig{Host: "h", Database: "x", Port: 70000}).Validate())
}

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_POOL_SIZE", "32")

	cfg := RedisConfig{Addr: "localhost:6379"}
	cfg.LoadFromEnv("REDIS")

	assert.Equal(t, RedisConfig{Addr: "redis:6379", DB: 2, PoolSize: 32}, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, (&RedisConfig{}).Validate())
}

func TestMQTTConfig_LoadFromEnv_QoSRange(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "5")
	t.Setenv("MQTT_KEEPALIVE", "45")

	cfg := MQTTConfig{QoS: 1, ClientID: "babycare-test"}
	cfg.LoadFromEnv("MQTT")

	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, byte(1), cfg.QoS)
	assert.Equal(t, 45*time.Second, cfg.KeepAlive)
	assert.NoError(t, cfg.Validate())
}
