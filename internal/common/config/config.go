package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig PostgreSQL 连接配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// ApplicationName 写入 pg_stat_activity，便于区分 api / ingest / stats
	ApplicationName string
	ConnectTimeout  time.Duration
	MaxConns        int
	MaxIdle         int
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// MQTTConfig MQTT Broker 配置
type MQTTConfig struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
	KeepAlive time.Duration
}

// GetDSN 生成 lib/pq 使用的 key=value 连接串，空值字段省略
func (c *DatabaseConfig) GetDSN() string {
	parts := []string{
		"host=" + c.Host,
		"port=" + strconv.Itoa(c.Port),
		"user=" + c.User,
	}
	if c.Password != "" {
		parts = append(parts, "password="+quoteDSN(c.Password))
	}
	parts = append(parts, "dbname="+c.Database, "sslmode="+c.SSLMode)
	if c.ApplicationName != "" {
		parts = append(parts, "application_name="+quoteDSN(c.ApplicationName))
	}
	if secs := int(c.ConnectTimeout / time.Second); secs > 0 {
		parts = append(parts, "connect_timeout="+strconv.Itoa(secs))
	}
	return strings.Join(parts, " ")
}

// quoteDSN 含空格或引号的值需要单引号包裹
func quoteDSN(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Validate 检查必填项
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" || c.Database == "" {
		return errors.New("database host and name are required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid database port %d", c.Port)
	}
	return nil
}

// LoadFromEnv 按前缀从环境变量覆盖数据库配置，如 DB_HOST / DB_PORT
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	setString(&c.Host, prefix+"_HOST")
	setInt(&c.Port, prefix+"_PORT")
	setString(&c.User, prefix+"_USER")
	setString(&c.Password, prefix+"_PASSWORD")
	setString(&c.Database, prefix+"_NAME")
	setString(&c.SSLMode, prefix+"_SSLMODE")
	setString(&c.ApplicationName, prefix+"_APPLICATION_NAME")
	if secs, ok := envInt(prefix + "_CONNECT_TIMEOUT"); ok && secs > 0 {
		c.ConnectTimeout = time.Duration(secs) * time.Second
	}
	setInt(&c.MaxConns, prefix+"_MAX_CONNS")
	setInt(&c.MaxIdle, prefix+"_MAX_IDLE")
}

// LoadFromEnv 按前缀从环境变量覆盖 Redis 配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	setString(&c.Addr, prefix+"_ADDR")
	setString(&c.Password, prefix+"_PASSWORD")
	setInt(&c.DB, prefix+"_DB")
	setInt(&c.PoolSize, prefix+"_POOL_SIZE")
}

// Validate 检查必填项
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("redis addr is required")
	}
	return nil
}

// LoadFromEnv 按前缀从环境变量覆盖 MQTT 配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	setString(&c.Broker, prefix+"_BROKER")
	setString(&c.ClientID, prefix+"_CLIENT_ID")
	setString(&c.Username, prefix+"_USERNAME")
	setString(&c.Password, prefix+"_PASSWORD")
	if qos, ok := envInt(prefix + "_QOS"); ok && qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
	if secs, ok := envInt(prefix + "_KEEPALIVE"); ok && secs > 0 {
		c.KeepAlive = time.Duration(secs) * time.Second
	}
}

// Validate 检查必填项
func (c *MQTTConfig) Validate() error {
	if c.Broker == "" || c.ClientID == "" {
		return errors.New("mqtt broker and client id are required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt 非法数字保留原值
func setInt(dst *int, key string) {
	if v, ok := envInt(key); ok {
		*dst = v
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
