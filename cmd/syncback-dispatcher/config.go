package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/syncback/internal/lock"
	"github.com/shaiso/syncback/internal/mq"
	"github.com/shaiso/syncback/internal/syncback"
)

// Lock backends.
const (
	lockBackendPostgres = "postgres"
	lockBackendFile     = "file"
)

// config — настройки процесса из переменных окружения.
type config struct {
	RabbitMQURL string
	Port        string

	PollInterval time.Duration
	ChunkSize    int
	PoolSize     int
	RetryDelay   time.Duration
	MaxRestarts  int

	LockBackend string
	LockPath    string
	LockKey     string
}

// loadConfig читает окружение; getenv подменяется в тестах.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		RabbitMQURL:  mq.DefaultURL(),
		Port:         "8083",
		PollInterval: syncback.DefaultPollInterval,
		ChunkSize:    syncback.DefaultChunkSize,
		PoolSize:     syncback.DefaultPoolSize,
		RetryDelay:   syncback.DefaultRetryDelay,
		LockBackend:  lockBackendPostgres,
		LockPath:     lock.DefaultFilePath,
		LockKey:      "syncback-global",
	}

	if v := getenv("RABBITMQ_URL"); v != "" {
		cfg.RabbitMQURL = v
	}
	if v := getenv("SYNCBACK_PORT"); v != "" {
		cfg.Port = v
	}
	if v := getenv("SYNCBACK_LOCK_PATH"); v != "" {
		cfg.LockPath = v
	}
	if v := getenv("SYNCBACK_LOCK_KEY"); v != "" {
		cfg.LockKey = v
	}

	switch v := getenv("SYNCBACK_LOCK_BACKEND"); v {
	case "":
	case lockBackendPostgres, lockBackendFile:
		cfg.LockBackend = v
	default:
		return cfg, fmt.Errorf("SYNCBACK_LOCK_BACKEND: unknown backend %q", v)
	}

	var err error
	if cfg.PollInterval, err = durationEnv(getenv, "SYNCBACK_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return cfg, err
	}
	if cfg.RetryDelay, err = durationEnv(getenv, "SYNCBACK_RETRY_DELAY", cfg.RetryDelay); err != nil {
		return cfg, err
	}
	if cfg.ChunkSize, err = intEnv(getenv, "SYNCBACK_CHUNK_SIZE", cfg.ChunkSize, 1); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = intEnv(getenv, "SYNCBACK_POOL_SIZE", cfg.PoolSize, 1); err != nil {
		return cfg, err
	}
	if cfg.MaxRestarts, err = intEnv(getenv, "SYNCBACK_MAX_RESTARTS", cfg.MaxRestarts, 0); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func durationEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func intEnv(getenv func(string) string, key string, def, minValue int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minValue {
		return def, fmt.Errorf("%s: invalid value %q", key, v)
	}
	return n, nil
}

// apiConns — соединения, оставленные HTTP API сверх нужд диспетчера.
const apiConns = 4

// dbMaxConns — размер пула: воркеры, poll-транзакция, соединение
// advisory lock и apiConns для HTTP API.
func (c config) dbMaxConns() int32 {
	return int32(c.PoolSize + 2 + apiConns)
}

// osConfig читает настройки из os.Getenv.
func osConfig() (config, error) {
	return loadConfig(os.Getenv)
}
