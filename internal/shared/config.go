package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	MetricsAddr   string
	MySQLDSN      string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	BridgeBase    string
	BridgeRPS     int
	GuestPageSize int
	SyncInterval  time.Duration // 0 disables timer-triggered runs
	CacheTTL      time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/capcorn?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisDB:       atoi("REDIS_DB", 0),
		RedisPass:     env("REDIS_PASSWORD", ""),
		BridgeBase:    env("BRIDGE_BASE_URL", "http://localhost:5000"),
		BridgeRPS:     atoi("BRIDGE_RPS", 10),
		GuestPageSize: atoi("GUEST_PAGE_SIZE", 500),
		SyncInterval:  time.Duration(atoi("SYNC_INTERVAL_MINUTES", 0)) * time.Minute,
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
	}
	if os.Getenv("BRIDGE_BASE_URL") == "" {
		log.Warn().Str("default", c.BridgeBase).Msg("BRIDGE_BASE_URL not set, using default")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
