package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Generation GenerationConfig `mapstructure:"generation"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Cron       CronConfig       `mapstructure:"cron"`

	// Queues is the explicit queue table; nothing reads queue settings
	// from ambient globals. Empty means DefaultQueues().
	Queues []QueueConfig `mapstructure:"queues"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type EngineConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type GenerationConfig struct {
	// MaxSlips bounds the persisted slip count per master slip even if
	// the engine returns more.
	MaxSlips     int     `mapstructure:"max_slips"`
	DefaultStake float64 `mapstructure:"default_stake"`
	RiskProfile  string  `mapstructure:"risk_profile"`
	MinOdds      float64 `mapstructure:"min_odds"`
	MaxOdds      float64 `mapstructure:"max_odds"`
}

type WorkerConfig struct {
	RetryScanInterval time.Duration `mapstructure:"retry_scan_interval"`
	RetryClaimBatch   int           `mapstructure:"retry_claim_batch"`
	QueueDepth        int           `mapstructure:"queue_depth"`
}

type CronConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	CacheSweep  string        `mapstructure:"cache_sweep"`
	StaleJobs   string        `mapstructure:"stale_jobs"`
	StaleJobAge time.Duration `mapstructure:"stale_job_age"`
}

// QueueConfig describes one named worker queue. Queues run in static
// priority order, highest first.
type QueueConfig struct {
	Name       string          `mapstructure:"name"`
	Priority   int             `mapstructure:"priority"`
	Workers    int             `mapstructure:"workers"`
	Timeout    time.Duration   `mapstructure:"timeout"`
	MaxRetries int             `mapstructure:"max_retries"`
	Backoff    []time.Duration `mapstructure:"backoff"`
}

// DefaultQueues is the built-in queue table used when config declares none.
func DefaultQueues() []QueueConfig {
	return []QueueConfig{
		{
			Name:       "slip_generation",
			Priority:   100,
			Workers:    4,
			Timeout:    300 * time.Second,
			MaxRetries: 3,
			Backoff:    []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second},
		},
		{
			Name:       "ml_processing",
			Priority:   80,
			Workers:    2,
			Timeout:    120 * time.Second,
			MaxRetries: 3,
			Backoff:    []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second},
		},
		{
			Name:       "default",
			Priority:   50,
			Workers:    2,
			Timeout:    60 * time.Second,
			MaxRetries: 2,
			Backoff:    []time.Duration{10 * time.Second, 30 * time.Second},
		},
		{
			Name:       "notifications",
			Priority:   10,
			Workers:    1,
			Timeout:    60 * time.Second,
			MaxRetries: 1,
			Backoff:    []time.Duration{10 * time.Second},
		},
	}
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("engine.base_url", "http://localhost:8001")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.sweep_interval", "1m")
	v.SetDefault("generation.max_slips", 100)
	v.SetDefault("generation.default_stake", 10)
	v.SetDefault("generation.risk_profile", "balanced")
	v.SetDefault("generation.min_odds", 1.2)
	v.SetDefault("generation.max_odds", 50)
	v.SetDefault("worker.retry_scan_interval", "1s")
	v.SetDefault("worker.retry_claim_batch", 50)
	v.SetDefault("worker.queue_depth", 256)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.cache_sweep", "@every 1m")
	v.SetDefault("cron.stale_jobs", "@every 5m")
	v.SetDefault("cron.stale_job_age", "30m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if len(cfg.Queues) == 0 {
		cfg.Queues = DefaultQueues()
	}

	return cfg, nil
}

// QueueByName returns the queue config for name, falling back to the
// "default" queue when the name is unknown.
func (c Config) QueueByName(name string) QueueConfig {
	var fallback QueueConfig
	for _, q := range c.Queues {
		if q.Name == name {
			return q
		}
		if q.Name == "default" {
			fallback = q
		}
	}
	if fallback.Name == "" && len(c.Queues) > 0 {
		return c.Queues[len(c.Queues)-1]
	}
	return fallback
}
