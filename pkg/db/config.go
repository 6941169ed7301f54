package db

import "time"

// Config holds the PostgreSQL pool settings. YAML keys come from the
// database section of the config file. Env vars override them.
type Config struct {
	ConnectionString string `yaml:"url" env:"DATABASE_CONN_URL"`

	// Prefix is substituted for "table::" in tree queries.
	Prefix          string `yaml:"prefix" env:"DATABASE_TABLE_PREFIX"`
	MigrationsTable string `yaml:"migrations_table" env:"DATABASE_MIGRATIONS_TABLE" envDefault:"schema_migrations"`

	HealthCheckPeriod time.Duration `yaml:"health_check_period" env:"DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime" env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `yaml:"retry_attempts" env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"DATABASE_RETRY_INTERVAL" envDefault:"5s"`

	MaxOpenConns int32 `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MinConns     int32 `yaml:"min_conns" env:"DATABASE_MIN_CONNS" envDefault:"2"`
}
