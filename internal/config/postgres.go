package config

import "time"

type Postgres struct {
	Host            string `env:"POSTGRES_HOST,required"`
	Port            int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"POSTGRES_USER,required"`
	Password        string `env:"POSTGRES_PASSWORD,required"`
	DB              string `env:"POSTGRES_DB,required"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	ApplicationName string `env:"POSTGRES_APPLICATION_NAME" envDefault:"storefront"`

	MaxConns          int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns          int32         `env:"POSTGRES_MIN_CONNS" envDefault:"1"`
	MaxConnLifetime   time.Duration `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime   time.Duration `env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	HealthCheckPeriod time.Duration `env:"POSTGRES_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// QueryTimeout bounds every storage call made by a request.
	QueryTimeout time.Duration `env:"POSTGRES_QUERY_TIMEOUT" envDefault:"5s"`
}
