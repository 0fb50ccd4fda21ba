package config

import "time"

// Rating tunes the optimistic-concurrency retry loop used for product updates.
type Rating struct {
	MaxRetries uint64        `env:"RATING_MAX_RETRIES" envDefault:"5"`
	RetryBase  time.Duration `env:"RATING_RETRY_BASE" envDefault:"10ms"`
}
