package config

import "time"

type Web struct {
	APIBaseURL    string        `env:"WEB_API_BASE_URL" envDefault:"http://localhost:8000"`
	SessionKey    string        `env:"WEB_SESSION_KEY"`
	SecureCookies bool          `env:"WEB_SECURE_COOKIES" envDefault:"false"`
	CatalogTTL    time.Duration `env:"WEB_CATALOG_TTL" envDefault:"30s"`
	ClientTimeout time.Duration `env:"WEB_CLIENT_TIMEOUT" envDefault:"10s"`
}
