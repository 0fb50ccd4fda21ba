package config

import "time"

type Auth struct {
	JWTSecret string        `env:"AUTH_JWT_SECRET,required,notEmpty"`
	Issuer    string        `env:"AUTH_ISSUER" envDefault:"storefront"`
	TokenTTL  time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"72h"`
}
