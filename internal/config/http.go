package config

type HTTP struct {
	Port         uint32 `env:"HTTP_PORT" envDefault:"8000"`
	Swagger      bool   `env:"HTTP_SWAGGER" envDefault:"true"`
	Web          bool   `env:"HTTP_WEB" envDefault:"true"`
	MaxBodyBytes int64  `env:"HTTP_MAX_BODY_BYTES" envDefault:"10485760"`
}
