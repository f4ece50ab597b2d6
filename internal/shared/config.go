package shared

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	MySQLDSN  string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/staysense?parseTime=true&charset=utf8mb4,utf8&loc=UTC"`
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	CacheTTLSeconds int `env:"CACHE_TTL_SECONDS" envDefault:"300"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`

	MapboxToken   string `env:"MAPBOX_TOKEN"`
	MapboxBaseURL string `env:"MAPBOX_BASE_URL" envDefault:"https://api.mapbox.com"`
	GeocoderRPS   int    `env:"GEOCODER_RPS" envDefault:"5"`

	S3Endpoint  string `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"staysense"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`

	StripeSecretKey  string `env:"STRIPE_SECRET_KEY"`
	CheckoutCurrency string `env:"CHECKOUT_CURRENCY" envDefault:"inr"`

	UploadWorkers int `env:"UPLOAD_WORKERS" envDefault:"4"`

	SeedCount   int    `env:"SEED_COUNT" envDefault:"50"`
	SeedWorkers int    `env:"SEED_WORKERS" envDefault:"8"`
	SeedAuthor  string `env:"SEED_AUTHOR" envDefault:"seed@staysense.local"`
}

// Load reads an optional .env file, then the process environment.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	c, err := Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("parse config")
	}
	return c
}

// Parse builds a Config from the environment only.
func Parse() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	if c.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET is empty; sessions will not survive a restart")
	}
	if c.MapboxToken == "" {
		log.Warn().Msg("MAPBOX_TOKEN is empty")
	}
	if c.StripeSecretKey == "" {
		log.Warn().Msg("STRIPE_SECRET_KEY is empty")
	}
	return c, nil
}

func (c Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSeconds) * time.Second }
