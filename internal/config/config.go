package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv        string   `mapstructure:"APP_ENV"`
	Port          string   `mapstructure:"PORT"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	RedisURL      string   `mapstructure:"REDIS_URL"`
	RedisPassword string   `mapstructure:"REDIS_PASSWORD"`
	PublicBaseURL string   `mapstructure:"PUBLIC_BASE_URL"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	SlugLength    int      `mapstructure:"SLUG_LENGTH"`

	// Identity
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	JWTIssuer   string   `mapstructure:"JWT_ISSUER"`
	JWTAudience string   `mapstructure:"JWT_AUDIENCE"`
	AdminEmails []string `mapstructure:"ADMIN_EMAILS"`

	// Lifecycle
	ReaperInterval time.Duration `mapstructure:"REAPER_INTERVAL"`
	StoreTimeout   time.Duration `mapstructure:"STORE_TIMEOUT"`
	CacheTTL       time.Duration `mapstructure:"CACHE_TTL"`
	ClickHashSalt  string        `mapstructure:"CLICK_HASH_SALT"`

	// GeoIP
	MaxMindAccountID  string `mapstructure:"MAXMIND_ACCOUNT_ID"`
	MaxMindLicenseKey string `mapstructure:"MAXMIND_LICENSE_KEY"`
	MaxMindEditionIDs string `mapstructure:"MAXMIND_EDITION_IDS"`
	MaxMindDBPath     string `mapstructure:"GEOIP_DB_PATH"`
}

func LoadConfig() (config Config, err error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("PORT", "5000")
	v.SetDefault("DATABASE_URL", "sqlite://gatekeeper.db")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:5173")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("SLUG_LENGTH", 6)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("ADMIN_EMAILS", "")
	v.SetDefault("REAPER_INTERVAL", "60s")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("CLICK_HASH_SALT", "gatekeeper")
	v.SetDefault("MAXMIND_ACCOUNT_ID", "")
	v.SetDefault("MAXMIND_LICENSE_KEY", "")
	v.SetDefault("GEOIP_DB_PATH", "./geoip/GeoLite2-City.mmdb")
	v.SetDefault("MAXMIND_EDITION_IDS", "GeoLite2-City")

	v.AutomaticEnv()

	err = v.Unmarshal(&config)
	if err != nil {
		log.Printf("unable to decode into struct, %v", err)
		return
	}

	return
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}
