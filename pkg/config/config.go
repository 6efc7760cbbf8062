package config

import (
	"errors"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	AppEnv       string
	IsStaging    bool
	IsProduction bool
	IsTest       bool

	JWTSecret      string
	Port           string
	AuthCookieName string
	CORSOrigins    []string
	LogLevel       string

	// database
	DBDriver    string
	DatabaseDSN string

	// runtime tunables
	RateLimitRPM           int
	RateLimitBurst         int
	WSEventsPerSecond      int
	WSEventBurst           int
	ProfileCacheTTLSeconds int
	ProfileCacheMaxItems   int
	HistoryDefaultLimit    int
	HistoryMaxLimit        int
)

var defaultOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173", "http://127.0.0.1:5173"}

// loadAppEnv only reads .env outside production; a missing file is fine.
func loadAppEnv() {
	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "production" {
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("[config] could not read .env")
	}
}

// Load populates the package variables from the environment.
func Load() error {
	loadAppEnv()

	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "" {
		AppEnv = "staging"
	}
	if !slices.Contains([]string{"staging", "production", "test"}, AppEnv) {
		return errors.New("environment variable APP_ENV must be 'staging', 'production' or 'test'")
	}
	IsStaging = AppEnv == "staging"
	IsProduction = AppEnv == "production"
	IsTest = AppEnv == "test"

	JWTSecret = os.Getenv("JWT_SECRET_KEY")
	Port = orDefault(os.Getenv("PORT"), "5000")
	AuthCookieName = orDefault(os.Getenv("AUTH_COOKIE_NAME"), "token")
	LogLevel = orDefault(os.Getenv("LOG_LEVEL"), "info")
	CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	if len(CORSOrigins) == 0 {
		CORSOrigins = defaultOrigins
	}

	DBDriver = strings.ToLower(orDefault(os.Getenv("DB_DRIVER"), "sqlite"))
	DatabaseDSN = orDefault(os.Getenv("DATABASE_DSN"), "app.db")
	if DBDriver != "sqlite" && DBDriver != "mysql" {
		return errors.New("DB_DRIVER must be 'sqlite' or 'mysql'")
	}

	RateLimitRPM = atoiOr(os.Getenv("RATE_LIMIT_RPM"), 120)
	RateLimitBurst = atoiOr(os.Getenv("RATE_LIMIT_BURST"), 20)
	WSEventsPerSecond = atoiOr(os.Getenv("WS_EVENTS_PER_SECOND"), 10)
	WSEventBurst = atoiOr(os.Getenv("WS_EVENT_BURST"), 20)
	ProfileCacheTTLSeconds = atoiOr(os.Getenv("PROFILE_CACHE_TTL_SECONDS"), 300)
	ProfileCacheMaxItems = atoiOr(os.Getenv("PROFILE_CACHE_MAX_ITEMS"), 1000)
	HistoryDefaultLimit = atoiOr(os.Getenv("HISTORY_DEFAULT_LIMIT"), 50)
	HistoryMaxLimit = atoiOr(os.Getenv("HISTORY_MAX_LIMIT"), 100)

	if IsProduction && JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY must be set in production")
	}
	if JWTSecret == "" {
		JWTSecret = "dev-secret-change-me"
		log.Warn().Msg("[config] JWT_SECRET_KEY not set, using development secret")
	}

	log.Info().
		Str("app_env", AppEnv).
		Str("db_driver", DBDriver).
		Str("port", Port).
		Int("rate_limit_rpm", RateLimitRPM).
		Int("ws_events_per_second", WSEventsPerSecond).
		Int("history_default_limit", HistoryDefaultLimit).
		Msg("[config] loaded")
	return nil
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
