package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth modes for resolving the calling learner.
const (
	AuthModeGateway     = "gateway"
	AuthModeAuthService = "authservice"
	AuthModeJWT         = "jwt"
)

// DefaultRewardPoints are the points credited per source unless overridden by POINTS_<SOURCE>.
var DefaultRewardPoints = map[string]int64{
	"login_bonus":     3,
	"listening_daily": 5,
	"chapter_clear":   10,
	"temporary_quest": 20,
	"referral_bonus":  50,
}

type Config struct {
	Port           string
	LogMode        string
	DatabaseURL    string
	AllowedOrigins []string

	AuthMode       string
	ServiceToken   string
	AuthServiceURL string
	JWTSecret      string

	Timezone                string
	DailyContentCount       int
	RewardPoints            map[string]int64
	ReferralMilestoneSource string

	RequestTimeout time.Duration
	RateLimitMax   int
	RedisAddr      string

	SyncServiceURL  string
	SyncEndpoint    string
	SyncInterval    time.Duration
	ManifestEnabled bool

	R2AccountID    string
	R2AccessKey    string
	R2AccessSecret string
	R2Bucket       string
	CDNBaseURL     string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:           GetEnv("PORT", "5200"),
		LogMode:        GetEnv("LOG_MODE", "dev"),
		DatabaseURL:    GetEnv("DATABASE_URL"),
		AllowedOrigins: List("ALLOWED_ORIGINS", "http://localhost:3000"),

		AuthMode:       strings.ToLower(GetEnv("AUTH_MODE", AuthModeGateway)),
		ServiceToken:   GetEnv("SERVICE_TOKEN", GetEnv("GAME_SERVICE_TOKEN")),
		AuthServiceURL: GetEnv("AUTH_SERVICE_URL"),
		JWTSecret:      GetEnv("JWT_SECRET"),

		Timezone:                GetEnv("REWARD_TIMEZONE", "Asia/Tokyo"),
		DailyContentCount:       Int("DAILY_CONTENT_COUNT", 3),
		RewardPoints:            rewardPoints(),
		ReferralMilestoneSource: GetEnv("REFERRAL_MILESTONE_SOURCE", "chapter_clear"),

		RequestTimeout: Duration("REQUEST_TIMEOUT", 5*time.Second),
		RateLimitMax:   Int("RATE_LIMIT_MAX", 120),
		RedisAddr:      GetEnv("REDIS_ADDR"),

		SyncServiceURL:  GetEnv("SYNC_SERVICE_URL"),
		SyncEndpoint:    GetEnv("SYNC_ENDPOINT", "/api/v1/public/profiles"),
		SyncInterval:    Duration("SYNC_INTERVAL", time.Minute),
		ManifestEnabled: Bool("DAILY_MANIFEST_ENABLED", true),

		R2AccountID:    GetEnv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKey:    GetEnv("R2_ACCESS_KEY_ID"),
		R2AccessSecret: GetEnv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:       GetEnv("R2_BUCKET_NAME"),
		CDNBaseURL:     GetEnv("CDN_BASE_URL"),
	}
	return cfg
}

// R2Configured reports whether object storage credentials are present.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKey != "" && c.R2AccessSecret != "" && c.R2Bucket != ""
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if (!exists || strings.TrimSpace(value) == "") && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return strings.TrimSpace(value)
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Bool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func Duration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// List splits a comma-separated variable and trims each entry.
func List(name, def string) []string {
	raw := GetEnv(name, def)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func rewardPoints() map[string]int64 {
	out := make(map[string]int64, len(DefaultRewardPoints))
	for source, def := range DefaultRewardPoints {
		out[source] = int64(Int("POINTS_"+strings.ToUpper(source), int(def)))
		if out[source] < 0 {
			out[source] = def
		}
	}
	return out
}
