package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PREDICTORY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PREDICTORY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Genesis ──
	setStr(&cfg.Genesis.Authority, "PREDICTORY_GENESIS_AUTHORITY")
	setUint64(&cfg.Genesis.Multiplier, "PREDICTORY_GENESIS_MULTIPLIER")
	setUint64(&cfg.Genesis.EventPrice, "PREDICTORY_GENESIS_EVENT_PRICE")
	setUint64(&cfg.Genesis.PlatformFee, "PREDICTORY_GENESIS_PLATFORM_FEE")
	setUint64(&cfg.Genesis.OrgReward, "PREDICTORY_GENESIS_ORG_REWARD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PREDICTORY_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PREDICTORY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDICTORY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDICTORY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDICTORY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDICTORY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDICTORY_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDICTORY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDICTORY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PREDICTORY_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PREDICTORY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDICTORY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDICTORY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDICTORY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDICTORY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDICTORY_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PREDICTORY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDICTORY_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDICTORY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDICTORY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDICTORY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PREDICTORY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PREDICTORY_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PREDICTORY_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.SweepInterval, "PREDICTORY_ARCHIVE_SWEEP_INTERVAL")
	setStr(&cfg.Archive.Prefix, "PREDICTORY_ARCHIVE_PREFIX")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PREDICTORY_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PREDICTORY_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "PREDICTORY_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDICTORY_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PREDICTORY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PREDICTORY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PREDICTORY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PREDICTORY_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PREDICTORY_MODE")
	setStr(&cfg.LogLevel, "PREDICTORY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
