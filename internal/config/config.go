// Package config reads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/pointkeeper/internal/export"
)

const prefix = "POINTKEEPER_"

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	StoreBackend string
	PostgresDSN  string
	BadgerPath   string

	Export export.Config

	SessionTTL time.Duration
	// PublicRateLimit is the number of public requests allowed per client IP per minute.
	PublicRateLimit int
	// Postmark settings for appeal notices. Email is disabled without a token.
	PostmarkToken string
	EmailFrom     string
	// BaseURL is the public address used in links inside emails.
	BaseURL string

	// TrustedProxies are the networks whose forwarding headers name the client.
	TrustedProxies []netip.Prefix

	// WSOrigins lists extra origin patterns allowed to open the websocket.
	WSOrigins []string
}

// Load reads the optional dotenv file, then the POINTKEEPER_* environment.
// Variables already set in the environment win over the file.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	cfg := Config{
		Port:         get("PORT", "8080"),
		DBPath:       get("DB_PATH", "pointkeeper.db"),
		LogLevel:     get("LOG_LEVEL", "info"),
		LogFormat:    get("LOG_FORMAT", "text"),
		StoreBackend: strings.ToLower(get("STORE_BACKEND", "sqlite")),
		PostgresDSN:  get("POSTGRES_DSN", ""),
		BadgerPath:   get("BADGER_PATH", "pointkeeper.badger"),
		Export: export.Config{
			S3: export.S3Config{
				Endpoint:  get("S3_ENDPOINT", ""),
				Bucket:    get("S3_BUCKET", ""),
				Region:    get("S3_REGION", "auto"),
				AccessKey: get("S3_ACCESS_KEY", ""),
				SecretKey: get("S3_SECRET_KEY", ""),
			},
			Passphrase: get("EXPORT_PASSPHRASE", ""),
		},
		PostmarkToken: get("POSTMARK_TOKEN", ""),
		EmailFrom:     get("EMAIL_FROM", ""),
		BaseURL:       strings.TrimRight(get("BASE_URL", ""), "/"),
	}

	ttl, err := time.ParseDuration(get("SESSION_TTL", "720h"))
	if err != nil {
		return Config{}, fmt.Errorf("%sSESSION_TTL: %w", prefix, err)
	}
	if ttl <= 0 {
		return Config{}, fmt.Errorf("%sSESSION_TTL must be positive", prefix)
	}
	cfg.SessionTTL = ttl

	limit, err := strconv.Atoi(get("PUBLIC_RATE_LIMIT", "30"))
	if err != nil {
		return Config{}, fmt.Errorf("%sPUBLIC_RATE_LIMIT: %w", prefix, err)
	}
	if limit <= 0 {
		return Config{}, fmt.Errorf("%sPUBLIC_RATE_LIMIT must be positive", prefix)
	}
	cfg.PublicRateLimit = limit

	for _, o := range strings.Split(get("WS_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.WSOrigins = append(cfg.WSOrigins, o)
		}
	}

	if cfg.TrustedProxies, err = parsePrefixes(get("TRUSTED_PROXIES", "")); err != nil {
		return Config{}, fmt.Errorf("%sTRUSTED_PROXIES: %w", prefix, err)
	}

	if cfg.StoreBackend == "postgres" && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("%sPOSTGRES_DSN is required for the postgres backend", prefix)
	}
	return cfg, nil
}

// parsePrefixes reads a comma-separated list of CIDRs. A bare address is a
// single-host network.
func parsePrefixes(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(prefix + key)); v != "" {
		return v
	}
	return fallback
}
