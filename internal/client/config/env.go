package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "NOTEKEEPER_"

// parseEnv overlays cfg with NOTEKEEPER_* variables. envFile, when it
// exists, is loaded into the process environment first without replacing
// variables that are already set.
func parseEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("SERVER_ADDR", &cfg.ServerEndpointAddr)
	dur("ONLINE_CHECK_INTERVAL", &cfg.OnlineCheckInterval)
	dur("REMOTE_TIMEOUT", &cfg.RemoteTimeout)
	str("DB_PATH", &cfg.DatabasePath)
	str("CACHE_DIR", &cfg.CacheDir)
	dur("ASSET_RETENTION", &cfg.AssetRetention)
	dur("ASSET_FETCH_TIMEOUT", &cfg.AssetFetchTimeout)
	num("AUTOCACHE_RETRIES", &cfg.AutoCacheRetries)
	dur("AUTOCACHE_RETRY_DELAY", &cfg.AutoCacheRetryDelay)
	num("MAX_PINNED", &cfg.MaxPinned)
	dur("MIRROR_DEBOUNCE", &cfg.MirrorDebounce)
	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("S3_PUBLIC_URL", &cfg.S3.PublicURL)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)
	str("TOKEN", &cfg.AccessToken)

	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	return v, ok && v != ""
}
