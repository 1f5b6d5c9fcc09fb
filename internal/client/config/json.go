package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/flagx"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// use timex.Duration so they can be written as "3s" or as nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	RemoteTimeout       timex.Duration `json:"remote_timeout"`
	DatabasePath        string         `json:"database_path"`
	CacheDir            string         `json:"cache_dir"`
	AssetRetention      timex.Duration `json:"asset_retention"`
	AssetFetchTimeout   timex.Duration `json:"asset_fetch_timeout"`
	AssetMaxSize        int64          `json:"asset_max_size"`
	AutoCacheRetries    *int           `json:"autocache_retries"`
	AutoCacheRetryDelay timex.Duration `json:"autocache_retry_delay"`
	MaxPinned           int            `json:"max_pinned"`
	MirrorDebounce      timex.Duration `json:"mirror_debounce"`
	S3                  struct {
		Endpoint  string `json:"endpoint"`
		Region    string `json:"region"`
		Bucket    string `json:"bucket"`
		AccessKey string `json:"access_key"`
		SecretKey string `json:"secret_key"`
		PublicURL string `json:"public_url"`
	} `json:"s3"`
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// parseJson overlays cfg with the JSON file named by -c or -config in
// args. Keys missing from the file leave the current values alone.
func parseJson(cfg *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFilePath(args)
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	setStr(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setDur(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDur(&cfg.RemoteTimeout, jc.RemoteTimeout)
	setStr(&cfg.DatabasePath, jc.DatabasePath)
	setStr(&cfg.CacheDir, jc.CacheDir)
	setDur(&cfg.AssetRetention, jc.AssetRetention)
	setDur(&cfg.AssetFetchTimeout, jc.AssetFetchTimeout)
	if jc.AssetMaxSize > 0 {
		cfg.AssetMaxSize = jc.AssetMaxSize
	}
	if jc.AutoCacheRetries != nil {
		cfg.AutoCacheRetries = *jc.AutoCacheRetries
	}
	setDur(&cfg.AutoCacheRetryDelay, jc.AutoCacheRetryDelay)
	if jc.MaxPinned > 0 {
		cfg.MaxPinned = jc.MaxPinned
	}
	setDur(&cfg.MirrorDebounce, jc.MirrorDebounce)
	setStr(&cfg.S3.Endpoint, jc.S3.Endpoint)
	setStr(&cfg.S3.Region, jc.S3.Region)
	setStr(&cfg.S3.Bucket, jc.S3.Bucket)
	setStr(&cfg.S3.AccessKey, jc.S3.AccessKey)
	setStr(&cfg.S3.SecretKey, jc.S3.SecretKey)
	setStr(&cfg.S3.PublicURL, jc.S3.PublicURL)
	setStr(&cfg.LogLevel, jc.LogLevel)
	setStr(&cfg.LogFile, jc.LogFile)
	return nil
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDur(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}
