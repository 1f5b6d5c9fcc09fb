package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings for the notekeeper CLI.
type Config struct {
	ServerEndpointAddr  string        `validate:"required,hostname_port"`
	OnlineCheckInterval time.Duration `validate:"gt=0"`
	RemoteTimeout       time.Duration `validate:"gt=0"`

	DatabasePath string `validate:"required"`
	CacheDir     string `validate:"required"`

	AssetRetention      time.Duration `validate:"gt=0"`
	AssetFetchTimeout   time.Duration `validate:"gt=0"`
	AssetMaxSize        int64         `validate:"gt=0"`
	AutoCacheRetries    int           `validate:"gte=0"`
	AutoCacheRetryDelay time.Duration `validate:"gte=0"`

	MaxPinned      int           `validate:"gt=0"`
	MirrorDebounce time.Duration `validate:"gt=0"`

	S3 S3Config

	LogLevel string `validate:"oneof=debug info warn warning error"`
	LogFile  string

	// AccessToken seeds the session when no token is stored locally.
	AccessToken string
}

// S3Config locates the bucket that holds attachments and covers.
type S3Config struct {
	Endpoint  string `validate:"omitempty,url"`
	Region    string `validate:"required"`
	Bucket    string `validate:"required"`
	AccessKey string
	SecretKey string
	// PublicURL is the base of links handed out for uploaded objects;
	// empty means Endpoint.
	PublicURL string `validate:"omitempty,url"`
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.RemoteTimeout = 15 * time.Second

	c.DatabasePath = filepath.Join(".notekeeper", "notes.db")
	c.CacheDir = filepath.Join(".notekeeper", "assets")

	c.AssetRetention = 30 * 24 * time.Hour
	c.AssetFetchTimeout = 10 * time.Second
	c.AssetMaxSize = 20 << 20
	c.AutoCacheRetries = 2
	c.AutoCacheRetryDelay = time.Second

	c.MaxPinned = 5
	c.MirrorDebounce = 500 * time.Millisecond

	c.S3 = S3Config{
		Endpoint: "http://127.0.0.1:9000",
		Region:   "us-east-1",
		Bucket:   "notes",
	}

	c.LogLevel = "info"
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load builds a Config from defaults, the environment, an optional JSON
// file and the given command-line args, in that order.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
