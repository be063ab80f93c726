package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/errs"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Viewer  ViewerConfig  `mapstructure:"viewer"`
	Client  ClientConfig  `mapstructure:"client"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	// Driver is sqlite, postgres or bolt.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Bucket is only used by the bolt driver.
	Bucket string `mapstructure:"bucket"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	ClientBuffer      int           `mapstructure:"client_buffer"`
}

type ViewerConfig struct {
	URL              string        `mapstructure:"url"`
	Title            string        `mapstructure:"title"`
	LogFile          string        `mapstructure:"log_file"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type ClientConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CACHEVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Debug(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Debug(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errs.Wrap(err, "validate config")
	}

	logging.Debug(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("server_addr", cfg.Server.Addr),
	)

	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "sqlite", "sqlite3", "postgres", "bolt":
	default:
		return fmt.Errorf("storage.driver %q is not supported (sqlite|postgres|bolt)", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("storage.dsn is required")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.SweepInterval < 0 || c.Server.BroadcastInterval < 0 {
		return errors.New("server intervals must not be negative")
	}
	if c.Server.ClientBuffer <= 0 {
		return errors.New("server.client_buffer must be positive")
	}
	if err := ValidateStreamURL(c.Viewer.URL); err != nil {
		return errs.Wrap(err, "viewer.url")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errs.Wrap(err, "log.level")
	}
	return nil
}

// ValidateStreamURL accepts absolute ws:// and wss:// URLs.
func ValidateStreamURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return errs.Wrap(err, "parse url")
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("scheme %q is not ws or wss", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cacheview")
	v.SetDefault("app.env", "local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", ".cacheview/cache.sqlite")
	v.SetDefault("storage.bucket", "cache")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.sweep_interval", 5*time.Second)
	v.SetDefault("server.broadcast_interval", time.Second)
	v.SetDefault("server.write_timeout", 5*time.Second)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.client_buffer", 16)

	v.SetDefault("viewer.url", "ws://localhost:8080/ws")
	v.SetDefault("viewer.title", "Cache Viewer")
	v.SetDefault("viewer.log_file", ".cacheview/viewer.log")
	v.SetDefault("viewer.handshake_timeout", 5*time.Second)

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.timeout", 5*time.Second)
}
