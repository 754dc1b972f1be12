package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/poller"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/store"
)

// EnvPrefix is prepended to every environment variable (VULNWATCH_ENDPOINT, ...)
const EnvPrefix = "VULNWATCH"

// Keys
const (
	KeyEndpoint    = "endpoint"
	KeyIndex       = "index"
	KeyUsername    = "username"
	KeyPassword    = "password"
	KeyInsecure    = "insecure"
	KeyTimeout     = "timeout"
	KeyLogLevel    = "log-level"
	KeyInterval    = "watch.interval"
	KeyRetryDelay  = "watch.retry-delay"
	KeyTop         = "watch.top"
	KeyMetricsAddr = "watch.metrics-addr"
)

var (
	ErrMissingEndpoint = errors.New("no document store endpoint configured (use --endpoint or VULNWATCH_ENDPOINT)")
	ErrMissingIndex    = errors.New("no index configured (use --index or VULNWATCH_INDEX)")
)

// Config is the resolved configuration for one command invocation
type Config struct {
	Endpoint    string
	Index       string
	Username    string
	Password    string
	Insecure    bool
	Timeout     time.Duration
	LogLevel    string
	Interval    time.Duration
	RetryDelay  time.Duration
	TopK        int
	MetricsAddr string
}

// SetDefaults registers default values and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyIndex, store.DefaultIndex)
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyInterval, poller.DefaultInterval)
	v.SetDefault(KeyRetryDelay, poller.DefaultRetryDelay)
	v.SetDefault(KeyTop, poller.DefaultTopK)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// the older shell scripts exported these names
	_ = v.BindEnv(KeyEndpoint, EnvPrefix+"_ENDPOINT", "OPENSEARCH_URL")
	_ = v.BindEnv(KeyUsername, EnvPrefix+"_USERNAME", "OPENSEARCH_USERNAME")
	_ = v.BindEnv(KeyPassword, EnvPrefix+"_PASSWORD", "OPENSEARCH_PASSWORD")
}

// ReadFile loads an optional config file. An explicit path must exist;
// without one, .vulnwatch.yaml is looked up in the working directory and
// then $HOME.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".vulnwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	log.Debugf("using config file %s", v.ConfigFileUsed())
	return nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// if the file exists. Existing variables win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load resolves v into a Config. Only presence is checked.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Endpoint:    strings.TrimSpace(v.GetString(KeyEndpoint)),
		Index:       strings.TrimSpace(v.GetString(KeyIndex)),
		Username:    v.GetString(KeyUsername),
		Password:    v.GetString(KeyPassword),
		Insecure:    v.GetBool(KeyInsecure),
		Timeout:     v.GetDuration(KeyTimeout),
		LogLevel:    v.GetString(KeyLogLevel),
		Interval:    v.GetDuration(KeyInterval),
		RetryDelay:  v.GetDuration(KeyRetryDelay),
		TopK:        v.GetInt(KeyTop),
		MetricsAddr: v.GetString(KeyMetricsAddr),
	}
	if cfg.Endpoint == "" {
		return cfg, ErrMissingEndpoint
	}
	if cfg.Index == "" {
		return cfg, ErrMissingIndex
	}
	return cfg, nil
}

// StoreOptions returns the client options for the document store
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Endpoint: c.Endpoint,
		Username: c.Username,
		Password: c.Password,
		Insecure: c.Insecure,
		Timeout:  c.Timeout,
	}
}

// PollerConfig returns the watch settings
func (c Config) PollerConfig() poller.Config {
	return poller.Config{
		Index:      c.Index,
		TopK:       c.TopK,
		Interval:   c.Interval,
		RetryDelay: c.RetryDelay,
	}
}

// ConfigureLogging applies the log level and the console formatter
func ConfigureLogging(level string) error {
	customFormatter := new(log.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	log.SetFormatter(customFormatter)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return nil
}
