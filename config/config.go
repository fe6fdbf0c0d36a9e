package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/resolvekit/resolveguard/internal/circuitbreaker"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Environment  string `mapstructure:"environment"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

type DownstreamConfig struct {
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

// PolicyConfig tunes one circuit breaker. Zero-valued fields fall back to the
// default policy, then to the package defaults of internal/circuitbreaker.
type PolicyConfig struct {
	Name                          string `mapstructure:"name"`
	FailureRateThreshold          int    `mapstructure:"failure_rate_threshold"`
	WaitDurationInOpenState       string `mapstructure:"wait_duration_in_open_state"`
	RingBufferSizeInClosedState   int    `mapstructure:"ring_buffer_size_in_closed_state"`
	RingBufferSizeInHalfOpenState int    `mapstructure:"ring_buffer_size_in_half_open_state"`
}

type BreakerConfig struct {
	ThrowOnOpen bool                    `mapstructure:"throw_on_open"`
	Default     PolicyConfig            `mapstructure:"default"`
	Dispatch    map[string]PolicyConfig `mapstructure:"dispatch"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Downstream DownstreamConfig `mapstructure:"downstream"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("downstream.timeout", "5s")
	viper.SetDefault("breaker.default.wait_duration_in_open_state", "60s")
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.By(validateOptionalDuration)),
					validation.Field(&sc.WriteTimeout, validation.By(validateOptionalDuration)),
					validation.Field(&sc.IdleTimeout, validation.By(validateOptionalDuration)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Downstream,
			validation.Required,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DownstreamConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DownstreamConfig")
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.URL,
						validation.Required,
						validation.By(validateDownstreamURL),
					),
					validation.Field(&dc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				if err := validatePolicy(bc.Default); err != nil {
					return err
				}
				for key, policy := range bc.Dispatch {
					if err := validatePolicy(policy); err != nil {
						return validation.NewError("validation_invalid_policy", "dispatch key "+key+": "+err.Error())
					}
				}
				return nil
			}),
		),
	)
}

// Options resolves a dispatch policy into breaker options, filling unset
// fields from the default policy. The resulting option set still goes through
// circuitbreaker.BuildConfig, which applies the package defaults and bounds.
func (c *Config) Options(policy PolicyConfig) (circuitbreaker.Options, error) {
	merged := policy.merged(c.Breaker.Default)

	opts := circuitbreaker.Options{
		FailureRateThreshold:          merged.FailureRateThreshold,
		RingBufferSizeInClosedState:   merged.RingBufferSizeInClosedState,
		RingBufferSizeInHalfOpenState: merged.RingBufferSizeInHalfOpenState,
	}

	if merged.WaitDurationInOpenState != "" {
		wait, err := time.ParseDuration(merged.WaitDurationInOpenState)
		if err != nil {
			return circuitbreaker.Options{}, err
		}
		opts.WaitDurationInOpenStateMs = int(wait / time.Millisecond)
	}

	return opts, nil
}

func (p PolicyConfig) merged(def PolicyConfig) PolicyConfig {
	if p.FailureRateThreshold == 0 {
		p.FailureRateThreshold = def.FailureRateThreshold
	}
	if p.WaitDurationInOpenState == "" {
		p.WaitDurationInOpenState = def.WaitDurationInOpenState
	}
	if p.RingBufferSizeInClosedState == 0 {
		p.RingBufferSizeInClosedState = def.RingBufferSizeInClosedState
	}
	if p.RingBufferSizeInHalfOpenState == 0 {
		p.RingBufferSizeInHalfOpenState = def.RingBufferSizeInHalfOpenState
	}
	return p
}

func validatePolicy(p PolicyConfig) error {
	if p.FailureRateThreshold < 0 || p.FailureRateThreshold > 100 {
		return validation.NewError("validation_invalid_threshold", "failure_rate_threshold must be between 1 and 100")
	}
	if p.RingBufferSizeInClosedState < 0 || p.RingBufferSizeInHalfOpenState < 0 {
		return validation.NewError("validation_invalid_buffer", "ring buffer sizes must be positive")
	}
	if p.WaitDurationInOpenState != "" {
		if err := validateDuration(p.WaitDurationInOpenState); err != nil {
			return err
		}
	}
	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateOptionalDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if durationStr == "" {
		return nil
	}
	return validateDuration(durationStr)
}

func validateDownstreamURL(value interface{}) error {
	downstreamURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if downstreamURL == "" {
		return validation.NewError("validation_empty_url", "downstream URL cannot be empty")
	}

	parsedURL, err := url.Parse(downstreamURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
