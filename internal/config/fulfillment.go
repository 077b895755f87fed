package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FulfillmentConfig controls the generation retry policy. The values are
// operational knobs rather than contractual: no caller depends on the exact
// delay, so they can be tuned at runtime without a deploy.
type FulfillmentConfig struct {
	MaxAttempts      int           `mapstructure:"maxAttempts"`
	RetryDelay       time.Duration `mapstructure:"retryDelay"`
	GeneratorTimeout time.Duration `mapstructure:"generatorTimeout"`
	StuckThreshold   time.Duration `mapstructure:"stuckThreshold"`
}

func DefaultFulfillmentConfig() FulfillmentConfig {
	return FulfillmentConfig{
		MaxAttempts:      3,
		RetryDelay:       5 * time.Second,
		GeneratorTimeout: 2 * time.Minute,
		StuckThreshold:   10 * time.Minute,
	}
}

// FulfillmentConfigHolder holds the current retry policy and hot-reloads it
// when fulfillment.yml changes.
type FulfillmentConfigHolder struct {
	current atomic.Value // holds FulfillmentConfig
}

func NewFulfillmentConfigHolder() (*FulfillmentConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("fulfillment")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/pawprint/config") // Volume-mounted config
	v.AddConfigPath("/etc/pawprint")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("PAWPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFulfillmentConfig()
	v.SetDefault("fulfillment.maxAttempts", defaults.MaxAttempts)
	v.SetDefault("fulfillment.retryDelay", defaults.RetryDelay)
	v.SetDefault("fulfillment.generatorTimeout", defaults.GeneratorTimeout)
	v.SetDefault("fulfillment.stuckThreshold", defaults.StuckThreshold)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg FulfillmentConfig
	if err := v.UnmarshalKey("fulfillment", &cfg); err != nil {
		return nil, err
	}
	if err := validateFulfillmentConfig(cfg); err != nil {
		return nil, err
	}

	holder := &FulfillmentConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FulfillmentConfig
		if err := v.UnmarshalKey("fulfillment", &updated); err != nil {
			log.Printf("[fulfillment-config] reload failed: %v", err)
			return
		}
		if err := validateFulfillmentConfig(updated); err != nil {
			log.Printf("[fulfillment-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[fulfillment-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticFulfillmentConfigHolder returns a holder pinned to the given config.
// Used by tests and the worker harness.
func NewStaticFulfillmentConfigHolder(cfg FulfillmentConfig) *FulfillmentConfigHolder {
	holder := &FulfillmentConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *FulfillmentConfigHolder) Get() FulfillmentConfig {
	return h.current.Load().(FulfillmentConfig)
}

func validateFulfillmentConfig(cfg FulfillmentConfig) error {
	if cfg.MaxAttempts <= 0 {
		return errors.New("fulfillment.maxAttempts must be positive")
	}
	if cfg.RetryDelay <= 0 {
		return errors.New("fulfillment.retryDelay must be positive")
	}
	if cfg.GeneratorTimeout <= 0 {
		return errors.New("fulfillment.generatorTimeout must be positive")
	}
	if cfg.StuckThreshold < cfg.GeneratorTimeout {
		return errors.New("fulfillment.stuckThreshold must cover the generator timeout")
	}
	return nil
}
