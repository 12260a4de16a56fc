// Package config loads application settings from config.yaml and
// PROJECTDOCS_* environment variables.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"projectdocs/services"
)

// Config holds the full application configuration.
type Config struct {
	Quote  QuoteConfig  `yaml:"quote" mapstructure:"quote"`
	Render RenderConfig `yaml:"render" mapstructure:"render"`
	PDF    PDFConfig    `yaml:"pdf" mapstructure:"pdf"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// QuoteConfig holds the pricing defaults applied to every quote.
type QuoteConfig struct {
	LabourRate      float64 `yaml:"labour_rate" mapstructure:"labour_rate"`
	OverheadPercent float64 `yaml:"overhead_percent" mapstructure:"overhead_percent"`
	ProfitPercent   float64 `yaml:"profit_percent" mapstructure:"profit_percent"`
	VATRate         float64 `yaml:"vat_rate" mapstructure:"vat_rate"`
	VATRegistered   bool    `yaml:"vat_registered" mapstructure:"vat_registered"`
}

// RenderConfig configures the remote PDF service. An empty BaseURL disables
// it and every document is rendered locally.
type RenderConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// PDFConfig configures the local renderer.
type PDFConfig struct {
	Attribution string `yaml:"attribution" mapstructure:"attribution"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROJECTDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("quote.labour_rate", 45.0)
	v.SetDefault("quote.overhead_percent", 15.0)
	v.SetDefault("quote.profit_percent", 20.0)
	v.SetDefault("quote.vat_rate", 20.0)
	v.SetDefault("quote.vat_registered", true)
	v.SetDefault("render.base_url", "")
	v.SetDefault("render.api_key", "")
	v.SetDefault("render.timeout_secs", 30)
	v.SetDefault("render.concurrency", 3)
	v.SetDefault("pdf.attribution", services.DefaultAttribution)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "config: validate")
	}

	return &cfg, nil
}

// Validate implements validation.Validatable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Quote),
		validation.Field(&c.Render),
		validation.Field(&c.Log),
	)
}

// Validate implements validation.Validatable.
func (q QuoteConfig) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.LabourRate, validation.Min(0.0)),
		validation.Field(&q.OverheadPercent, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&q.ProfitPercent, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&q.VATRate, validation.Min(0.0), validation.Max(100.0)),
	)
}

// Validate implements validation.Validatable.
func (r RenderConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TimeoutSecs, validation.Min(1)),
		validation.Field(&r.Concurrency, validation.Min(1), validation.Max(len(services.DocumentKinds))),
	)
}

// Validate implements validation.Validatable.
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.In("json", "console")),
	)
}

// QuoteSettings converts the pricing defaults into quote settings.
func (c *Config) QuoteSettings() services.QuoteSettings {
	return services.QuoteSettings{
		LabourRate:      c.Quote.LabourRate,
		OverheadPercent: c.Quote.OverheadPercent,
		ProfitPercent:   c.Quote.ProfitPercent,
		VATRate:         c.Quote.VATRate,
		VATRegistered:   c.Quote.VATRegistered,
	}
}

// RemoteRenderer returns the configured remote renderer, or one that always
// fails when no base URL is set.
func (c *Config) RemoteRenderer() services.RemoteRenderer {
	if c.Render.BaseURL == "" {
		return services.DisabledRenderer{}
	}
	var opts []services.RemoteOption
	if c.Render.APIKey != "" {
		opts = append(opts, services.WithAPIKey(c.Render.APIKey))
	}
	timeout := time.Duration(c.Render.TimeoutSecs) * time.Second
	return services.NewHTTPRenderer(c.Render.BaseURL, timeout, opts...)
}

// NewLogger builds a zap logger for the given settings.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}
