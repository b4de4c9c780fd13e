// Package config loads client settings from flags, SCIDB_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/hanpama/scidbgo"
)

// EnvPrefix prefixes every environment variable, e.g. SCIDB_HTTP_USER for
// http.user.
const EnvPrefix = "SCIDB"

// Config holds connection, logging and tracing settings.
type Config struct {
	URL           string
	HTTPUser      string
	HTTPPassword  string
	HTTPAuth      string // "digest" or "basic"
	SciDBUser     string
	SciDBPassword string
	Insecure      bool
	RateLimit     float64 // requests per second, 0 disables pacing
	LogLevel      string
	OtelEndpoint  string
	OtelService   string
	MetricsAddr   string
}

// RegisterFlags adds the settings to fs with their defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (yaml, json or toml)")
	fs.String("url", scidbgo.DefaultURL, "Gateway URL")
	fs.String("http.user", "", "HTTP auth user")
	fs.String("http.password", "", "HTTP auth password")
	fs.String("http.auth", "digest", "HTTP auth scheme: digest or basic")
	fs.String("scidb.user", "", "Database user (https only)")
	fs.String("scidb.password", "", "Database password (https only)")
	fs.Bool("insecure", false, "Skip TLS certificate verification")
	fs.Float64("rate-limit", 0, "Max gateway requests per second")
	fs.String("log.level", "info", "Log level: debug, info, warn or error")
	fs.String("otel.endpoint", "", "OTLP collector endpoint")
	fs.String("otel.service", "scidbq", "OpenTelemetry service name")
	fs.String("metrics.addr", "", "Serve Prometheus metrics on this address while running")
}

// Load resolves the settings registered on fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	c := &Config{
		URL:           v.GetString("url"),
		HTTPUser:      v.GetString("http.user"),
		HTTPPassword:  v.GetString("http.password"),
		HTTPAuth:      strings.ToLower(v.GetString("http.auth")),
		SciDBUser:     v.GetString("scidb.user"),
		SciDBPassword: v.GetString("scidb.password"),
		Insecure:      v.GetBool("insecure"),
		RateLimit:     v.GetFloat64("rate-limit"),
		LogLevel:      v.GetString("log.level"),
		OtelEndpoint:  v.GetString("otel.endpoint"),
		OtelService:   v.GetString("otel.service"),
		MetricsAddr:   v.GetString("metrics.addr"),
	}
	switch c.HTTPAuth {
	case "", "digest", "basic":
	default:
		return nil, errors.Newf("config: unknown http.auth %q", c.HTTPAuth)
	}
	if c.RateLimit < 0 {
		return nil, errors.Newf("config: negative rate-limit %v", c.RateLimit)
	}
	return c, nil
}

// Options converts c into connection options.
func (c *Config) Options() []scidbgo.Option {
	var opts []scidbgo.Option
	if c.HTTPUser != "" {
		if c.HTTPAuth == "basic" {
			opts = append(opts, scidbgo.WithHTTPBasicAuth(c.HTTPUser, c.HTTPPassword))
		} else {
			opts = append(opts, scidbgo.WithHTTPDigestAuth(c.HTTPUser, c.HTTPPassword))
		}
	}
	if c.SciDBUser != "" {
		opts = append(opts, scidbgo.WithSciDBAuth(c.SciDBUser, c.SciDBPassword))
	}
	if c.Insecure {
		opts = append(opts, scidbgo.WithInsecureSkipVerify())
	}
	if c.RateLimit > 0 {
		opts = append(opts, scidbgo.WithRateLimit(rate.NewLimiter(rate.Limit(c.RateLimit), 1)))
	}
	return opts
}
