package shim

import (
	"net/http"

	"github.com/go-kit/log"
	"golang.org/x/time/rate"
)

// AuthScheme selects the HTTP authentication applied to every request.
type AuthScheme int

const (
	AuthNone AuthScheme = iota
	AuthBasic
	AuthDigest
)

// Options configures the gateway client.
//
// Defaults:
// - HTTPClient: a client with its own transport
// - Auth:       none
// - Logger:     discards everything
//
// Database credentials travel as query parameters on execute_query and
// cancel, so New refuses them unless the URL is https.
type Options struct {
	HTTPClient *http.Client

	Auth         AuthScheme
	HTTPUser     string
	HTTPPassword string

	DatabaseUser     string
	DatabasePassword string

	// InsecureSkipVerify disables TLS certificate checks. It only applies
	// to the client built by New, not to one supplied with WithHTTPClient.
	InsecureSkipVerify bool

	// Limiter, if set, paces outgoing requests.
	Limiter *rate.Limiter

	Logger log.Logger
}

// Option mutates Options
//
// Use WithX helpers below.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{Logger: log.NewNopLogger()}
}

func WithHTTPClient(c *http.Client) Option { return func(o *Options) { o.HTTPClient = c } }
func WithInsecureSkipVerify() Option       { return func(o *Options) { o.InsecureSkipVerify = true } }
func WithRateLimit(l *rate.Limiter) Option  { return func(o *Options) { o.Limiter = l } }

func WithLogger(l log.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithBasicAuth(user, password string) Option {
	return func(o *Options) { o.Auth, o.HTTPUser, o.HTTPPassword = AuthBasic, user, password }
}

func WithDigestAuth(user, password string) Option {
	return func(o *Options) { o.Auth, o.HTTPUser, o.HTTPPassword = AuthDigest, user, password }
}

func WithDatabaseAuth(user, password string) Option {
	return func(o *Options) { o.DatabaseUser, o.DatabasePassword = user, password }
}
