package scidbgo

import (
	"net/http"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"golang.org/x/time/rate"

	"github.com/hanpama/scidbgo/internal/shim"
)

// DefaultURL is the gateway address used by tools when none is configured.
const DefaultURL = "http://localhost:8080"

type options struct {
	shim        []shim.Option
	logger      log.Logger
	alloc       memory.Allocator
	arrayPrefix string
}

// Option configures Connect.
type Option func(*options)

func defaultOptions() *options {
	return &options{logger: log.NewNopLogger(), alloc: memory.DefaultAllocator}
}

// WithHTTPDigestAuth authenticates every gateway request with HTTP digest
// authentication.
func WithHTTPDigestAuth(user, password string) Option {
	return func(o *options) { o.shim = append(o.shim, shim.WithDigestAuth(user, password)) }
}

// WithHTTPBasicAuth authenticates every gateway request with HTTP basic
// authentication.
func WithHTTPBasicAuth(user, password string) Option {
	return func(o *options) { o.shim = append(o.shim, shim.WithBasicAuth(user, password)) }
}

// WithSciDBAuth passes database credentials on query execution. It requires
// an https URL.
func WithSciDBAuth(user, password string) Option {
	return func(o *options) { o.shim = append(o.shim, shim.WithDatabaseAuth(user, password)) }
}

func WithInsecureSkipVerify() Option {
	return func(o *options) { o.shim = append(o.shim, shim.WithInsecureSkipVerify()) }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.shim = append(o.shim, shim.WithHTTPClient(c)) }
}

func WithRateLimit(l *rate.Limiter) Option {
	return func(o *options) { o.shim = append(o.shim, shim.WithRateLimit(l)) }
}

func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
			o.shim = append(o.shim, shim.WithLogger(l))
		}
	}
}

// WithAllocator sets the Arrow allocator used to decode results.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) {
		if mem != nil {
			o.alloc = mem
		}
	}
}

// WithArrayPrefix fixes the prefix of generated array names instead of a
// random per-connection one.
func WithArrayPrefix(prefix string) Option { return func(o *options) { o.arrayPrefix = prefix } }

// FetchOption configures DB.Fetch.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	attsOnly bool
	promote  bool
	schema   *Schema
}

// AttsOnly leaves dimension values out of the result.
func AttsOnly() FetchOption { return func(o *fetchOptions) { o.attsOnly = true } }

// Promote decodes nullable attributes as Arrow nulls. Without it a nullable
// attribute decodes as a {null, val} struct keeping the server's null code.
func Promote() FetchOption { return func(o *fetchOptions) { o.promote = true } }

// WithSchema skips asking the server for the result schema.
func WithSchema(s *Schema) FetchOption { return func(o *fetchOptions) { o.schema = s } }
