// Package logging builds go-kit loggers with a level filter.
package logging

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// New returns a logfmt logger writing to w that drops records below lvl
// (debug, info, warn or error; empty means info).
func New(w io.Writer, lvl string) (log.Logger, error) {
	opt, err := parseLevel(lvl)
	if err != nil {
		return nil, err
	}
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
	return level.NewFilter(l, opt), nil
}

// Nop returns a logger that discards everything.
func Nop() log.Logger { return log.NewNopLogger() }

func parseLevel(lvl string) (level.Option, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	}
	return nil, errors.Newf("logging: unknown level %q", lvl)
}
