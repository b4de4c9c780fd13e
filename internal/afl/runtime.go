// Package afl builds operator expressions of the array query language,
// executes the ones that must run immediately and defers the rest until a
// result is requested.
package afl

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log"

	"github.com/hanpama/scidbgo/internal/catalog"
	"github.com/hanpama/scidbgo/internal/schema"
)

// FetchOptions controls how a query result is downloaded and decoded.
type FetchOptions struct {
	// AttsOnly leaves dimension values out of the result.
	AttsOnly bool
	// Promote decodes nullable attributes as Arrow nulls instead of
	// {null, val} structs.
	Promote bool
	// Schema is used instead of asking the server for the result schema.
	Schema *schema.Schema
}

// Runtime executes rendered queries on behalf of expression nodes. Each
// call is one logical operation with its own gateway session.
type Runtime interface {
	// Registry is the operator catalog names are resolved against.
	Registry() *catalog.Registry
	// Execute runs query without reading its result.
	Execute(ctx context.Context, query string) error
	// Fetch runs query and decodes its result.
	Fetch(ctx context.Context, query string, opts FetchOptions) (arrow.Record, error)
	// Schema returns the schema of query's result.
	Schema(ctx context.Context, query string) (*schema.Schema, error)
	// Upload posts data and runs the query returned by render for the
	// server-side file token.
	Upload(ctx context.Context, data []byte, render func(token string) string) error
	// NewArrayName returns a name no other call on this runtime returns.
	NewArrayName() string
	// Logger receives failures of background work such as removing
	// arrays whose handles were garbage collected.
	Logger() log.Logger
}
