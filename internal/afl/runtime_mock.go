package afl

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"

	"github.com/hanpama/scidbgo/internal/catalog"
	"github.com/hanpama/scidbgo/internal/schema"
)

// Call kinds recorded by MockRuntime.
const (
	CallExecute = "execute"
	CallFetch   = "fetch"
	CallSchema  = "schema"
	CallUpload  = "upload"
)

// MockCall is one recorded Runtime invocation.
type MockCall struct {
	Kind  string
	Query string
	Data  []byte
}

// MockRuntime implements Runtime without a server. It records every call,
// answers Schema from a query -> schema table and fails queries registered
// with Fail.
type MockRuntime struct {
	mu       sync.Mutex
	registry *catalog.Registry
	names    *NameGenerator
	calls    []MockCall
	schemas  map[string]*schema.Schema
	errs     map[string]error
	token    string
	logger   log.Logger
}

// NewMockRuntime creates a MockRuntime over reg, or the builtin registry
// when reg is nil. Generated names are mock_1, mock_2, ...
func NewMockRuntime(reg *catalog.Registry) *MockRuntime {
	if reg == nil {
		reg = catalog.Builtin()
	}
	return &MockRuntime{
		registry: reg,
		names:    NewPrefixedNameGenerator("mock"),
		schemas:  make(map[string]*schema.Schema),
		errs:     make(map[string]error),
		token:    "/tmp/upload",
		logger:   log.NewNopLogger(),
	}
}

// SetSchema registers the schema Schema returns for query.
func (m *MockRuntime) SetSchema(query string, s *schema.Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[query] = s
}

// SetLogger replaces the nop logger returned by Logger.
func (m *MockRuntime) SetLogger(l log.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = l
}

// Fail makes every call for query return err.
func (m *MockRuntime) Fail(query string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[query] = err
}

// Calls returns a copy of the call log.
func (m *MockRuntime) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// Queries returns the queries of calls of the given kind, in order.
func (m *MockRuntime) Queries(kind string) []string {
	var out []string
	for _, c := range m.Calls() {
		if c.Kind == kind {
			out = append(out, c.Query)
		}
	}
	return out
}

func (m *MockRuntime) record(kind, query string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Kind: kind, Query: query, Data: data})
	return m.errs[query]
}

func (m *MockRuntime) Registry() *catalog.Registry { return m.registry }

func (m *MockRuntime) NewArrayName() string { return m.names.Next() }

func (m *MockRuntime) Logger() log.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logger
}

func (m *MockRuntime) Execute(_ context.Context, query string) error {
	return m.record(CallExecute, query, nil)
}

// Fetch returns an empty record with no columns.
func (m *MockRuntime) Fetch(_ context.Context, query string, _ FetchOptions) (arrow.Record, error) {
	if err := m.record(CallFetch, query, nil); err != nil {
		return nil, err
	}
	rb := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema(nil, nil))
	defer rb.Release()
	return rb.NewRecord(), nil
}

func (m *MockRuntime) Schema(_ context.Context, query string) (*schema.Schema, error) {
	if err := m.record(CallSchema, query, nil); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schemas[query]
	if !ok {
		return nil, errors.Newf("mock runtime: no schema for %q", query)
	}
	return s.Clone(), nil
}

// Upload records the rendered query with the uploaded data. Fail matches
// the rendered query.
func (m *MockRuntime) Upload(_ context.Context, data []byte, render func(token string) string) error {
	return m.record(CallUpload, render(m.token), data)
}
