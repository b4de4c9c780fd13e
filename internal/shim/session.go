package shim

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Session is one server-side gateway session. It is not safe for concurrent
// use.
type Session struct {
	c        *Client
	id       string
	released bool
}

// ID returns the server-issued session id.
func (s *Session) ID() string { return s.id }

// Released reports whether the server has released the session.
func (s *Session) Released() bool { return s.released }

type execOptions struct {
	save    string
	release bool
}

// ExecOption configures Execute.
type ExecOption func(*execOptions)

// Save asks the gateway to keep the result in format for a later read:
// "tsv" for line-oriented text or a binary format spec such as
// "(int64 null,string)".
func Save(format string) ExecOption { return func(o *execOptions) { o.save = format } }

// Release asks the gateway to release the session once the query ran.
func Release() ExecOption { return func(o *execOptions) { o.release = true } }

// Execute runs query in the session and returns the gateway's response text.
func (s *Session) Execute(ctx context.Context, query string, opts ...ExecOption) (string, error) {
	var o execOptions
	for _, f := range opts {
		f(&o)
	}
	params := url.Values{"id": {s.id}, "query": {query}}
	if o.save != "" {
		params.Set("save", o.save)
	}
	if o.release {
		params.Set("release", "1")
	}
	data, err := s.c.do(ctx, EndpointExecuteQuery, s.id, params, nil)
	if err != nil {
		return "", err
	}
	if o.release {
		s.released = true
	}
	return string(data), nil
}

// ReadBytes reads up to n bytes of the saved result; n == 0 reads to the end.
func (s *Session) ReadBytes(ctx context.Context, n int) ([]byte, error) {
	params := url.Values{"id": {s.id}, "n": {strconv.Itoa(n)}}
	return s.c.do(ctx, EndpointReadBytes, s.id, params, nil)
}

// ReadAll reads the whole saved result.
func (s *Session) ReadAll(ctx context.Context) ([]byte, error) { return s.ReadBytes(ctx, 0) }

// Upload posts data to the session and returns the server-side file token to
// substitute into an ingestion query.
func (s *Session) Upload(ctx context.Context, data []byte) (string, error) {
	if data == nil {
		data = []byte{}
	}
	resp, err := s.c.do(ctx, EndpointUpload, s.id, url.Values{"id": {s.id}}, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(resp)), nil
}

// Cancel asks the gateway to cancel the query running in the session.
func (s *Session) Cancel(ctx context.Context) error {
	_, err := s.c.do(ctx, EndpointCancel, s.id, url.Values{"id": {s.id}}, nil)
	return err
}

// Release releases the session. It is a no-op once a release succeeded.
func (s *Session) Release(ctx context.Context) error {
	if s.released {
		return nil
	}
	if _, err := s.c.do(ctx, EndpointReleaseSession, s.id, url.Values{"id": {s.id}}, nil); err != nil {
		return err
	}
	s.released = true
	return nil
}
