// Package shim is a client for the stateless HTTP gateway in front of the
// array database. Every logical operation opens its own session, executes
// one query, optionally reads the saved result back and releases the
// session.
package shim

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log/level"
	"github.com/icholy/digest"

	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/events"
)

// Endpoint names a gateway endpoint.
type Endpoint string

const (
	EndpointNewSession     Endpoint = "new_session"
	EndpointExecuteQuery   Endpoint = "execute_query"
	EndpointReadBytes      Endpoint = "read_bytes"
	EndpointReleaseSession Endpoint = "release_session"
	EndpointUpload         Endpoint = "upload"
	EndpointCancel         Endpoint = "cancel"
)

// Client talks to one gateway. It is safe for concurrent use; sessions are
// not.
type Client struct {
	base *url.URL
	opts *Options
	http *http.Client
}

// New validates opts against rawURL and returns a client. No request is made.
func New(rawURL string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "shim: parse url %q", rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &ConfigurationError{Reason: "unsupported url scheme " + u.Scheme}
	}
	if o.DatabaseUser != "" && scheme != "https" {
		return nil, &ConfigurationError{Reason: "database credentials can only be used with https connections"}
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{base: u, opts: o, http: buildHTTPClient(o)}, nil
}

func buildHTTPClient(o *Options) *http.Client {
	var c http.Client
	if o.HTTPClient != nil {
		c = *o.HTTPClient
	} else {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if o.InsecureSkipVerify {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		c.Transport = tr
	}
	if o.Auth == AuthDigest {
		c.Transport = &digest.Transport{
			Username:  o.HTTPUser,
			Password:  o.HTTPPassword,
			Transport: c.Transport,
		}
	}
	return &c
}

// URL returns the gateway base URL.
func (c *Client) URL() string { return c.base.String() }

func (c *Client) do(ctx context.Context, ep Endpoint, session string, params url.Values, body []byte) ([]byte, error) {
	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return nil, errors.Wrapf(err, "shim: %s", ep)
		}
	}
	if c.opts.DatabaseUser != "" && (ep == EndpointExecuteQuery || ep == EndpointCancel) {
		params.Set("user", c.opts.DatabaseUser)
		params.Set("password", c.opts.DatabasePassword)
	}
	u := c.base.ResolveReference(&url.URL{Path: string(ep)})
	u.RawQuery = params.Encode()

	method, rd := http.MethodGet, io.Reader(nil)
	if body != nil {
		method, rd = http.MethodPost, bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errors.Wrapf(err, "shim: %s", ep)
	}
	if c.opts.Auth == AuthBasic {
		req.SetBasicAuth(c.opts.HTTPUser, c.opts.HTTPPassword)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GatewayStart{Endpoint: string(ep), Session: session})
	status, data, err := c.roundTrip(req, ep)
	dur := time.Since(start)
	eventbus.Publish(ctx, events.GatewayFinish{
		Endpoint: string(ep),
		Session:  session,
		Status:   status,
		Bytes:    len(data),
		Err:      err,
		Duration: dur,
	})
	level.Debug(c.opts.Logger).Log("msg", "gateway request", "endpoint", ep, "session", session,
		"status", status, "bytes", len(data), "dur", dur, "err", err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) roundTrip(req *http.Request, ep Endpoint) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "shim: %s", ep)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrapf(err, "shim: %s: read body", ep)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, data, &TransportError{Endpoint: string(ep), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp.StatusCode, data, nil
}

// NewSession opens a gateway session.
func (c *Client) NewSession(ctx context.Context) (*Session, error) {
	data, err := c.do(ctx, EndpointNewSession, "", url.Values{}, nil)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return nil, errors.New("shim: new_session returned an empty session id")
	}
	return &Session{c: c, id: id}, nil
}

// WithSession opens a session, runs fn and releases the session on every
// path. A release failure after fn failed is attached to fn's error as a
// secondary error; otherwise it is returned.
func (c *Client) WithSession(ctx context.Context, fn func(*Session) error) (err error) {
	s, err := c.NewSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		rerr := s.Release(context.WithoutCancel(ctx))
		if rerr == nil {
			return
		}
		if err != nil {
			level.Warn(c.opts.Logger).Log("msg", "release after failure", "session", s.id, "err", rerr)
			err = errors.WithSecondaryError(err, rerr)
			return
		}
		err = rerr
	}()
	return fn(s)
}
