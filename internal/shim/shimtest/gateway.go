// Package shimtest provides an in-process fake of the HTTP gateway for tests.
package shimtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/icholy/digest"
)

// Responder answers one execute_query call. The returned bytes are kept as
// the saved result of the session. A returned error becomes a 500 response
// whose body is the error text.
type Responder func(query, save string) ([]byte, error)

// Call records one request received by the gateway.
type Call struct {
	Method   string
	Endpoint string
	Params   url.Values
	Body     []byte
	User     string
	Password string
	HasAuth  bool
	// DigestUser is the username of an accepted digest Authorization.
	DigestUser string
}

type failure struct {
	status int
	body   string
}

type session struct {
	result   []byte
	read     int
	released bool
}

// Gateway is a fake gateway served by httptest. Sessions are numbered from 1.
type Gateway struct {
	respond Responder
	server  *httptest.Server

	mu       sync.Mutex
	next     int
	sessions map[string]*session
	uploads  map[string][]byte
	calls    []Call
	fail     map[string][]failure

	digest     *digest.Challenge
	digestUser string
	digestPass string
	challenges int
}

// New starts a gateway answering queries with respond. A nil respond
// returns empty results for every query.
func New(respond Responder) *Gateway {
	g := newGateway(respond)
	g.server = httptest.NewServer(g)
	return g
}

// NewTLS is like New but serves https. Use Client for a client that trusts
// the test certificate.
func NewTLS(respond Responder) *Gateway {
	g := newGateway(respond)
	g.server = httptest.NewTLSServer(g)
	return g
}

func newGateway(respond Responder) *Gateway {
	if respond == nil {
		respond = func(string, string) ([]byte, error) { return nil, nil }
	}
	g := &Gateway{
		respond:  respond,
		sessions: make(map[string]*session),
		uploads:  make(map[string][]byte),
		fail:     make(map[string][]failure),
	}
	return g
}

// RequireDigest makes the gateway answer every request lacking valid
// digest credentials for user and password with a 401 challenge.
func (g *Gateway) RequireDigest(user, password string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.digest = &digest.Challenge{
		Realm:     "scidb",
		Nonce:     "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		Opaque:    "5ccc069c403ebaf9f0171e9517f40e41",
		Algorithm: "MD5",
		QOP:       []string{"auth"},
	}
	g.digestUser, g.digestPass = user, password
}

// Challenges returns the number of requests rejected with a digest challenge.
func (g *Gateway) Challenges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.challenges
}

// URL is the base URL of the gateway.
func (g *Gateway) URL() string { return g.server.URL }

// Client returns an HTTP client configured for the gateway.
func (g *Gateway) Client() *http.Client { return g.server.Client() }

// Close shuts the server down.
func (g *Gateway) Close() { g.server.Close() }

// FailNext makes the next request to endpoint fail with status and body.
func (g *Gateway) FailNext(endpoint string, status int, body string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[endpoint] = append(g.fail[endpoint], failure{status: status, body: body})
}

// Calls returns a copy of every request received so far.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// Endpoints returns the endpoint names of the received requests, in order.
func (g *Gateway) Endpoints() []string {
	var out []string
	for _, c := range g.Calls() {
		out = append(out, c.Endpoint)
	}
	return out
}

// Queries returns the text of every execute_query request, in order.
func (g *Gateway) Queries() []string {
	var out []string
	for _, c := range g.Calls() {
		if c.Endpoint == "execute_query" {
			out = append(out, c.Params.Get("query"))
		}
	}
	return out
}

// OpenSessions returns the ids of sessions not yet released.
func (g *Gateway) OpenSessions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for i := 1; i <= g.next; i++ {
		id := strconv.Itoa(i)
		if s, ok := g.sessions[id]; ok && !s.released {
			out = append(out, id)
		}
	}
	return out
}

// Uploaded returns the payload stored under a file token.
func (g *Gateway) Uploaded(token string) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uploads[token]
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	endpoint := strings.TrimPrefix(r.URL.Path, "/")
	params := r.URL.Query()
	user, pass, hasAuth := r.BasicAuth()

	g.mu.Lock()
	digestUser, ok := g.authorize(r)
	if !ok {
		g.challenges++
		w.Header().Set("WWW-Authenticate", g.digest.String())
		g.mu.Unlock()
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	g.calls = append(g.calls, Call{
		Method:     r.Method,
		Endpoint:   endpoint,
		Params:     params,
		Body:       body,
		User:       user,
		Password:   pass,
		HasAuth:    hasAuth,
		DigestUser: digestUser,
	})
	if fs := g.fail[endpoint]; len(fs) > 0 {
		g.fail[endpoint] = fs[1:]
		g.mu.Unlock()
		http.Error(w, fs[0].body, fs[0].status)
		return
	}
	g.mu.Unlock()

	switch endpoint {
	case "new_session":
		g.mu.Lock()
		g.next++
		id := strconv.Itoa(g.next)
		g.sessions[id] = &session{}
		g.mu.Unlock()
		io.WriteString(w, id)
	case "execute_query":
		s, ok := g.session(params.Get("id"))
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		out, err := g.respond(params.Get("query"), params.Get("save"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		g.mu.Lock()
		s.result, s.read = out, 0
		if params.Get("release") == "1" {
			s.released = true
		}
		g.mu.Unlock()
		io.WriteString(w, "0")
	case "read_bytes":
		s, ok := g.session(params.Get("id"))
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		n, _ := strconv.Atoi(params.Get("n"))
		g.mu.Lock()
		rest := s.result[s.read:]
		if n > 0 && n < len(rest) {
			rest = rest[:n]
		}
		s.read += len(rest)
		g.mu.Unlock()
		w.Write(rest)
	case "release_session":
		s, ok := g.session(params.Get("id"))
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		g.mu.Lock()
		s.released = true
		g.mu.Unlock()
	case "upload":
		id := params.Get("id")
		if _, ok := g.session(id); !ok || r.Method != http.MethodPost {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		token := fmt.Sprintf("/tmp/shim_input_buf_%s", id)
		g.mu.Lock()
		g.uploads[token] = body
		g.mu.Unlock()
		io.WriteString(w, token+"\r\n")
	case "cancel":
		if _, ok := g.session(params.Get("id")); !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
		}
	default:
		http.NotFound(w, r)
	}
}

// authorize checks the digest credentials of r against the configured
// challenge. It must be called with g.mu held.
func (g *Gateway) authorize(r *http.Request) (string, bool) {
	if g.digest == nil {
		return "", true
	}
	h := r.Header.Get("Authorization")
	if !digest.IsDigest(h) {
		return "", false
	}
	cred, err := digest.ParseCredentials(h)
	if err != nil || cred.Username != g.digestUser || cred.Nonce != g.digest.Nonce || cred.URI != r.URL.RequestURI() {
		return "", false
	}
	want, err := digest.Digest(g.digest, digest.Options{
		Method:   r.Method,
		URI:      cred.URI,
		Count:    cred.Nc,
		Cnonce:   cred.Cnonce,
		Username: g.digestUser,
		Password: g.digestPass,
	})
	if err != nil || want.Response != cred.Response {
		return "", false
	}
	return cred.Username, true
}

func (g *Gateway) session(id string) (*session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok || s.released {
		return nil, false
	}
	return s, true
}
