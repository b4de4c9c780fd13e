package shim

import "fmt"

// TransportError reports a non-success gateway response. Body is the text the
// gateway sent back, usually the database error message.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("shim: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ConfigurationError reports an illegal combination of client options. It is
// returned by New, before any request is made.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "shim: " + e.Reason }
