package events

import "time"

// GatewayStart is emitted before a request to the HTTP gateway.
type GatewayStart struct {
	Endpoint string
	Session  string
}

// GatewayFinish is emitted after a gateway request completes. Status is 0
// when no response was received.
type GatewayFinish struct {
	Endpoint string
	Session  string
	Status   int
	Bytes    int
	Err      error
	Duration time.Duration
}
