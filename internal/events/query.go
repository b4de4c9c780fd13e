package events

import "time"

// Kinds of logical operation.
const (
	KindExecute = "execute"
	KindFetch   = "fetch"
	KindLines   = "lines"
	KindShow    = "show"
	KindUpload  = "upload"
)

// QueryStart is emitted before a logical operation opens its session.
type QueryStart struct {
	Kind  string
	Query string
}

// QueryFinish is emitted after the operation released its session. Rows is
// the number of decoded rows or lines, 0 for plain executions.
type QueryFinish struct {
	Kind     string
	Query    string
	Rows     int64
	Err      error
	Duration time.Duration
}
