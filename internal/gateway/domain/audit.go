package domain

import "time"

// Request outcomes recorded in the audit trail.
const (
	OutcomeForwarded     = "forwarded"
	OutcomeRejected      = "rejected"
	OutcomeUpstreamError = "upstream_error"
)

// RequestAudit is one row of the gateway's audit trail: who asked for what,
// where it went, and how it ended.
type RequestAudit struct {
	ID         string // ULID, supplied by the caller
	Subject    string // authenticated subject, "" for rejected requests
	Upstream   string // configured upstream name
	Method     string
	Path       string
	Status     int    // status relayed to the client
	Outcome    string // one of the Outcome* constants
	Detail     string // failure class or upstream error, "" on success
	DurationMS int64
	CreatedAt  time.Time
}
