package models

import "time"

// Outcome classifies a single provider attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeHTTPError Outcome = "http_error"
	OutcomeTransport Outcome = "transport_error"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeMalformed Outcome = "malformed"
	OutcomeEmpty     Outcome = "empty_response"
	OutcomeDeclined  Outcome = "declined"
)

// ProviderAttempt describes one network call made by the orchestrator.
type ProviderAttempt struct {
	RequestID     string    `json:"request_id"`
	Fingerprint   string    `json:"fingerprint"`
	Feature       Feature   `json:"feature"`
	EndpointIndex int       `json:"endpoint_index"`
	EndpointName  string    `json:"endpoint_name"`
	AttemptNumber int       `json:"attempt_number"`
	StartedAt     time.Time `json:"started_at"`
	TimeoutMs     int64     `json:"timeout_ms"`
	LatencyMs     int64     `json:"latency_ms"`
	Outcome       Outcome   `json:"outcome"`
	StatusCode    int       `json:"status_code,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// AttemptQueryOpts filters persisted attempts.
type AttemptQueryOpts struct {
	RequestID string
	Endpoint  string
	Outcome   Outcome
	Since     time.Time
	Limit     int
}

// AttemptStat aggregates attempts per outcome and day.
type AttemptStat struct {
	Outcome Outcome `json:"outcome"`
	Day     string  `json:"day"`
	Count   int     `json:"count"`
}
