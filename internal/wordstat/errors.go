package wordstat

import "fmt"

// ErrorKind classifies a failed API call. The engine retries only transient
// kinds; everything else is scoped to the phrase being processed.
type ErrorKind string

const (
	// KindNetwork is a transport failure (connection refused, timeout).
	KindNetwork ErrorKind = "network"
	// KindAuth is a rejected credential (401/403).
	KindAuth ErrorKind = "auth"
	// KindQuota is the upstream quota ceiling (429).
	KindQuota ErrorKind = "quota"
	// KindMalformed is an unparseable or invalid response/request (400, bad JSON).
	KindMalformed ErrorKind = "malformed"
	// KindServer is an upstream 5xx, treated as transient.
	KindServer ErrorKind = "server"
)

// APIError is a classified failure from the Wordstat API.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("wordstat api: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("wordstat api: %s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the engine may retry this failure with backoff.
func (e *APIError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindQuota
	case status >= 500:
		return KindServer
	default:
		return KindMalformed
	}
}
