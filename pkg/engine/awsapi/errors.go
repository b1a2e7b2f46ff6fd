package awsapi

import "fmt"

// maxErrorBody caps how much of an error response is retained.
const maxErrorBody = 512

// UpstreamError describes a failed provider API call: a non-2xx response,
// a timeout, or a body that could not be decoded. Callers at the enumerator
// and metrics boundaries log it and degrade to empty results; it is never
// fatal to a scan on its own.
type UpstreamError struct {
	Service    Service
	Action     string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Service, e.Action, e.Err)
	}
	return fmt.Sprintf("%s %s: upstream status %d: %s", e.Service, e.Action, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody])
	}
	return string(b)
}
