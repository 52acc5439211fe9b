package ingest

import (
	"errors"
	"fmt"
)

// ErrInFlight is returned when a run is requested while another one holds
// the pipeline. The request is dropped, not queued.
var ErrInFlight = errors.New("ingest: run already in flight")

// NetworkError is a failed attempt against one mirror: transport error,
// timeout, non-success status or a broken body stream.
type NetworkError struct {
	Mirror string
	Status int // 0 when no response was received
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("ingest: mirror %s: status %d: %v", e.Mirror, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("ingest: mirror %s: unexpected status %d", e.Mirror, e.Status)
	default:
		return fmt.Sprintf("ingest: mirror %s: %v", e.Mirror, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError rejects a downloaded buffer before anything is committed.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest: invalid list: %s: %v", e.Reason, e.Err)
	}
	return "ingest: invalid list: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }
