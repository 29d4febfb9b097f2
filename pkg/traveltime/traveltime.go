// Package traveltime fetches pairwise walking times between points of
// interest. The production implementation talks to an OSRM table endpoint;
// the solver only sees the Provider interface.
package traveltime

import (
	"context"
	"errors"
	"fmt"

	"github.com/wildside/wildside/pkg/datastructure"
)

// Provider returns a square matrix where entry (i, j) is the travel time
// from pois[i] to pois[j]. Implementations must be safe for concurrent use
// and must reject an empty input with ErrEmptyInput.
type Provider interface {
	GetTravelTimeMatrix(ctx context.Context, pois []datastructure.PointOfInterest) (datastructure.TravelTimeMatrix, error)
}

var (
	ErrEmptyInput = errors.New("at least one point of interest is required")
	ErrTimeout    = errors.New("routing request timed out")
)

// HTTPError reports a non-2xx status from the routing service.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("routing request to %s failed with status %d", e.URL, e.Status)
}

// NetworkError reports a transport-level failure before any response
// arrived.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error contacting routing service at %s: %s", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a response body the adapter could not turn into a
// travel-time matrix.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed routing response: %s: %s", e.Reason, e.Err)
	}
	return "malformed routing response: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ServiceError reports a well-formed error reply, e.g. code "InvalidQuery"
// for coordinates the service refuses.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("routing service error: %s - %s", e.Code, e.Message)
}
