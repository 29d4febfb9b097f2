package datastructure

import (
	"errors"
	"time"
)

// SolveRequest validation sentinels. Plain values keep Validate free of
// allocation.
var (
	ErrZeroDuration   = errors.New("duration_minutes must be positive")
	ErrNonFiniteStart = errors.New("start coordinate must be finite")
	ErrNonFiniteEnd   = errors.New("end coordinate must be finite")
	ErrZeroMaxNodes   = errors.New("max_nodes must be positive when set")
)

// SolveRequest describes one tour request at the library boundary.
type SolveRequest struct {
	Start           Coordinate      `json:"start"`
	End             *Coordinate     `json:"end,omitempty"`
	DurationMinutes uint16          `json:"duration_minutes"`
	Interests       InterestProfile `json:"interests"`
	Seed            uint64          `json:"seed"`
	MaxNodes        *uint16         `json:"max_nodes,omitempty"`
}

// Validate is idempotent and does not allocate.
func (r *SolveRequest) Validate() error {
	if r.DurationMinutes == 0 {
		return ErrZeroDuration
	}
	if !r.Start.IsFinite() {
		return ErrNonFiniteStart
	}
	if r.End != nil && !r.End.IsFinite() {
		return ErrNonFiniteEnd
	}
	if r.MaxNodes != nil && *r.MaxNodes == 0 {
		return ErrZeroMaxNodes
	}
	return nil
}

// Budget is the walking time the returned route must stay within.
func (r *SolveRequest) Budget() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// PointToPoint reports whether the tour ends somewhere other than start.
// An end equal to start is the same round trip as no end at all.
func (r *SolveRequest) PointToPoint() bool {
	return r.End != nil && *r.End != r.Start
}

// Diagnostics is the telemetry attached to a solve response.
type Diagnostics struct {
	SolveTime           time.Duration `json:"solve_time"`
	CandidatesEvaluated int           `json:"candidates_evaluated"`
}

type SolveResponse struct {
	Route       Route       `json:"route"`
	Score       float32     `json:"score"`
	Diagnostics Diagnostics `json:"diagnostics"`
}
