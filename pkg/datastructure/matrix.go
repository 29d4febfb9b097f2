package datastructure

import (
	"fmt"
	"math"
	"time"
)

// MaxDuration marks an unreachable pair in a travel-time matrix.
const MaxDuration = time.Duration(math.MaxInt64)

// TravelTimeMatrix is a square matrix of non-negative durations; entry
// (i, j) is the travel time from POI i to POI j and the diagonal is zero.
type TravelTimeMatrix [][]time.Duration

func NewTravelTimeMatrix(n int) TravelTimeMatrix {
	m := make(TravelTimeMatrix, n)
	for i := range m {
		m[i] = make([]time.Duration, n)
	}
	return m
}

func (m TravelTimeMatrix) Dim() int {
	return len(m)
}

func (m TravelTimeMatrix) At(i, j int) time.Duration {
	return m[i][j]
}

func (m TravelTimeMatrix) Set(i, j int, d time.Duration) {
	m[i][j] = d
}

// Validate checks squareness, non-negative entries and a zero diagonal.
func (m TravelTimeMatrix) Validate() error {
	n := len(m)
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("travel time matrix row %d has %d entries, want %d", i, len(row), n)
		}
		for j, d := range row {
			if d < 0 {
				return fmt.Errorf("travel time matrix entry (%d,%d) is negative", i, j)
			}
		}
		if row[i] != 0 {
			return fmt.Errorf("travel time matrix diagonal entry %d is not zero", i)
		}
	}
	return nil
}
