// Package solver turns a tour request into an ordered walking route. It
// selects candidate POIs around the start point, scores them for the
// visitor, fetches a travel-time matrix and runs a seeded metaheuristic
// that maximises the collected score within the walking budget.
package solver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/concurrent"
	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/geo"
)

// Store is the read side of the POI store the solver queries for
// candidates.
type Store interface {
	GetPoisInBbox(rect datastructure.Rect) []datastructure.PointOfInterest
}

// Scorer rates one POI for the request's interest profile.
type Scorer interface {
	Score(poi datastructure.PointOfInterest, profile datastructure.InterestProfile) float32
}

// TravelTimeProvider fills the pairwise walking-time matrix for the depot
// and candidate points.
type TravelTimeProvider interface {
	GetTravelTimeMatrix(ctx context.Context, pois []datastructure.PointOfInterest) (datastructure.TravelTimeMatrix, error)
}

var (
	// ErrInfeasible means no route satisfies the budget, not even the
	// empty one walking straight from start to end.
	ErrInfeasible = errors.New("no feasible route within the time budget")

	// ErrRoutingUnavailable marks travel-time acquisition failures.
	ErrRoutingUnavailable = errors.New("travel time service unavailable")
)

// InvalidRequestError wraps the reason a request was refused: a validation
// failure or a routing failure while preparing the matrix.
type InvalidRequestError struct {
	Err error
}

func (e *InvalidRequestError) Error() string {
	return "invalid solve request: " + e.Err.Error()
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// Config tunes the walking model and search effort. Zero fields fall back
// to the defaults.
type Config struct {
	// AverageSpeedKmh sizes the candidate search box.
	AverageSpeedKmh float64
	// MaxGenerations bounds the improvement loop of each restart.
	MaxGenerations int
	// Restarts is the number of independently seeded searches.
	Restarts int
	// SolveBudget caps the wall-clock time spent searching.
	SolveBudget time.Duration
	// ServiceTime is the dwell time charged per visited POI.
	ServiceTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		AverageSpeedKmh: pkg.DefaultWalkingSpeedKmh,
		MaxGenerations:  50,
		Restarts:        4,
		SolveBudget:     2 * time.Second,
		ServiceTime:     0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AverageSpeedKmh <= 0 {
		c.AverageSpeedKmh = d.AverageSpeedKmh
	}
	if c.MaxGenerations <= 0 {
		c.MaxGenerations = d.MaxGenerations
	}
	if c.Restarts <= 0 {
		c.Restarts = d.Restarts
	}
	if c.SolveBudget <= 0 {
		c.SolveBudget = d.SolveBudget
	}
	if c.ServiceTime < 0 {
		c.ServiceTime = d.ServiceTime
	}
	return c
}

// Solver is safe for concurrent use: it only reads the store, scorer and
// provider it was built with.
type Solver struct {
	store    Store
	provider TravelTimeProvider
	scorer   Scorer
	config   Config
	logger   *zap.Logger
}

func New(store Store, provider TravelTimeProvider, scorer Scorer, logger *zap.Logger) *Solver {
	return WithConfig(store, provider, scorer, DefaultConfig(), logger)
}

func WithConfig(store Store, provider TravelTimeProvider, scorer Scorer, config Config, logger *zap.Logger) *Solver {
	return &Solver{
		store:    store,
		provider: provider,
		scorer:   scorer,
		config:   config.withDefaults(),
		logger:   logger,
	}
}

// Solve validates the request, then runs candidate selection, matrix
// acquisition and the seeded search. An empty candidate set is a success
// with an empty route; only an unreachable end within the budget is
// infeasible.
func (s *Solver) Solve(ctx context.Context, request *datastructure.SolveRequest) (datastructure.SolveResponse, error) {
	if err := request.Validate(); err != nil {
		return datastructure.SolveResponse{}, &InvalidRequestError{Err: err}
	}
	started := time.Now()

	candidates := s.selectCandidates(request)
	if len(candidates) == 0 {
		s.logger.Info("no candidates in search box", zap.Uint16("durationMinutes", request.DurationMinutes))
		return datastructure.SolveResponse{
			Route: datastructure.EmptyRoute(),
			Score: 0,
			Diagnostics: datastructure.Diagnostics{
				SolveTime:           time.Since(started),
				CandidatesEvaluated: 0,
			},
		}, nil
	}

	points, endIdx := assemblePoints(request, candidates)
	matrix, err := s.provider.GetTravelTimeMatrix(ctx, points)
	if err != nil {
		return datastructure.SolveResponse{}, &InvalidRequestError{
			Err: fmt.Errorf("%w: %w", ErrRoutingUnavailable, err),
		}
	}

	instance := &searchInstance{
		candidates:  candidates,
		matrix:      matrix,
		startIdx:    0,
		endIdx:      endIdx,
		budget:      request.Budget(),
		serviceTime: s.config.ServiceTime,
	}
	if instance.emptyDuration() > instance.budget {
		if request.End != nil {
			s.logger.Info("start to end leg alone exceeds the budget",
				zap.Duration("leg", instance.emptyDuration()),
				zap.Duration("budget", instance.budget),
				zap.Float64("crowFlightKm", geo.HaversineDistance(request.Start, *request.End)))
		}
		return datastructure.SolveResponse{}, ErrInfeasible
	}

	best := s.search(ctx, instance, request.Seed)
	route := instance.buildRoute(best)

	s.logger.Info("solve finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("visited", route.Len()),
		zap.Float32("score", best.score),
		zap.Duration("solveTime", time.Since(started)))

	return datastructure.SolveResponse{
		Route: route,
		Score: best.score,
		Diagnostics: datastructure.Diagnostics{
			SolveTime:           time.Since(started),
			CandidatesEvaluated: len(candidates),
		},
	}, nil
}

type scoredCandidate struct {
	poi   datastructure.PointOfInterest
	score float32
}

// selectCandidates queries the search box and orders candidates by score
// descending, id ascending, truncated to the request's max_nodes hint.
func (s *Solver) selectCandidates(request *datastructure.SolveRequest) []scoredCandidate {
	rect := geo.SearchRect(request.Start, request.End, request.DurationMinutes, s.config.AverageSpeedKmh)

	pois := s.store.GetPoisInBbox(rect)
	scored := make([]scoredCandidate, 0, len(pois))
	for _, poi := range pois {
		scored = append(scored, scoredCandidate{
			poi:   poi,
			score: s.scorer.Score(poi, request.Interests),
		})
	}

	slices.SortFunc(scored, func(a, b scoredCandidate) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return cmp.Compare(a.poi.ID, b.poi.ID)
	})

	if request.MaxNodes != nil && len(scored) > int(*request.MaxNodes) {
		scored = scored[:int(*request.MaxNodes)]
	}
	return scored
}

// assemblePoints lays out the matrix points: the start depot at index 0,
// candidates at 1..n, and an end depot appended only for point-to-point
// requests. Round trips reuse index 0 as the end.
func assemblePoints(request *datastructure.SolveRequest, candidates []scoredCandidate) ([]datastructure.PointOfInterest, int) {
	points := make([]datastructure.PointOfInterest, 0, len(candidates)+2)
	points = append(points, datastructure.PointOfInterest{Lon: request.Start.Lon, Lat: request.Start.Lat})
	for _, candidate := range candidates {
		points = append(points, candidate.poi)
	}

	endIdx := 0
	if request.PointToPoint() {
		points = append(points, datastructure.PointOfInterest{Lon: request.End.Lon, Lat: request.End.Lat})
		endIdx = len(points) - 1
	}
	return points, endIdx
}

// search fans the restarts over a worker pool and reduces to the single
// best solution. Results are reduced in restart order and compared with a
// total order, so the outcome does not depend on scheduling.
func (s *Solver) search(ctx context.Context, instance *searchInstance, seed uint64) solution {
	restarts := make([]int, s.config.Restarts)
	for i := range restarts {
		restarts[i] = i
	}
	deadline := time.Now().Add(s.config.SolveBudget)

	pool := concurrent.NewPool[int, solution](s.config.Restarts)
	results := pool.Run(ctx, restarts, func(restart int) solution {
		return instance.iteratedSearch(ctx, seed, restart, s.config.MaxGenerations, deadline)
	})

	best := results[0]
	for _, candidate := range results[1:] {
		if betterSolution(instance, candidate, best) {
			best = candidate
		}
	}
	return best
}
