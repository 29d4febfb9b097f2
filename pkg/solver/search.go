package solver

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/util"
)

// searchInstance is the immutable problem shared by all restarts. Matrix
// index 0 is the start depot, 1..len(candidates) maps to candidates[i-1],
// and endIdx points at the end depot (0 again for round trips).
type searchInstance struct {
	candidates  []scoredCandidate
	matrix      datastructure.TravelTimeMatrix
	startIdx    int
	endIdx      int
	budget      time.Duration
	serviceTime time.Duration
}

// solution is an ordered set of candidate matrix indices with its cached
// score and duration. Duration arithmetic is exact, so the cache never
// drifts from a recomputation.
type solution struct {
	order    []int
	score    float32
	duration time.Duration
}

func (in *searchInstance) leg(from, to int) time.Duration {
	return in.matrix.At(from, to)
}

// emptyDuration is the cost of visiting nothing: zero for a round trip,
// the direct start-to-end leg otherwise.
func (in *searchInstance) emptyDuration() time.Duration {
	return in.leg(in.startIdx, in.endIdx)
}

func (in *searchInstance) emptySolution() solution {
	return solution{duration: in.emptyDuration()}
}

func saturatingAdd(a, b time.Duration) time.Duration {
	if a == datastructure.MaxDuration || b == datastructure.MaxDuration {
		return datastructure.MaxDuration
	}
	if b > datastructure.MaxDuration-a {
		return datastructure.MaxDuration
	}
	return a + b
}

// orderDuration recomputes a route's duration from scratch: the depot legs
// on both ends, every inner leg and the dwell time per visit. Unreachable
// legs saturate at MaxDuration instead of overflowing.
func (in *searchInstance) orderDuration(order []int) time.Duration {
	duration := time.Duration(0)
	prev := in.startIdx
	for _, idx := range order {
		duration = saturatingAdd(duration, in.leg(prev, idx))
		duration = saturatingAdd(duration, in.serviceTime)
		prev = idx
	}
	return saturatingAdd(duration, in.leg(prev, in.endIdx))
}

func (in *searchInstance) orderScore(order []int) float32 {
	var sum float32
	for _, idx := range order {
		sum += in.candidates[idx-1].score
	}
	return sum
}

// insertionDuration is the duration of sol with candidate idx spliced in
// at pos. A leg to or from an unreachable candidate makes the trial
// unusable, reported as MaxDuration. Feasible solutions contain no
// unreachable adjacency, so the removed leg is always finite.
func (in *searchInstance) insertionDuration(sol solution, pos, idx int) time.Duration {
	prev := in.startIdx
	if pos > 0 {
		prev = sol.order[pos-1]
	}
	next := in.endIdx
	if pos < len(sol.order) {
		next = sol.order[pos]
	}

	legIn := in.leg(prev, idx)
	legOut := in.leg(idx, next)
	if sol.duration == datastructure.MaxDuration ||
		legIn == datastructure.MaxDuration || legOut == datastructure.MaxDuration {
		return datastructure.MaxDuration
	}
	return sol.duration + legIn + legOut + in.serviceTime - in.leg(prev, next)
}

// greedyInsert walks seq once and splices every candidate that still fits
// the budget into its cheapest position. Ties prefer the earliest
// position, keeping construction deterministic for a given sequence.
func (in *searchInstance) greedyInsert(sol *solution, seq []int) {
	for _, idx := range seq {
		bestPos := -1
		bestDuration := datastructure.MaxDuration
		for pos := 0; pos <= len(sol.order); pos++ {
			trial := in.insertionDuration(*sol, pos, idx)
			if trial < bestDuration {
				bestPos = pos
				bestDuration = trial
			}
		}
		if bestPos < 0 || bestDuration > in.budget {
			continue
		}
		sol.order = slices.Insert(sol.order, bestPos, idx)
		sol.duration = bestDuration
		sol.score += in.candidates[idx-1].score
	}
}

func (in *searchInstance) construct(seq []int) solution {
	sol := in.emptySolution()
	in.greedyInsert(&sol, seq)
	return sol
}

// perturb removes a random run of visits, sometimes reverses a segment of
// the remainder, and greedily reinserts every unvisited candidate in
// shuffled order, giving dropped POIs a fresh chance under a different
// insertion sequence.
func (in *searchInstance) perturb(sol solution, rng *rand.Rand) solution {
	trial := solution{order: slices.Clone(sol.order)}
	if len(trial.order) > 0 {
		removals := 1 + rng.IntN((len(trial.order)+2)/3)
		for i := 0; i < removals && len(trial.order) > 0; i++ {
			pos := rng.IntN(len(trial.order))
			trial.order = slices.Delete(trial.order, pos, pos+1)
		}
	}
	if len(trial.order) > 1 && rng.IntN(2) == 0 {
		i, j := rng.IntN(len(trial.order)), rng.IntN(len(trial.order))
		if i > j {
			i, j = j, i
		}
		copy(trial.order[i:j+1], util.ReverseG(trial.order[i:j+1]))
	}
	trial.duration = in.orderDuration(trial.order)
	trial.score = in.orderScore(trial.order)

	visited := make(map[int]bool, len(trial.order))
	for _, idx := range trial.order {
		visited[idx] = true
	}
	missing := make([]int, 0, len(in.candidates))
	for idx := 1; idx <= len(in.candidates); idx++ {
		if !visited[idx] {
			missing = append(missing, idx)
		}
	}
	rng.Shuffle(len(missing), func(i, j int) {
		missing[i], missing[j] = missing[j], missing[i]
	})

	in.greedyInsert(&trial, missing)
	return trial
}

// iteratedSearch runs one seeded restart: greedy construction followed by
// perturb-and-reinsert generations. The restart index is the second seed
// word, so restarts explore distinct streams while the whole search stays
// reproducible. Restart 0 constructs from the plain score ordering; later
// restarts shuffle it.
func (in *searchInstance) iteratedSearch(ctx context.Context, seed uint64, restart, generations int, deadline time.Time) solution {
	rng := rand.New(rand.NewPCG(seed, uint64(restart)))

	base := make([]int, len(in.candidates))
	for i := range base {
		base[i] = i + 1
	}
	if restart > 0 {
		rng.Shuffle(len(base), func(i, j int) { base[i], base[j] = base[j], base[i] })
	}

	current := in.construct(base)
	best := current

	for generation := 1; generation < generations; generation++ {
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			break
		}
		trial := in.perturb(current, rng)
		// Removing a visit bridges its neighbours directly; nothing
		// forces that bridge to be cheaper, so re-check the budget.
		if trial.duration <= in.budget && betterSolution(in, trial, current) {
			current = trial
		}
		if betterSolution(in, current, best) {
			best = current
		}
	}
	return best
}

// betterSolution is a total order: higher score first, then shorter
// duration, then the lexicographically smaller sequence of visited POI
// ids. A total order keeps the best-of reduction independent of restart
// scheduling.
func betterSolution(in *searchInstance, a, b solution) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.duration != b.duration {
		return a.duration < b.duration
	}
	return in.compareVisitIDs(a.order, b.order) < 0
}

func (in *searchInstance) compareVisitIDs(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ida := in.candidates[a[i]-1].poi.ID
		idb := in.candidates[b[i]-1].poi.ID
		if ida != idb {
			return cmp.Compare(ida, idb)
		}
	}
	return cmp.Compare(len(a), len(b))
}

// buildRoute materialises the winning order. The duration is recomputed
// from the matrix so the response never depends on cached search
// arithmetic.
func (in *searchInstance) buildRoute(sol solution) datastructure.Route {
	pois := make([]datastructure.PointOfInterest, 0, len(sol.order))
	for _, idx := range sol.order {
		pois = append(pois, in.candidates[idx-1].poi)
	}
	return datastructure.Route{
		Pois:          pois,
		TotalDuration: in.orderDuration(sol.order),
	}
}
