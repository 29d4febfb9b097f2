package datastructure

import (
	"fmt"
	"math"
	"slices"

	json "github.com/goccy/go-json"
)

type WeightErrorKind uint8

const (
	WeightOutOfRange WeightErrorKind = iota
	WeightNonFinite
)

// WeightError rejects an interest weight assignment. Weights must be finite
// and within [0, 1]; the profile never clamps silently.
type WeightError struct {
	Theme  Theme
	Weight float32
	Kind   WeightErrorKind
}

func (e *WeightError) Error() string {
	if e.Kind == WeightNonFinite {
		return fmt.Sprintf("interest weight for theme %q is not finite", e.Theme)
	}
	return fmt.Sprintf("interest weight %g for theme %q is outside [0, 1]", e.Weight, e.Theme)
}

// InterestProfile maps themes to weights in [0, 1]. Stored weights are
// always finite and in range; unset themes are absent, not zero.
type InterestProfile struct {
	weights map[Theme]float32
}

func NewInterestProfile() InterestProfile {
	return InterestProfile{weights: make(map[Theme]float32)}
}

func (p *InterestProfile) SetWeight(theme Theme, weight float32) error {
	w := float64(weight)
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return &WeightError{Theme: theme, Weight: weight, Kind: WeightNonFinite}
	}
	if weight < 0 || weight > 1 {
		return &WeightError{Theme: theme, Weight: weight, Kind: WeightOutOfRange}
	}
	if p.weights == nil {
		p.weights = make(map[Theme]float32)
	}
	p.weights[theme] = weight
	return nil
}

func (p InterestProfile) Weight(theme Theme) (float32, bool) {
	w, ok := p.weights[theme]
	return w, ok
}

func (p InterestProfile) Len() int {
	return len(p.weights)
}

// Themes returns the weighted themes in ascending order so iteration over a
// profile is deterministic.
func (p InterestProfile) Themes() []Theme {
	out := make([]Theme, 0, len(p.weights))
	for t := range p.weights {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (p InterestProfile) MarshalJSON() ([]byte, error) {
	if p.weights == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.weights)
}

// UnmarshalJSON enforces the profile invariants: unknown themes and invalid
// weights are rejected, never dropped.
func (p *InterestProfile) UnmarshalJSON(data []byte) error {
	var raw map[string]float32
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	weights := make(map[Theme]float32, len(raw))
	next := InterestProfile{weights: weights}
	for name, weight := range raw {
		theme, err := ParseTheme(name)
		if err != nil {
			return err
		}
		if err := next.SetWeight(theme, weight); err != nil {
			return err
		}
	}
	p.weights = weights
	return nil
}
