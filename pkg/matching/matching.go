// Package matching scores how close two lifters' fitness profiles are and
// ranks a candidate pool against a viewer.
//
// Distance is the weighted root-mean-square of the per-attribute
// differences, each divided by a fixed scale. Attributes missing on either
// side are left out of the mean rather than imputed.
package matching

import (
	"math"
	"slices"
)

// Attribute names a numeric profile attribute that takes part in scoring.
type Attribute string

const (
	Height     Attribute = "height"
	Weight     Attribute = "weight"
	BenchPress Attribute = "benchPress"
	Squat      Attribute = "squat"
	LegPress   Attribute = "legPress"
)

// Attributes is the fixed scoring set, in evaluation order.
var Attributes = []Attribute{Height, Weight, BenchPress, Squat, LegPress}

// scales approximate the typical spread of each attribute.
var scales = map[Attribute]float64{
	Height:     200,
	Weight:     300,
	BenchPress: 400,
	Squat:      500,
	LegPress:   800,
}

// Scale returns the normalization divisor for a.
func Scale(a Attribute) float64 {
	return scales[a]
}

// Stats holds the numeric attributes of one profile. A missing key means
// the attribute is unknown.
type Stats map[Attribute]float64

// Weights multiplies each attribute's squared term. Attributes without an
// entry weigh 1.
type Weights map[Attribute]float64

// DefaultBrowseWeights favours strength numbers over body measurements.
var DefaultBrowseWeights = Weights{
	Height:     0.5,
	Weight:     0.5,
	BenchPress: 1,
	Squat:      1,
	LegPress:   0.5,
}

func (w Weights) of(a Attribute) float64 {
	if v, ok := w[a]; ok {
		return v
	}
	return 1
}

// Validate rejects negative or non-finite multipliers.
func (w Weights) Validate() error {
	for a, v := range w {
		if _, known := scales[a]; !known {
			return &WeightError{Attribute: a, Reason: "unknown attribute"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &WeightError{Attribute: a, Reason: "must be a finite non-negative number"}
		}
	}
	return nil
}

// WeightError reports an invalid entry in a Weights map.
type WeightError struct {
	Attribute Attribute
	Reason    string
}

func (e *WeightError) Error() string {
	return "weight " + string(e.Attribute) + ": " + e.Reason
}

func usable(s Stats, a Attribute) (float64, bool) {
	v, ok := s[a]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Distance returns the weighted RMS normalized difference between a and b.
// It is +Inf when the two profiles share no usable attribute.
func Distance(a, b Stats, w Weights) float64 {
	var sum float64
	used := 0
	for _, attr := range Attributes {
		av, ok := usable(a, attr)
		if !ok {
			continue
		}
		bv, ok := usable(b, attr)
		if !ok {
			continue
		}
		d := (av - bv) / scales[attr]
		sum += w.of(attr) * d * d
		used++
	}
	if used == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(sum / float64(used))
}

// Percent maps a distance onto a 0-100 closeness score for display.
// Distances of 1 or more saturate at 0.
func Percent(distance float64) int {
	if math.IsNaN(distance) {
		return 0
	}
	p := math.Floor(100*(1-distance) + 0.5)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}

// DefaultLimit is how many candidates Rank returns when no limit is given.
const DefaultLimit = 10

// Candidate is one entry of a pool being ranked.
type Candidate struct {
	ID            string `json:"id"`
	Stats         Stats  `json:"stats"`
	Gym           string `json:"gym,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Goal          string `json:"goal,omitempty"`
	Experience    string `json:"experience,omitempty"`
	PreferredTime string `json:"preferredTime,omitempty"`
}

// Filters restricts a pool by exact match on categorical fields. Empty
// fields do not filter.
type Filters struct {
	Gym           string `json:"gym"`
	Gender        string `json:"gender"`
	Goal          string `json:"goal"`
	Experience    string `json:"experience"`
	PreferredTime string `json:"preferredTime"`
}

// Accepts reports whether c passes every non-empty filter.
func (f Filters) Accepts(c Candidate) bool {
	return matchField(f.Gym, c.Gym) &&
		matchField(f.Gender, c.Gender) &&
		matchField(f.Goal, c.Goal) &&
		matchField(f.Experience, c.Experience) &&
		matchField(f.PreferredTime, c.PreferredTime)
}

func matchField(want, got string) bool {
	return want == "" || want == got
}

// RankOptions configures Rank.
type RankOptions struct {
	Filters Filters
	Weights Weights
	// Matched and Pending hold candidate IDs that must not be suggested.
	Matched map[string]bool
	Pending map[string]bool
	Limit   int
}

// Ranked is a scored candidate.
type Ranked struct {
	Candidate Candidate `json:"candidate"`
	Distance  float64   `json:"distance"`
	Percent   int       `json:"percent"`
}

// Rank filters pool for viewer and returns the closest candidates first.
// Equal distances keep their pool order.
func Rank(viewer Candidate, pool []Candidate, opts RankOptions) []Ranked {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	ranked := make([]Ranked, 0, len(pool))
	for _, c := range pool {
		if c.ID == viewer.ID || opts.Matched[c.ID] || opts.Pending[c.ID] {
			continue
		}
		if !opts.Filters.Accepts(c) {
			continue
		}
		d := Distance(viewer.Stats, c.Stats, opts.Weights)
		if math.IsInf(d, 0) || math.IsNaN(d) {
			continue
		}
		ranked = append(ranked, Ranked{Candidate: c, Distance: d, Percent: Percent(d)})
	}

	slices.SortStableFunc(ranked, func(x, y Ranked) int {
		switch {
		case x.Distance < y.Distance:
			return -1
		case x.Distance > y.Distance:
			return 1
		}
		return 0
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
