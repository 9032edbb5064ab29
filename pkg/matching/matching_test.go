package matching_test

import (
	"math"
	"testing"

	"gymbro/pkg/matching"

	"github.com/stretchr/testify/assert"
)

func liftStats() matching.Stats {
	return matching.Stats{
		matching.Height:     180,
		matching.Weight:     180,
		matching.BenchPress: 225,
		matching.Squat:      315,
		matching.LegPress:   500,
	}
}

func TestDistance_IdenticalProfiles(t *testing.T) {
	a := liftStats()
	b := liftStats()

	d := matching.Distance(a, b, nil)
	assert.Equal(t, 0.0, d)
	assert.Equal(t, 100, matching.Percent(d))
}

func TestDistance_OneFullScaleUnit(t *testing.T) {
	a := liftStats()
	b := liftStats()
	b[matching.BenchPress] += 400

	d := matching.Distance(a, b, nil)
	assert.InDelta(t, math.Sqrt(1.0/5.0), d, 1e-12)
	assert.InDelta(t, 0.447, d, 0.001)
	assert.Equal(t, 55, matching.Percent(d))
}

func TestDistance_Symmetric(t *testing.T) {
	a := matching.Stats{matching.Height: 165, matching.Weight: 140, matching.Squat: 185}
	b := matching.Stats{matching.Height: 185, matching.Weight: 200, matching.Squat: 335, matching.LegPress: 520}
	w := matching.Weights{matching.Height: 0.5, matching.Squat: 2}

	assert.Equal(t, matching.Distance(a, b, w), matching.Distance(b, a, w))
	assert.Equal(t, 0.0, matching.Distance(a, a, w))
}

func TestDistance_SkipsMissingAndNonFinite(t *testing.T) {
	a := matching.Stats{matching.Height: 180, matching.BenchPress: 225, matching.Squat: math.NaN()}
	b := matching.Stats{matching.Height: 180, matching.BenchPress: 625, matching.Squat: 315}

	// Only height and benchPress are usable: sqrt((0 + 1) / 2).
	assert.InDelta(t, math.Sqrt(0.5), matching.Distance(a, b, nil), 1e-12)
}

func TestDistance_NoOverlapIsInfinite(t *testing.T) {
	a := matching.Stats{matching.Height: 180}
	b := matching.Stats{matching.Squat: 315}

	assert.True(t, math.IsInf(matching.Distance(a, b, nil), 1))
	assert.True(t, math.IsInf(matching.Distance(matching.Stats{}, matching.Stats{}, nil), 1))
	assert.Equal(t, 0, matching.Percent(math.Inf(1)))
}

func TestDistance_ZeroWeightIgnoresDifference(t *testing.T) {
	a := liftStats()
	b := liftStats()
	b[matching.LegPress] = 900

	assert.Equal(t, 0.0, matching.Distance(a, b, matching.Weights{matching.LegPress: 0}))
}

func TestPercent_Boundaries(t *testing.T) {
	assert.Equal(t, 100, matching.Percent(0))
	assert.Equal(t, 0, matching.Percent(1))
	assert.Equal(t, 0, matching.Percent(2))
	assert.Equal(t, 75, matching.Percent(0.25))
	assert.Equal(t, 100, matching.Percent(-0.5))
	assert.Equal(t, 0, matching.Percent(math.NaN()))
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, matching.DefaultBrowseWeights.Validate())
	assert.NoError(t, matching.Weights{}.Validate())

	err := matching.Weights{matching.Squat: -1}.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "squat")

	assert.Error(t, matching.Weights{matching.Height: math.Inf(1)}.Validate())
	assert.Error(t, matching.Weights{"deadlift": 1}.Validate())
}

func TestRank_Pipeline(t *testing.T) {
	viewer := matching.Candidate{ID: "me", Stats: liftStats(), Gym: "Anytime Fitness"}

	pool := []matching.Candidate{
		{ID: "me", Stats: liftStats()},
		{ID: "far", Stats: matching.Stats{matching.BenchPress: 625}, Gym: "Anytime Fitness"},
		{ID: "close", Stats: matching.Stats{matching.BenchPress: 235}, Gym: "Anytime Fitness"},
		{ID: "matched", Stats: liftStats(), Gym: "Anytime Fitness"},
		{ID: "pending", Stats: liftStats(), Gym: "Anytime Fitness"},
		{ID: "other-gym", Stats: liftStats(), Gym: "Crunch"},
		{ID: "no-stats", Stats: matching.Stats{}, Gym: "Anytime Fitness"},
	}

	ranked := matching.Rank(viewer, pool, matching.RankOptions{
		Filters: matching.Filters{Gym: "Anytime Fitness"},
		Matched: map[string]bool{"matched": true},
		Pending: map[string]bool{"pending": true},
	})

	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.Candidate.ID)
	}
	assert.Equal(t, []string{"close", "far"}, ids)
	assert.Equal(t, matching.Percent(ranked[0].Distance), ranked[0].Percent)
}

func TestRank_StableTiesAndLimit(t *testing.T) {
	viewer := matching.Candidate{ID: "me", Stats: liftStats()}

	var pool []matching.Candidate
	for _, id := range []string{"a", "b", "c", "d"} {
		pool = append(pool, matching.Candidate{ID: id, Stats: liftStats()})
	}

	ranked := matching.Rank(viewer, pool, matching.RankOptions{Limit: 3})
	assert.Len(t, ranked, 3)
	assert.Equal(t, "a", ranked[0].Candidate.ID)
	assert.Equal(t, "b", ranked[1].Candidate.ID)
	assert.Equal(t, "c", ranked[2].Candidate.ID)
}

func TestRank_DefaultLimit(t *testing.T) {
	viewer := matching.Candidate{ID: "me", Stats: liftStats()}
	pool := make([]matching.Candidate, 0, 15)
	for i := 0; i < 15; i++ {
		s := liftStats()
		s[matching.Squat] += float64(i)
		pool = append(pool, matching.Candidate{ID: string(rune('a' + i)), Stats: s})
	}

	ranked := matching.Rank(viewer, pool, matching.RankOptions{})
	assert.Len(t, ranked, matching.DefaultLimit)
	assert.Equal(t, "a", ranked[0].Candidate.ID)
}

func TestFilters_Accepts(t *testing.T) {
	c := matching.Candidate{Gender: "Female", Goal: "Strength", Experience: "Advanced", PreferredTime: "Morning"}

	assert.True(t, matching.Filters{}.Accepts(c))
	assert.True(t, matching.Filters{Gender: "Female", PreferredTime: "Morning"}.Accepts(c))
	assert.False(t, matching.Filters{Goal: "Cutting"}.Accepts(c))
}
