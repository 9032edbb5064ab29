package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymbro/pkg/matching"
)

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Number
	}{
		{"number", `80.5`, NewNumber(80.5)},
		{"zero", `0`, NewNumber(0)},
		{"numeric string", `"175"`, NewNumber(175)},
		{"padded string", `" 60 "`, NewNumber(60)},
		{"null", `null`, Number{}},
		{"empty string", `""`, Number{}},
		{"garbage string", `"heavy"`, Number{}},
		{"boolean", `true`, Number{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNumber(99)
			require.NoError(t, json.Unmarshal([]byte(tt.input), &n))
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestNumber_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Known   Number `json:"known"`
		Unknown Number `json:"unknown"`
	}{Known: NewNumber(100)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"known":100,"unknown":null}`, string(b))
}

func TestUserProfile_DecodeMixedDocument(t *testing.T) {
	raw := `{"username":"bro1234","height":"180","weight":82,"benchPress":"","squat":null,"legPress":"n/a","gym":"Gold"}`

	var p UserProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, "bro1234", p.Username)
	assert.Equal(t, matching.Stats{matching.Height: 180, matching.Weight: 82}, p.Stats())

	c := p.Candidate("owner-1")
	assert.Equal(t, "owner-1", c.ID)
	assert.Equal(t, "Gold", c.Gym)
	assert.Len(t, c.Stats, 2)
}
