package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"gymbro/pkg/matching"
)

// Number is a numeric profile field that may be unknown. It decodes JSON
// numbers and numeric strings; null, empty and non-numeric strings decode
// as unknown instead of zero.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a known Number.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		// Garbage stays unknown; it must not poison the whole document.
		return nil
	}
	*n = NewNumber(v)
	return nil
}

// UserProfile is the document at users/{ownerId}. Username mirrors the
// owner's reservation and is only written by the username registry.
type UserProfile struct {
	Username      string    `json:"username,omitempty"`
	Email         string    `json:"email,omitempty"`
	Name          string    `json:"name,omitempty"`
	Age           Number    `json:"age"`
	Gender        string    `json:"gender,omitempty"`
	Gym           string    `json:"gym,omitempty"`
	City          string    `json:"city,omitempty"`
	Goal          string    `json:"goal,omitempty"`
	Experience    string    `json:"experience,omitempty"`
	PreferredTime string    `json:"preferredTime,omitempty"`
	Instagram     string    `json:"instagram,omitempty"`
	ContactEmail  string    `json:"contactEmail,omitempty"`
	PhotoURL      string    `json:"photoUrl,omitempty"`
	Height        Number    `json:"height"`
	Weight        Number    `json:"weight"`
	BenchPress    Number    `json:"benchPress"`
	Squat         Number    `json:"squat"`
	LegPress      Number    `json:"legPress"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Stats returns the known scoring attributes of the profile.
func (p UserProfile) Stats() matching.Stats {
	s := make(matching.Stats, len(matching.Attributes))
	for attr, n := range map[matching.Attribute]Number{
		matching.Height:     p.Height,
		matching.Weight:     p.Weight,
		matching.BenchPress: p.BenchPress,
		matching.Squat:      p.Squat,
		matching.LegPress:   p.LegPress,
	} {
		if n.Valid {
			s[attr] = n.Value
		}
	}
	return s
}

// Candidate converts the profile into a ranking candidate.
func (p UserProfile) Candidate(ownerID string) matching.Candidate {
	return matching.Candidate{
		ID:            ownerID,
		Stats:         p.Stats(),
		Gym:           p.Gym,
		Gender:        p.Gender,
		Goal:          p.Goal,
		Experience:    p.Experience,
		PreferredTime: p.PreferredTime,
	}
}
