package models

import "time"

// UsernameReservation asserts that a handle belongs to one owner. It lives
// at usernames/{handle}.
type UsernameReservation struct {
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}
