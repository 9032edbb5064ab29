package models

// PhotoPost is the searchable metadata of an uploaded photo.
type PhotoPost struct {
	Owner    string `json:"owner"`
	ImageURL string `json:"imageUrl"`
	TS       int64  `json:"ts"` // unix millis
	Username string `json:"username"`
	Name     string `json:"name"`
}
