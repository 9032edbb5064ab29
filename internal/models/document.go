package models

import (
	"time"

	"gorm.io/datatypes"
)

// Collections of the document store.
const (
	CollectionUsernames = "usernames"
	CollectionUsers     = "users"
	CollectionPosts     = "posts"
)

// Document is one row of the document store. Revision changes on every
// write and is what optimistic transactions compare against.
type Document struct {
	Collection string         `gorm:"primaryKey;type:varchar(64)"`
	Key        string         `gorm:"column:doc_key;primaryKey;type:varchar(191)"`
	Data       datatypes.JSON `gorm:"not null"`
	Revision   string         `gorm:"type:varchar(36);not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
