package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymbro/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMDocumentStore is a GORM implementation of DocumentStore. Commits use
// revision-guarded statements, so concurrent writers lose with ErrConflict
// instead of overwriting each other.
type GORMDocumentStore struct {
	db          *gorm.DB
	maxAttempts int
}

// NewGORMDocumentStore creates a new instance of GORMDocumentStore.
// maxAttempts <= 0 selects DefaultTransactionAttempts.
func NewGORMDocumentStore(db *gorm.DB, maxAttempts int) *GORMDocumentStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultTransactionAttempts
	}
	return &GORMDocumentStore{
		db:          db,
		maxAttempts: maxAttempts,
	}
}

// Get retrieves a single document from the database.
func (s *GORMDocumentStore) Get(ctx context.Context, ref DocRef) (*Snapshot, error) {
	return loadDocument(s.db.WithContext(ctx), ref)
}

// List retrieves all documents of a collection ordered by key.
func (s *GORMDocumentStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	var docs []models.Document
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("doc_key").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, toSnapshot(d))
	}
	return out, nil
}

// Merge overlays fields onto a document, creating it when missing.
func (s *GORMDocumentStore) Merge(ctx context.Context, ref DocRef, fields map[string]any) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.Merge(ref, fields)
	})
}

// RunTransaction runs fn optimistically. Reads go straight to the database;
// the buffered writes are committed in one database transaction.
func (s *GORMDocumentStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return runTransaction(ctx, s.maxAttempts, func() error {
		buf := newTxBuffer(func(ref DocRef) (*Snapshot, error) {
			return s.Get(ctx, ref)
		})
		if err := fn(buf); err != nil {
			return err
		}
		if len(buf.order) == 0 {
			return nil
		}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return buf.commit(&gormCommitter{db: tx})
		})
	})
}

func loadDocument(db *gorm.DB, ref DocRef) (*Snapshot, error) {
	var doc models.Document
	err := db.Where("collection = ? AND doc_key = ?", ref.Collection, ref.Key).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", ref, err)
	}
	snap := toSnapshot(doc)
	return &snap, nil
}

func toSnapshot(d models.Document) Snapshot {
	return Snapshot{
		Ref:       Doc(d.Collection, d.Key),
		Exists:    true,
		Data:      []byte(d.Data),
		Revision:  d.Revision,
		UpdatedAt: d.UpdatedAt,
	}
}

type gormCommitter struct {
	db *gorm.DB
}

func (c *gormCommitter) current(ref DocRef) (*Snapshot, error) {
	return loadDocument(c.db, ref)
}

func (c *gormCommitter) insert(ref DocRef, data []byte, revision string) (bool, error) {
	res := c.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Document{
		Collection: ref.Collection,
		Key:        ref.Key,
		Data:       datatypes.JSON(data),
		Revision:   revision,
	})
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert document %s: %w", ref, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (c *gormCommitter) update(ref DocRef, data []byte, expected, revision string) (bool, error) {
	res := c.db.Model(&models.Document{}).
		Where("collection = ? AND doc_key = ? AND revision = ?", ref.Collection, ref.Key, expected).
		Updates(map[string]any{
			"data":       datatypes.JSON(data),
			"revision":   revision,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update document %s: %w", ref, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (c *gormCommitter) remove(ref DocRef, expected string) (bool, error) {
	res := c.db.
		Where("collection = ? AND doc_key = ? AND revision = ?", ref.Collection, ref.Key, expected).
		Delete(&models.Document{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete document %s: %w", ref, res.Error)
	}
	return res.RowsAffected == 1, nil
}
