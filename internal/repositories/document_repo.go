package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDocumentNotFound is returned by Snapshot.DataTo on a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrConflict means a document read by a transaction changed before commit.
	ErrConflict = errors.New("document changed since it was read")
	// ErrTooMuchContention is returned when a transaction kept conflicting.
	ErrTooMuchContention = errors.New("transaction aborted after repeated conflicts")
	// ErrReadAfterWrite is returned when a transaction reads after it has written.
	ErrReadAfterWrite = errors.New("transaction reads must happen before writes")
)

// DefaultTransactionAttempts bounds how often RunTransaction re-runs its function.
const DefaultTransactionAttempts = 5

// DocRef addresses a document by collection and key.
type DocRef struct {
	Collection string
	Key        string
}

// Doc is shorthand for building a DocRef.
func Doc(collection, key string) DocRef {
	return DocRef{Collection: collection, Key: key}
}

func (r DocRef) String() string {
	return r.Collection + "/" + r.Key
}

// Snapshot is the state of one document at the time it was read.
type Snapshot struct {
	Ref       DocRef
	Exists    bool
	Data      []byte
	Revision  string
	UpdatedAt time.Time
}

// DataTo decodes the document into v.
func (s *Snapshot) DataTo(v any) error {
	if s == nil || !s.Exists {
		return ErrDocumentNotFound
	}
	if err := json.Unmarshal(s.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.Ref, err)
	}
	return nil
}

// Tx is the capability handed to a transaction function. Every read must
// come before the first write; writes become visible only on commit.
type Tx interface {
	Get(ref DocRef) (*Snapshot, error)
	Set(ref DocRef, v any) error
	Merge(ref DocRef, fields map[string]any) error
	Delete(ref DocRef) error
}

// DocumentStore defines the interface for document data access.
type DocumentStore interface {
	Get(ctx context.Context, ref DocRef) (*Snapshot, error)
	List(ctx context.Context, collection string) ([]Snapshot, error)
	// Merge overlays top-level fields onto the document, creating it if needed.
	Merge(ctx context.Context, ref DocRef, fields map[string]any) error
	// RunTransaction runs fn as one optimistic transaction, re-running it
	// when a document it read changed before commit. An error from fn
	// aborts without effects.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

type mutationKind int

const (
	mutationSet mutationKind = iota
	mutationMerge
	mutationDelete
)

type mutation struct {
	kind   mutationKind
	data   []byte
	fields map[string]any
}

// committer is the storage side of a commit. Implementations run all calls
// of one commit inside a single atomic scope.
type committer interface {
	current(ref DocRef) (*Snapshot, error)
	insert(ref DocRef, data []byte, revision string) (bool, error)
	update(ref DocRef, data []byte, expected, revision string) (bool, error)
	remove(ref DocRef, expected string) (bool, error)
}

// txBuffer records the reads and buffered writes of one transaction attempt.
type txBuffer struct {
	load   func(ref DocRef) (*Snapshot, error)
	reads  map[DocRef]*Snapshot
	order  []DocRef
	writes map[DocRef][]mutation
}

func newTxBuffer(load func(ref DocRef) (*Snapshot, error)) *txBuffer {
	return &txBuffer{
		load:   load,
		reads:  make(map[DocRef]*Snapshot),
		writes: make(map[DocRef][]mutation),
	}
}

func (b *txBuffer) Get(ref DocRef) (*Snapshot, error) {
	if len(b.order) > 0 {
		return nil, ErrReadAfterWrite
	}
	if snap, ok := b.reads[ref]; ok {
		cp := *snap
		return &cp, nil
	}
	snap, err := b.load(ref)
	if err != nil {
		return nil, err
	}
	b.reads[ref] = snap
	cp := *snap
	return &cp, nil
}

func (b *txBuffer) Set(ref DocRef, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ref, err)
	}
	b.add(ref, mutation{kind: mutationSet, data: data})
	return nil
}

func (b *txBuffer) Merge(ref DocRef, fields map[string]any) error {
	b.add(ref, mutation{kind: mutationMerge, fields: fields})
	return nil
}

func (b *txBuffer) Delete(ref DocRef) error {
	b.add(ref, mutation{kind: mutationDelete})
	return nil
}

func (b *txBuffer) add(ref DocRef, m mutation) {
	if _, ok := b.writes[ref]; !ok {
		b.order = append(b.order, ref)
	}
	b.writes[ref] = append(b.writes[ref], m)
}

// resolve applies muts on top of base and returns the final document body,
// or deleted=true when the document should not exist.
func resolve(base *Snapshot, muts []mutation) (data []byte, deleted bool, err error) {
	exists := base.Exists
	data = base.Data
	for _, m := range muts {
		switch m.kind {
		case mutationSet:
			data, exists = m.data, true
		case mutationDelete:
			data, exists = nil, false
		case mutationMerge:
			obj := make(map[string]json.RawMessage)
			if exists {
				if err := json.Unmarshal(data, &obj); err != nil {
					return nil, false, fmt.Errorf("cannot merge into %s: %w", base.Ref, err)
				}
			}
			for k, v := range m.fields {
				raw, err := json.Marshal(v)
				if err != nil {
					return nil, false, fmt.Errorf("failed to encode field %s of %s: %w", k, base.Ref, err)
				}
				obj[k] = raw
			}
			if data, err = json.Marshal(obj); err != nil {
				return nil, false, err
			}
			exists = true
		}
	}
	return data, !exists, nil
}

// commit validates the read set and applies the buffered writes through c.
func (b *txBuffer) commit(c committer) error {
	for ref, snap := range b.reads {
		if _, written := b.writes[ref]; written {
			continue
		}
		cur, err := c.current(ref)
		if err != nil {
			return err
		}
		if cur.Revision != snap.Revision {
			return ErrConflict
		}
	}

	for _, ref := range b.order {
		base, read := b.reads[ref]
		if !read {
			cur, err := c.current(ref)
			if err != nil {
				return err
			}
			base = cur
		}

		data, deleted, err := resolve(base, b.writes[ref])
		if err != nil {
			return err
		}

		var ok bool
		switch {
		case deleted && !base.Exists:
			cur, err := c.current(ref)
			if err != nil {
				return err
			}
			ok = !cur.Exists
		case deleted:
			ok, err = c.remove(ref, base.Revision)
		case !base.Exists:
			ok, err = c.insert(ref, data, uuid.NewString())
		default:
			ok, err = c.update(ref, data, base.Revision, uuid.NewString())
		}
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
	}
	return nil
}

// runTransaction drives attempts of one transaction until it commits, fails
// for a reason other than a conflict, or runs out of attempts.
func runTransaction(ctx context.Context, maxAttempts int, attempt func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultTransactionAttempts
	}
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt()
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w (%d attempts)", ErrTooMuchContention, maxAttempts)
}
