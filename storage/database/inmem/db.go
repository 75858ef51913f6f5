// Package inmemdb is an in-process implementation of the persistence gateway, used by tests and demos.
// It enforces the same uniqueness rules as the postgres schema.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
)

type rejectionKey struct {
	studentID, projectID string
}

type proposalRow struct {
	proposal.Proposal
	seq int64 // insertion order, breaks created_at ties
}

type DB struct {
	txMu sync.Mutex   // one unit of work at a time
	mu   sync.RWMutex // guards everything below

	seq        int64
	projects   map[string]project.Project
	proposals  map[string]proposalRow
	rejections map[rejectionKey]proposal.Rejection
	users      map[string]userRow

	faultMu sync.Mutex
	faults  map[string]error
}

func NewDB() *DB {
	return &DB{
		projects:   make(map[string]project.Project),
		proposals:  make(map[string]proposalRow),
		rejections: make(map[rejectionKey]proposal.Rejection),
		users:      make(map[string]userRow),
		faults:     make(map[string]error),
	}
}

// FailNext makes the next call to the named repository method fail with a storage error.
func (db *DB) FailNext(op string, err error) {
	db.faultMu.Lock()
	defer db.faultMu.Unlock()
	db.faults[op] = err
}

func (db *DB) fault(op string) error {
	db.faultMu.Lock()
	defer db.faultMu.Unlock()
	if err, ok := db.faults[op]; ok {
		delete(db.faults, op)
		return core.NewStorageError(err)
	}
	return nil
}

func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}

// Store implements proposal.Store.
type Store struct {
	db   *DB
	undo *[]func() // set inside a unit of work
}

var _ proposal.Store = (*Store)(nil)

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) Projects() project.Repository { return &projectRepository{store: s} }

func (s *Store) Proposals() proposal.Repository { return &proposalRepository{store: s} }

// Atomic serializes units of work; lock keys are implied by the global lock.
// On error every write done through the unit's Store is undone in reverse order.
func (s *Store) Atomic(ctx context.Context, _ []string, fn func(proposal.Store) error) error {
	if s.undo != nil { // already inside a unit of work
		return fn(s)
	}

	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return core.NewStorageError(err)
	}

	undo := make([]func(), 0)
	err := fn(&Store{db: s.db, undo: &undo})
	if err != nil {
		s.db.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		s.db.mu.Unlock()
	}
	return err
}

// record must be called with db.mu held.
func (s *Store) record(f func()) {
	if s.undo != nil {
		*s.undo = append(*s.undo, f)
	}
}
