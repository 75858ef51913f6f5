package sqlxrepos

import (
	"context"
	"database/sql"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
)

const lockQuery = "SELECT pg_advisory_xact_lock(hashtext($1))"

// Store implements proposal.Store on postgres.
type Store struct {
	db   *sqlx.DB
	exec sqlx.ExtContext // db, or the unit of work's tx
	inTx bool
}

var _ proposal.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	xdb := sqlx.NewDb(db, "postgres")
	return &Store{db: xdb, exec: xdb}
}

func (s *Store) Projects() project.Repository { return &projectRepository{exec: s.exec} }

func (s *Store) Proposals() proposal.Repository { return &proposalRepository{exec: s.exec} }

// Atomic runs fn in a transaction holding a transaction-scoped advisory lock per key.
// Keys are taken in sorted order so concurrent units cannot deadlock on each other.
func (s *Store) Atomic(ctx context.Context, locks []string, fn func(proposal.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewStorageError(errors.Wrap(err, "beginning transaction"))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, key := range sortedKeys(locks) {
		if _, err = tx.ExecContext(ctx, lockQuery, key); err != nil {
			return core.NewStorageError(errors.Wrapf(err, "locking %q", key))
		}
	}

	if err = fn(&Store{db: s.db, exec: tx, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return mapError(errors.Wrap(err, "committing transaction"))
	}
	return nil
}

func sortedKeys(locks []string) []string {
	seen := make(map[string]bool, len(locks))
	keys := make([]string, 0, len(locks))
	for _, k := range locks {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
