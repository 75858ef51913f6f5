package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// constraintViolations maps constraints to the domain error they enforce.
var constraintViolations = map[string]error{
	"profiles_pkey":     user.ErrUserExists,
	"uq_profiles_email": core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()}),

	"uq_proposals_student_project":  proposal.ErrDuplicateSubmission,
	"uq_proposals_student_selected": proposal.ErrStudentAlreadyFinalized,
	"uq_proposals_project_selected": proposal.ErrProjectReserved,
	"proposals_project_id_fkey":     project.ErrNotFound,
}

// mapError turns driver errors into domain errors. Anything unknown is a storage failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqForeignKeyViolation:
			if mapped, ok := constraintViolations[pqErr.Constraint]; ok {
				return mapped
			}
		}
	}
	return core.NewStorageError(err)
}

// trapNoRowsErr maps sql.ErrNoRows to notFound, and any other error through mapError.
func trapNoRowsErr(err, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return mapError(err)
}
