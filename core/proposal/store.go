package proposal

import (
	"context"
	"time"

	"github.com/trezcool/takharruj/core/project"
)

type (
	// Repository is the proposal side of the persistence gateway.
	//
	// Implementations report missing rows with ErrNotFound, uniqueness conflicts with the matching
	// Violation (ErrDuplicateSubmission, ErrProjectReserved, ErrStudentAlreadyFinalized) and any
	// other failure as a core.StorageError.
	Repository interface {
		CreateProposal(ctx context.Context, p Proposal) (Proposal, error)
		GetProposal(ctx context.Context, id string) (Proposal, error)
		// QueryProposals returns matches oldest first.
		QueryProposals(ctx context.Context, filter QueryFilter) ([]Proposal, error)
		UpdateProposalStatus(ctx context.Context, id string, status Status, at time.Time) (Proposal, error)
		DeleteProposal(ctx context.Context, id string) error
		DeleteProjectProposals(ctx context.Context, projectID string) (int64, error)

		// RememberRejection is idempotent per (student, project): the first entry is kept.
		RememberRejection(ctx context.Context, rej Rejection) error
		HasRejection(ctx context.Context, studentID, projectID string) (bool, error)
		QueryRejections(ctx context.Context, studentID string) ([]Rejection, error)
	}

	// Store hands out repositories and runs units of work.
	Store interface {
		Projects() project.Repository
		Proposals() Repository
		// Atomic runs fn against a Store bound to a single unit of work holding the given lock keys.
		// Every write made through that Store is committed when fn returns nil and discarded otherwise.
		// Units sharing a lock key never interleave.
		Atomic(ctx context.Context, locks []string, fn func(Store) error) error
	}
)

func StudentLock(studentID string) string { return "student:" + studentID }

func ProjectLock(projectID string) string { return "project:" + projectID }
