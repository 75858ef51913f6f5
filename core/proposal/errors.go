package proposal

import "github.com/pkg/errors"

// Violation is a business rule failure. Code is stable and safe to expose to clients.
type Violation struct {
	Code string
	msg  string
}

func (v *Violation) Error() string { return v.msg }

var (
	ErrNotFound = errors.New("proposal not found")

	ErrUnauthorized            = &Violation{Code: "unauthorized", msg: "caller is not allowed to perform this action"}
	ErrAlreadyFinalized        = &Violation{Code: "already_finalized", msg: "student already has a selected project"}
	ErrPreviouslyRejected      = &Violation{Code: "previously_rejected", msg: "student was already rejected for this project"}
	ErrProjectReserved         = &Violation{Code: "project_reserved", msg: "project is reserved by another student"}
	ErrQuotaExceeded           = &Violation{Code: "quota_exceeded", msg: "student reached the maximum number of active proposals"}
	ErrDuplicateSubmission     = &Violation{Code: "duplicate_submission", msg: "student already submitted a proposal for this project"}
	ErrStudentAlreadyFinalized = &Violation{Code: "student_already_finalized", msg: "student already finalized a project"}
	ErrInvalidTransition       = &Violation{Code: "invalid_transition", msg: "status transition not allowed"}

	Violations = []*Violation{
		ErrUnauthorized,
		ErrAlreadyFinalized,
		ErrPreviouslyRejected,
		ErrProjectReserved,
		ErrQuotaExceeded,
		ErrDuplicateSubmission,
		ErrStudentAlreadyFinalized,
		ErrInvalidTransition,
	}
)

// AsViolation unwraps err down to a Violation, if any.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
