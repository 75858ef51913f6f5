package proposal

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/takharruj/core"
)

// MaxActiveProposals is the number of non-rejected proposals a student may hold at once.
const MaxActiveProposals = 3

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSelected Status = "selected"
)

var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusSelected}

// ParseStatus normalizes s and reports whether it names a known status.
func ParseStatus(s string) (Status, bool) {
	st := Status(core.CleanString(s, true /* lower */))
	for _, known := range AllStatuses {
		if st == known {
			return st, true
		}
	}
	return st, false
}

// IsActive reports whether a proposal in this status counts toward the quota.
func (s Status) IsActive() bool { return s != StatusRejected }

// Proposal is a student's application to a project.
type Proposal struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Content     string    `json:"content,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewProposal struct {
	Content string `json:"content" validate:"max=10000"`
}

func (np *NewProposal) Validate(validate *validator.Validate) error {
	np.Content = core.CleanString(np.Content)
	return validate.Struct(np)
}

type StatusUpdate struct {
	Status string `json:"status" validate:"required"`
}

func (su *StatusUpdate) Validate(validate *validator.Validate) error {
	su.Status = core.CleanString(su.Status, true /* lower */)
	return validate.Struct(su)
}

// Rejection records that a student was rejected for a project. Entries outlive the proposal.
type Rejection struct {
	StudentID  string    `json:"student_id"`
	ProjectID  string    `json:"project_id"`
	ProposalID string    `json:"proposal_id"`
	RejectedAt time.Time `json:"rejected_at"` // UTC
}

// QueryFilter ANDs the set fields.
type QueryFilter struct {
	ProjectID string
	StudentID string
	Statuses  []Status
}

func (qf QueryFilter) Match(p Proposal) bool {
	if qf.ProjectID != "" && p.ProjectID != qf.ProjectID {
		return false
	}
	if qf.StudentID != "" && p.StudentID != qf.StudentID {
		return false
	}
	if len(qf.Statuses) == 0 {
		return true
	}
	for _, st := range qf.Statuses {
		if p.Status == st {
			return true
		}
	}
	return false
}

// Summary is a student's standing.
type Summary struct {
	ActiveCount       int    `json:"active_count"`
	MaxActive         int    `json:"max_active"`
	Finalized         bool   `json:"finalized"`
	SelectedProjectID string `json:"selected_project_id,omitempty"`
}
