package proposal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/user"
)

// NowFunc returns the current UTC time. Mockable.
var NowFunc = func() time.Time { return time.Now().UTC() }

type actor int

const (
	actorOwner   actor = iota + 1 // teacher owning the project
	actorStudent                  // student owning the proposal
)

type transition struct {
	from, to Status
}

// transitions lists every legal status change and who may request it.
var transitions = map[transition]actor{
	{StatusPending, StatusApproved}:  actorOwner,
	{StatusPending, StatusRejected}:  actorOwner,
	{StatusApproved, StatusRejected}: actorOwner,
	{StatusApproved, StatusSelected}: actorStudent,
}

// Service is the proposal lifecycle manager. Every rule check and the writes depending on it
// run in one Store unit of work locked on the affected student and project.
type Service struct {
	store    Store
	notifier *notifier
	logger   core.Logger
}

func NewService(store Store, users user.Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Service{
		store:    store,
		notifier: &notifier{store: store, users: users, mailSvc: mailSvc, logger: logger},
		logger:   logger,
	}
}

// Submit files a pending proposal for projectID on behalf of the calling student.
// Checks run in a fixed order so the reported violation is deterministic.
func (svc *Service) Submit(ctx context.Context, caller user.User, projectID string, np NewProposal) (Proposal, error) {
	if !caller.IsAuthenticated() || !caller.IsStudent() {
		return Proposal{}, ErrUnauthorized
	}
	if _, err := uuid.Parse(projectID); err != nil {
		return Proposal{}, project.ErrNotFound
	}

	var created Proposal
	locks := []string{StudentLock(caller.ID), ProjectLock(projectID)}
	err := svc.store.Atomic(ctx, locks, func(st Store) error {
		if _, err := st.Projects().GetProject(ctx, projectID); err != nil {
			return err
		}
		repo := st.Proposals()

		mine, err := repo.QueryProposals(ctx, QueryFilter{StudentID: caller.ID})
		if err != nil {
			return err
		}
		if _, finalized := findSelected(mine); finalized {
			return ErrAlreadyFinalized
		}

		rejected, err := repo.HasRejection(ctx, caller.ID, projectID)
		if err != nil {
			return err
		}
		if rejected {
			return ErrPreviouslyRejected
		}

		reserved, err := isReserved(ctx, repo, projectID)
		if err != nil {
			return err
		}
		if reserved {
			return ErrProjectReserved
		}

		if countActive(mine) >= MaxActiveProposals {
			return ErrQuotaExceeded
		}

		for _, p := range mine {
			if p.ProjectID == projectID {
				return ErrDuplicateSubmission
			}
		}

		now := NowFunc()
		created, err = repo.CreateProposal(ctx, Proposal{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			StudentID:   caller.ID,
			StudentName: caller.DisplayName(),
			Content:     np.Content,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	if err != nil {
		return Proposal{}, err
	}
	return created, nil
}

// SetStatus moves a proposal through its lifecycle. Selecting a proposal rejects every other
// approved proposal of the same student in the same unit of work.
func (svc *Service) SetStatus(ctx context.Context, caller user.User, proposalID, status string) (Proposal, error) {
	if !caller.IsAuthenticated() {
		return Proposal{}, ErrUnauthorized
	}
	target, ok := ParseStatus(status)
	if !ok {
		return Proposal{}, ErrInvalidTransition
	}

	peek, err := svc.getProposal(ctx, svc.store, proposalID)
	if err != nil {
		return Proposal{}, err
	}

	var (
		updated  Proposal
		cascaded []Proposal
	)
	locks := []string{StudentLock(peek.StudentID), ProjectLock(peek.ProjectID)}
	err = svc.store.Atomic(ctx, locks, func(st Store) error {
		prop, err := svc.getProposal(ctx, st, proposalID)
		if err != nil {
			return err
		}

		who, legal := transitions[transition{prop.Status, target}]
		if !legal {
			return ErrInvalidTransition
		}
		if err = svc.authorize(ctx, st, caller, prop, who); err != nil {
			return err
		}

		repo := st.Proposals()
		now := NowFunc()
		switch target {
		case StatusApproved:
			if err = guardProject(ctx, repo, prop); err != nil {
				return err
			}
			if err = guardStudent(ctx, repo, prop); err != nil {
				return err
			}
		case StatusSelected:
			if err = guardStudent(ctx, repo, prop); err != nil {
				return err
			}
			if err = guardProject(ctx, repo, prop); err != nil {
				return err
			}
		}

		if updated, err = repo.UpdateProposalStatus(ctx, prop.ID, target, now); err != nil {
			return err
		}
		if target == StatusRejected {
			return rememberRejection(ctx, repo, updated, now)
		}
		if target == StatusSelected {
			cascaded, err = rejectOthers(ctx, repo, updated, now)
			return err
		}
		return nil
	})
	if err != nil {
		return Proposal{}, err
	}

	if target == StatusSelected {
		svc.logger.Info("proposal selected", map[string]interface{}{
			"proposal_id":   updated.ID,
			"project_id":    updated.ProjectID,
			"student_id":    updated.StudentID,
			"auto_rejected": len(cascaded),
		}, caller)
	}
	svc.notifier.statusChanged(ctx, updated, false)
	for _, p := range cascaded {
		svc.notifier.statusChanged(ctx, p, true)
	}
	return updated, nil
}

// Delete removes one of the caller's proposals. Rejection memory is kept.
func (svc *Service) Delete(ctx context.Context, caller user.User, proposalID string) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthorized
	}
	peek, err := svc.getProposal(ctx, svc.store, proposalID)
	if err != nil {
		return err
	}

	locks := []string{StudentLock(peek.StudentID), ProjectLock(peek.ProjectID)}
	return svc.store.Atomic(ctx, locks, func(st Store) error {
		prop, err := svc.getProposal(ctx, st, proposalID)
		if err != nil {
			return err
		}
		if !caller.IsStudent() || caller.ID != prop.StudentID {
			return ErrUnauthorized
		}
		if prop.Status == StatusSelected {
			return ErrInvalidTransition
		}
		return st.Proposals().DeleteProposal(ctx, prop.ID)
	})
}

// DeleteProject removes a project and all of its proposals. Only its owner may do so.
func (svc *Service) DeleteProject(ctx context.Context, caller user.User, projectID string) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthorized
	}
	if _, err := uuid.Parse(projectID); err != nil {
		return project.ErrNotFound
	}

	var removed int64
	err := svc.store.Atomic(ctx, []string{ProjectLock(projectID)}, func(st Store) error {
		prj, err := st.Projects().GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if !caller.IsTeacher() || !prj.IsOwnedBy(caller.ID) {
			return ErrUnauthorized
		}
		if removed, err = st.Proposals().DeleteProjectProposals(ctx, projectID); err != nil {
			return err
		}
		return st.Projects().DeleteProject(ctx, projectID)
	})
	if err != nil {
		return err
	}
	svc.logger.Info("project deleted", map[string]interface{}{"project_id": projectID, "proposals": removed}, caller)
	return nil
}

// Query helpers

func (svc *Service) HasFinalizedProject(ctx context.Context, studentID string) (bool, error) {
	props, err := svc.store.Proposals().QueryProposals(ctx, QueryFilter{StudentID: studentID, Statuses: []Status{StatusSelected}})
	if err != nil {
		return false, err
	}
	return len(props) > 0, nil
}

func (svc *Service) WasRejected(ctx context.Context, studentID, projectID string) (bool, error) {
	return svc.store.Proposals().HasRejection(ctx, studentID, projectID)
}

func (svc *Service) IsReserved(ctx context.Context, projectID string) (bool, error) {
	return isReserved(ctx, svc.store.Proposals(), projectID)
}

func (svc *Service) ActiveCount(ctx context.Context, studentID string) (int, error) {
	props, err := svc.store.Proposals().QueryProposals(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return 0, err
	}
	return countActive(props), nil
}

// ReservedProjects returns the ids of every project holding a selected proposal.
func (svc *Service) ReservedProjects(ctx context.Context) (map[string]bool, error) {
	props, err := svc.store.Proposals().QueryProposals(ctx, QueryFilter{Statuses: []Status{StatusSelected}})
	if err != nil {
		return nil, err
	}
	reserved := make(map[string]bool, len(props))
	for _, p := range props {
		reserved[p.ProjectID] = true
	}
	return reserved, nil
}

func (svc *Service) Summary(ctx context.Context, caller user.User) (Summary, error) {
	if !caller.IsAuthenticated() || !caller.IsStudent() {
		return Summary{}, ErrUnauthorized
	}
	props, err := svc.store.Proposals().QueryProposals(ctx, QueryFilter{StudentID: caller.ID})
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{ActiveCount: countActive(props), MaxActive: MaxActiveProposals}
	if sel, ok := findSelected(props); ok {
		sum.Finalized = true
		sum.SelectedProjectID = sel.ProjectID
	}
	return sum, nil
}

// QueryMine returns the calling student's proposals.
func (svc *Service) QueryMine(ctx context.Context, caller user.User) ([]Proposal, error) {
	if !caller.IsAuthenticated() || !caller.IsStudent() {
		return nil, ErrUnauthorized
	}
	return svc.store.Proposals().QueryProposals(ctx, QueryFilter{StudentID: caller.ID})
}

// QueryByProject returns every proposal made on a project. Only its owner may list them.
func (svc *Service) QueryByProject(ctx context.Context, caller user.User, projectID string, statuses ...Status) ([]Proposal, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, project.ErrNotFound
	}
	prj, err := svc.store.Projects().GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !caller.IsTeacher() || !prj.IsOwnedBy(caller.ID) {
		return nil, ErrUnauthorized
	}
	return svc.store.Proposals().QueryProposals(ctx, QueryFilter{ProjectID: projectID, Statuses: statuses})
}

// Rejections returns the calling student's rejection memory.
func (svc *Service) Rejections(ctx context.Context, caller user.User) ([]Rejection, error) {
	if !caller.IsAuthenticated() || !caller.IsStudent() {
		return nil, ErrUnauthorized
	}
	return svc.store.Proposals().QueryRejections(ctx, caller.ID)
}

// helpers

func (svc *Service) getProposal(ctx context.Context, st Store, id string) (Proposal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Proposal{}, ErrNotFound
	}
	return st.Proposals().GetProposal(ctx, id)
}

func (svc *Service) authorize(ctx context.Context, st Store, caller user.User, prop Proposal, who actor) error {
	switch who {
	case actorStudent:
		if caller.IsStudent() && caller.ID == prop.StudentID {
			return nil
		}
	case actorOwner:
		if !caller.IsTeacher() {
			return ErrUnauthorized
		}
		prj, err := st.Projects().GetProject(ctx, prop.ProjectID)
		if err != nil {
			return errors.Wrap(err, "getting proposal project")
		}
		if prj.IsOwnedBy(caller.ID) {
			return nil
		}
	}
	return ErrUnauthorized
}

// guardProject fails if another proposal already reserved prop's project.
func guardProject(ctx context.Context, repo Repository, prop Proposal) error {
	sel, err := repo.QueryProposals(ctx, QueryFilter{ProjectID: prop.ProjectID, Statuses: []Status{StatusSelected}})
	if err != nil {
		return err
	}
	for _, p := range sel {
		if p.ID != prop.ID {
			return ErrProjectReserved
		}
	}
	return nil
}

// guardStudent fails if prop's student already selected another proposal.
func guardStudent(ctx context.Context, repo Repository, prop Proposal) error {
	sel, err := repo.QueryProposals(ctx, QueryFilter{StudentID: prop.StudentID, Statuses: []Status{StatusSelected}})
	if err != nil {
		return err
	}
	for _, p := range sel {
		if p.ID != prop.ID {
			return ErrStudentAlreadyFinalized
		}
	}
	return nil
}

func rememberRejection(ctx context.Context, repo Repository, prop Proposal, at time.Time) error {
	return repo.RememberRejection(ctx, Rejection{
		StudentID:  prop.StudentID,
		ProjectID:  prop.ProjectID,
		ProposalID: prop.ID,
		RejectedAt: at,
	})
}

// rejectOthers rejects the student's remaining approved proposals once sel is selected.
func rejectOthers(ctx context.Context, repo Repository, sel Proposal, at time.Time) ([]Proposal, error) {
	approved, err := repo.QueryProposals(ctx, QueryFilter{StudentID: sel.StudentID, Statuses: []Status{StatusApproved}})
	if err != nil {
		return nil, err
	}
	rejected := make([]Proposal, 0, len(approved))
	for _, p := range approved {
		if p.ID == sel.ID {
			continue
		}
		p, err = repo.UpdateProposalStatus(ctx, p.ID, StatusRejected, at)
		if err != nil {
			return nil, errors.Wrap(err, "rejecting approved proposal")
		}
		if err = rememberRejection(ctx, repo, p, at); err != nil {
			return nil, errors.Wrap(err, "remembering rejection")
		}
		rejected = append(rejected, p)
	}
	return rejected, nil
}

func isReserved(ctx context.Context, repo Repository, projectID string) (bool, error) {
	sel, err := repo.QueryProposals(ctx, QueryFilter{ProjectID: projectID, Statuses: []Status{StatusSelected}})
	if err != nil {
		return false, err
	}
	return len(sel) > 0, nil
}

func findSelected(props []Proposal) (Proposal, bool) {
	for _, p := range props {
		if p.Status == StatusSelected {
			return p, true
		}
	}
	return Proposal{}, false
}

func countActive(props []Proposal) int {
	var n int
	for _, p := range props {
		if p.Status.IsActive() {
			n++
		}
	}
	return n
}
