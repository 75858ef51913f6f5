package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
)

type proposalRepository struct {
	store *Store
}

var _ proposal.Repository = (*proposalRepository)(nil) // interface compliance check

// checkUnique mirrors the unique indexes of the proposals table. Must be called with db.mu held.
func (repo *proposalRepository) checkUnique(p proposal.Proposal) error {
	for _, row := range repo.store.db.proposals {
		if row.ID == p.ID {
			continue
		}
		if row.StudentID == p.StudentID && row.ProjectID == p.ProjectID {
			return proposal.ErrDuplicateSubmission
		}
		if p.Status != proposal.StatusSelected || row.Status != proposal.StatusSelected {
			continue
		}
		if row.ProjectID == p.ProjectID {
			return proposal.ErrProjectReserved
		}
		if row.StudentID == p.StudentID {
			return proposal.ErrStudentAlreadyFinalized
		}
	}
	return nil
}

func (repo *proposalRepository) CreateProposal(_ context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	db := repo.store.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.fault("CreateProposal"); err != nil {
		return proposal.Proposal{}, err
	}
	if _, ok := db.projects[p.ProjectID]; !ok {
		return proposal.Proposal{}, project.ErrNotFound
	}
	if err := repo.checkUnique(p); err != nil {
		return proposal.Proposal{}, err
	}
	db.proposals[p.ID] = proposalRow{Proposal: p, seq: db.nextSeq()}
	repo.store.record(func() { delete(db.proposals, p.ID) })
	return p, nil
}

func (repo *proposalRepository) GetProposal(_ context.Context, id string) (proposal.Proposal, error) {
	db := repo.store.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.fault("GetProposal"); err != nil {
		return proposal.Proposal{}, err
	}
	if row, ok := db.proposals[id]; ok {
		return row.Proposal, nil
	}
	return proposal.Proposal{}, proposal.ErrNotFound
}

func (repo *proposalRepository) QueryProposals(_ context.Context, filter proposal.QueryFilter) ([]proposal.Proposal, error) {
	db := repo.store.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.fault("QueryProposals"); err != nil {
		return nil, err
	}
	rows := make([]proposalRow, 0)
	for _, row := range db.proposals {
		if filter.Match(row.Proposal) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := compareTime(rows[i].CreatedAt, rows[j].CreatedAt); c != 0 {
			return c < 0
		}
		return rows[i].seq < rows[j].seq
	})

	props := make([]proposal.Proposal, 0, len(rows))
	for _, row := range rows {
		props = append(props, row.Proposal)
	}
	return props, nil
}

func (repo *proposalRepository) UpdateProposalStatus(_ context.Context, id string, status proposal.Status, at time.Time) (proposal.Proposal, error) {
	db := repo.store.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.fault("UpdateProposalStatus"); err != nil {
		return proposal.Proposal{}, err
	}
	orig, ok := db.proposals[id]
	if !ok {
		return proposal.Proposal{}, proposal.ErrNotFound
	}
	row := orig
	row.Status = status
	row.UpdatedAt = at
	if err := repo.checkUnique(row.Proposal); err != nil {
		return proposal.Proposal{}, err
	}
	db.proposals[id] = row
	repo.store.record(func() { db.proposals[id] = orig })
	return row.Proposal, nil
}

func (repo *proposalRepository) DeleteProposal(_ context.Context, id string) error {
	db := repo.store.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.fault("DeleteProposal"); err != nil {
		return err
	}
	row, ok := db.proposals[id]
	if !ok {
		return proposal.ErrNotFound
	}
	delete(db.proposals, id)
	repo.store.record(func() { db.proposals[id] = row })
	return nil
}

func (repo *proposalRepository) DeleteProjectProposals(_ context.Context, projectID string) (int64, error) {
	db := repo.store.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.fault("DeleteProjectProposals"); err != nil {
		return 0, err
	}
	var n int64
	for id, row := range db.proposals {
		if row.ProjectID != projectID {
			continue
		}
		row := row
		delete(db.proposals, id)
		repo.store.record(func() { db.proposals[row.ID] = row })
		n++
	}
	return n, nil
}

func (repo *proposalRepository) RememberRejection(_ context.Context, rej proposal.Rejection) error {
	db := repo.store.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.fault("RememberRejection"); err != nil {
		return err
	}
	key := rejectionKey{rej.StudentID, rej.ProjectID}
	if _, ok := db.rejections[key]; ok {
		return nil
	}
	db.rejections[key] = rej
	repo.store.record(func() { delete(db.rejections, key) })
	return nil
}

func (repo *proposalRepository) HasRejection(_ context.Context, studentID, projectID string) (bool, error) {
	db := repo.store.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.fault("HasRejection"); err != nil {
		return false, err
	}
	_, ok := db.rejections[rejectionKey{studentID, projectID}]
	return ok, nil
}

func (repo *proposalRepository) QueryRejections(_ context.Context, studentID string) ([]proposal.Rejection, error) {
	db := repo.store.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.fault("QueryRejections"); err != nil {
		return nil, err
	}
	rejs := make([]proposal.Rejection, 0)
	for _, rej := range db.rejections {
		if studentID == "" || rej.StudentID == studentID {
			rejs = append(rejs, rej)
		}
	}
	sort.Slice(rejs, func(i, j int) bool {
		if c := compareTime(rejs[i].RejectedAt, rejs[j].RejectedAt); c != 0 {
			return c < 0
		}
		return rejs[i].ProjectID < rejs[j].ProjectID
	})
	return rejs, nil
}
