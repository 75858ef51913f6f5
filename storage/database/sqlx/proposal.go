package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/takharruj/core/proposal"
)

const proposalColumns = "id, project_id, student_id, student_name, content, status, created_at, updated_at"

type proposalRow struct {
	ID          string      `db:"id"`
	ProjectID   string      `db:"project_id"`
	StudentID   string      `db:"student_id"`
	StudentName null.String `db:"student_name"`
	Content     null.String `db:"content"`
	Status      string      `db:"status"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r proposalRow) toProposal() proposal.Proposal {
	return proposal.Proposal{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		StudentID:   r.StudentID,
		StudentName: r.StudentName.String,
		Content:     r.Content.String,
		Status:      normalizeStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// normalizeStatus trims and lowers the stored status before handing it to the domain.
func normalizeStatus(s string) proposal.Status {
	st, _ := proposal.ParseStatus(s)
	return st
}

type rejectionRow struct {
	StudentID  string    `db:"student_id"`
	ProjectID  string    `db:"project_id"`
	ProposalID string    `db:"proposal_id"`
	RejectedAt time.Time `db:"rejected_at"`
}

type proposalRepository struct {
	exec sqlx.ExtContext
}

var _ proposal.Repository = (*proposalRepository)(nil) // interface compliance check

func (repo *proposalRepository) CreateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	var row proposalRow
	err := sqlx.GetContext(ctx, repo.exec, &row,
		`INSERT INTO proposals (id, project_id, student_id, student_name, content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+proposalColumns,
		p.ID, p.ProjectID, p.StudentID,
		null.NewString(p.StudentName, p.StudentName != ""),
		null.NewString(p.Content, p.Content != ""),
		string(p.Status), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return proposal.Proposal{}, mapError(err)
	}
	return row.toProposal(), nil
}

func (repo *proposalRepository) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	var row proposalRow
	err := sqlx.GetContext(ctx, repo.exec, &row, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	if err != nil {
		return proposal.Proposal{}, trapNoRowsErr(err, proposal.ErrNotFound)
	}
	return row.toProposal(), nil
}

func (repo *proposalRepository) QueryProposals(ctx context.Context, filter proposal.QueryFilter) ([]proposal.Proposal, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	q := `SELECT ` + proposalColumns + ` FROM proposals`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"

	rows := make([]proposalRow, 0)
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, mapError(err)
	}
	props := make([]proposal.Proposal, 0, len(rows))
	for _, r := range rows {
		props = append(props, r.toProposal())
	}
	return props, nil
}

func (repo *proposalRepository) UpdateProposalStatus(ctx context.Context, id string, status proposal.Status, at time.Time) (proposal.Proposal, error) {
	var row proposalRow
	err := sqlx.GetContext(ctx, repo.exec, &row,
		`UPDATE proposals SET status = $1, updated_at = $2 WHERE id = $3 RETURNING `+proposalColumns,
		string(status), at.UTC(), id,
	)
	if err != nil {
		return proposal.Proposal{}, trapNoRowsErr(err, proposal.ErrNotFound)
	}
	return row.toProposal(), nil
}

func (repo *proposalRepository) DeleteProposal(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return mapError(err)
	} else if n == 0 {
		return proposal.ErrNotFound
	}
	return nil
}

func (repo *proposalRepository) DeleteProjectProposals(ctx context.Context, projectID string) (int64, error) {
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM proposals WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (repo *proposalRepository) RememberRejection(ctx context.Context, rej proposal.Rejection) error {
	_, err := repo.exec.ExecContext(ctx,
		`INSERT INTO proposal_rejections (student_id, project_id, proposal_id, rejected_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, project_id) DO NOTHING`,
		rej.StudentID, rej.ProjectID, rej.ProposalID, rej.RejectedAt.UTC(),
	)
	return mapError(err)
}

func (repo *proposalRepository) HasRejection(ctx context.Context, studentID, projectID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.exec, &exists,
		`SELECT EXISTS (SELECT 1 FROM proposal_rejections WHERE student_id = $1 AND project_id = $2)`,
		studentID, projectID,
	)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// QueryRejections lists a student's rejection memory; an empty studentID lists everyone's.
func (repo *proposalRepository) QueryRejections(ctx context.Context, studentID string) ([]proposal.Rejection, error) {
	rows := make([]rejectionRow, 0)
	err := sqlx.SelectContext(ctx, repo.exec, &rows,
		`SELECT student_id, project_id, proposal_id, rejected_at FROM proposal_rejections
		WHERE ($1::text = '' OR student_id = $1::text)
		ORDER BY rejected_at ASC, project_id ASC`,
		studentID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	rejs := make([]proposal.Rejection, 0, len(rows))
	for _, r := range rows {
		rejs = append(rejs, proposal.Rejection{
			StudentID:  r.StudentID,
			ProjectID:  r.ProjectID,
			ProposalID: r.ProposalID,
			RejectedAt: r.RejectedAt.UTC(),
		})
	}
	return rejs, nil
}
