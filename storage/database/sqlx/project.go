package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
)

const projectColumns = "id, title, description, teacher_id, teacher_name, created_at"

// projectOrderColumns whitelists sortable fields.
var projectOrderColumns = map[string]string{
	"title":        "title",
	"created_at":   "created_at",
	"teacher_name": "teacher_name",
}

type projectRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	TeacherID   string      `db:"teacher_id"`
	TeacherName null.String `db:"teacher_name"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r projectRow) toProject() project.Project {
	return project.Project{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		TeacherID:   r.TeacherID,
		TeacherName: r.TeacherName.String,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type projectRepository struct {
	exec sqlx.ExtContext
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func (repo *projectRepository) CreateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	var row projectRow
	err := sqlx.GetContext(ctx, repo.exec, &row,
		`INSERT INTO projects (id, title, description, teacher_id, teacher_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+projectColumns,
		prj.ID, prj.Title, prj.Description, prj.TeacherID,
		null.NewString(prj.TeacherName, prj.TeacherName != ""), prj.CreatedAt.UTC(),
	)
	if err != nil {
		return project.Project{}, mapError(err)
	}
	return row.toProject(), nil
}

func (repo *projectRepository) GetProject(ctx context.Context, id string) (project.Project, error) {
	var row projectRow
	err := sqlx.GetContext(ctx, repo.exec, &row, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	if err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound)
	}
	return row.toProject(), nil
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter *project.QueryFilter, ordering ...core.DBOrdering) ([]project.Project, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.TeacherID != "" {
			args = append(args, filter.TeacherID)
			where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)))
		}
		if filter.Search != "" {
			args = append(args, "%"+escapeLike(filter.Search)+"%")
			n := len(args)
			where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR teacher_name ILIKE $%d)", n, n, n))
		}
	}

	q := `SELECT ` + projectColumns + ` FROM projects`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, projectOrderColumns, "id ASC")

	rows := make([]projectRow, 0)
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, mapError(err)
	}
	projects := make([]project.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.toProject())
	}
	return projects, nil
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return mapError(err)
	} else if n == 0 {
		return project.ErrNotFound
	}
	return nil
}

// orderBy renders an ORDER BY clause from whitelisted fields; tieBreak always comes last.
func orderBy(ordering []core.DBOrdering, columns map[string]string, tieBreak string) string {
	parts := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	parts = append(parts, tieBreak)
	return " ORDER BY " + strings.Join(parts, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
