package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/user"
)

var (
	// errors
	ErrNotFound  = errors.New("project not found")
	ErrForbidden = errors.New("only teachers may create projects")
)

type (
	// Repository is the project side of the persistence gateway.
	Repository interface {
		CreateProject(ctx context.Context, prj Project) (Project, error)
		GetProject(ctx context.Context, id string) (Project, error)
		QueryProjects(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Project, error)
		// DeleteProject removes the project row only; proposals are the lifecycle manager's business.
		DeleteProject(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, teacher user.User, np NewProject) (Project, error) {
	if !teacher.IsTeacher() {
		return Project{}, ErrForbidden
	}
	return svc.repo.CreateProject(ctx, Project{
		ID:          uuid.NewString(),
		Title:       np.Title,
		Description: np.Description,
		TeacherID:   teacher.ID,
		TeacherName: teacher.DisplayName(),
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Project{}, ErrNotFound
	}
	return svc.repo.GetProject(ctx, id)
}

// Query lists projects, newest first unless ordering says otherwise.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Project, error) {
	if filter != nil {
		filter.Clean()
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryProjects(ctx, filter, ordering...)
}
