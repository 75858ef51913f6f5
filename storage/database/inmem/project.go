package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
)

type projectRepository struct {
	store *Store
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func (repo *projectRepository) CreateProject(_ context.Context, prj project.Project) (project.Project, error) {
	db := repo.store.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.fault("CreateProject"); err != nil {
		return project.Project{}, err
	}
	if _, ok := db.projects[prj.ID]; ok {
		return project.Project{}, core.NewStorageError(errDuplicateKey)
	}
	db.projects[prj.ID] = prj
	repo.store.record(func() { delete(db.projects, prj.ID) })
	return prj, nil
}

func (repo *projectRepository) GetProject(_ context.Context, id string) (project.Project, error) {
	db := repo.store.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.fault("GetProject"); err != nil {
		return project.Project{}, err
	}
	if prj, ok := db.projects[id]; ok {
		return prj, nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) QueryProjects(_ context.Context, filter *project.QueryFilter, ordering ...core.DBOrdering) ([]project.Project, error) {
	db := repo.store.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.fault("QueryProjects"); err != nil {
		return nil, err
	}

	projects := make([]project.Project, 0, len(db.projects))
	for _, prj := range db.projects {
		if filter != nil {
			if filter.TeacherID != "" && prj.TeacherID != filter.TeacherID {
				continue
			}
			if filter.Search != "" && !containsFold(filter.Search, prj.Title, prj.Description, prj.TeacherName) {
				continue
			}
		}
		projects = append(projects, prj)
	}

	sort.SliceStable(projects, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := projects[i], projects[j]
			var cmp int
			switch ord.Field {
			case "title":
				cmp = strings.Compare(a.Title, b.Title)
			case "teacher_name":
				cmp = strings.Compare(a.TeacherName, b.TeacherName)
			case "created_at":
				cmp = compareTime(a.CreatedAt, b.CreatedAt)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

// DeleteProject also drops the project's proposals, like the ON DELETE CASCADE foreign key.
func (repo *projectRepository) DeleteProject(_ context.Context, id string) error {
	db := repo.store.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.fault("DeleteProject"); err != nil {
		return err
	}
	prj, ok := db.projects[id]
	if !ok {
		return project.ErrNotFound
	}
	for pid, row := range db.proposals {
		if row.ProjectID == id {
			row := row
			delete(db.proposals, pid)
			repo.store.record(func() { db.proposals[row.ID] = row })
		}
	}
	delete(db.projects, id)
	repo.store.record(func() { db.projects[prj.ID] = prj })
	return nil
}
