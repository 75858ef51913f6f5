package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
)

func CreateUser(t *testing.T, repo user.Repository, id, name, email, role string, createdAt ...time.Time) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		ID:        id,
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateProject(t *testing.T, repo project.Repository, teacher user.User, title string, createdAt ...time.Time) project.Project {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	prj, err := repo.CreateProject(context.Background(), project.Project{
		ID:          uuid.NewString(),
		Title:       title,
		Description: title + " description",
		TeacherID:   teacher.ID,
		TeacherName: teacher.DisplayName(),
		CreatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return prj
}

// CreateProposal stores a proposal as is, bypassing the lifecycle rules.
func CreateProposal(t *testing.T, repo proposal.Repository, student user.User, projectID string, status proposal.Status) proposal.Proposal {
	now := time.Now().UTC()
	prop, err := repo.CreateProposal(context.Background(), proposal.Proposal{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		StudentID:   student.ID,
		StudentName: student.DisplayName(),
		Content:     "content",
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateProposal() failed: %v", err)
	}
	return prop
}
