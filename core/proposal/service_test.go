package proposal_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	. "github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
	emailsvc "github.com/trezcool/takharruj/services/email"
	inmemdb "github.com/trezcool/takharruj/storage/database/inmem"
	testutil "github.com/trezcool/takharruj/tests"
)

var errBoom = errors.New("boom")

type fixture struct {
	svc   *Service
	db    *inmemdb.DB
	store *inmemdb.Store
	users user.Repository

	teacher, teacher2           user.User
	student, student2, student3 user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(conf, core.NopLogger{})
	emailsvc.ResetSentMessages()

	db := inmemdb.NewDB()
	f := &fixture{
		db:    db,
		store: inmemdb.NewStore(db),
		users: inmemdb.NewUserRepository(db),
	}
	f.svc = NewService(f.store, f.users, emailsvc.NewConsoleServiceMock(conf), core.NopLogger{})

	f.teacher = testutil.CreateUser(t, f.users, "t1", "د. سامي", "sami@uni.test", user.RoleTeacher)
	f.teacher2 = testutil.CreateUser(t, f.users, "t2", "د. ليلى", "layla@uni.test", user.RoleTeacher)
	f.student = testutil.CreateUser(t, f.users, "s1", "أحمد", "ahmed@uni.test", user.RoleStudent)
	f.student2 = testutil.CreateUser(t, f.users, "s2", "منى", "mona@uni.test", user.RoleStudent)
	f.student3 = testutil.CreateUser(t, f.users, "s3", "Omar", "", user.RoleStudent)
	return f
}

func (f *fixture) project(t *testing.T, title string) project.Project {
	return testutil.CreateProject(t, f.store.Projects(), f.teacher, title)
}

func (f *fixture) proposal(t *testing.T, student user.User, prj project.Project, st Status) Proposal {
	return testutil.CreateProposal(t, f.store.Proposals(), student, prj.ID, st)
}

func (f *fixture) get(t *testing.T, id string) Proposal {
	t.Helper()
	p, err := f.store.Proposals().GetProposal(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) rejected(t *testing.T, student user.User, prj project.Project) bool {
	t.Helper()
	ok, err := f.svc.WasRejected(context.Background(), student.ID, prj.ID)
	require.NoError(t, err)
	return ok
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending proposal", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "نظام حجز القاعات")

		p, err := f.svc.Submit(ctx, f.student, prj.ID, NewProposal{Content: "فكرتي"})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, p.Status)
		assert.Equal(t, f.student.ID, p.StudentID)
		assert.Equal(t, "أحمد", p.StudentName)
		assert.Equal(t, prj.ID, p.ProjectID)
		assert.Equal(t, "فكرتي", p.Content)
		assert.NotEmpty(t, p.ID)

		n, err := f.svc.ActiveCount(ctx, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("teachers cannot submit", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "P")
		_, err := f.svc.Submit(ctx, f.teacher, prj.ID, NewProposal{})
		assert.Equal(t, ErrUnauthorized, err)
	})

	t.Run("unknown project", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Submit(ctx, f.student, uuid.NewString(), NewProposal{})
		assert.Equal(t, project.ErrNotFound, err)
	})

	t.Run("malformed project id", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Submit(ctx, f.student, "lol", NewProposal{})
		assert.Equal(t, project.ErrNotFound, err)
	})

	type tcase struct {
		name    string
		prepare func(t *testing.T, f *fixture) project.Project // returns the target project
		wantErr error
	}
	tests := []tcase{
		{
			name: "finalized student",
			prepare: func(t *testing.T, f *fixture) project.Project {
				f.proposal(t, f.student, f.project(t, "A"), StatusSelected)
				return f.project(t, "B")
			},
			wantErr: ErrAlreadyFinalized,
		},
		{
			name: "finalized wins over previously rejected",
			prepare: func(t *testing.T, f *fixture) project.Project {
				f.proposal(t, f.student, f.project(t, "A"), StatusSelected)
				target := f.project(t, "B")
				p := f.proposal(t, f.student, target, StatusPending)
				_, err := f.svc.SetStatus(context.Background(), f.teacher, p.ID, "rejected")
				require.NoError(t, err)
				return target
			},
			wantErr: ErrAlreadyFinalized,
		},
		{
			name: "previously rejected, proposal since deleted",
			prepare: func(t *testing.T, f *fixture) project.Project {
				target := f.project(t, "A")
				p := f.proposal(t, f.student, target, StatusPending)
				_, err := f.svc.SetStatus(context.Background(), f.teacher, p.ID, "rejected")
				require.NoError(t, err)
				require.NoError(t, f.svc.Delete(context.Background(), f.student, p.ID))
				return target
			},
			wantErr: ErrPreviouslyRejected,
		},
		{
			name: "previously rejected wins over reserved",
			prepare: func(t *testing.T, f *fixture) project.Project {
				target := f.project(t, "A")
				p := f.proposal(t, f.student, target, StatusPending)
				_, err := f.svc.SetStatus(context.Background(), f.teacher, p.ID, "rejected")
				require.NoError(t, err)
				f.proposal(t, f.student2, target, StatusSelected)
				return target
			},
			wantErr: ErrPreviouslyRejected,
		},
		{
			name: "reserved project",
			prepare: func(t *testing.T, f *fixture) project.Project {
				target := f.project(t, "A")
				f.proposal(t, f.student2, target, StatusSelected)
				return target
			},
			wantErr: ErrProjectReserved,
		},
		{
			name: "reserved wins over quota",
			prepare: func(t *testing.T, f *fixture) project.Project {
				for _, title := range []string{"A", "B", "C"} {
					f.proposal(t, f.student, f.project(t, title), StatusPending)
				}
				target := f.project(t, "D")
				f.proposal(t, f.student2, target, StatusSelected)
				return target
			},
			wantErr: ErrProjectReserved,
		},
		{
			name: "quota reached",
			prepare: func(t *testing.T, f *fixture) project.Project {
				f.proposal(t, f.student, f.project(t, "A"), StatusPending)
				f.proposal(t, f.student, f.project(t, "B"), StatusApproved)
				f.proposal(t, f.student, f.project(t, "C"), StatusPending)
				return f.project(t, "D")
			},
			wantErr: ErrQuotaExceeded,
		},
		{
			name: "quota wins over duplicate",
			prepare: func(t *testing.T, f *fixture) project.Project {
				target := f.project(t, "A")
				f.proposal(t, f.student, target, StatusPending)
				f.proposal(t, f.student, f.project(t, "B"), StatusPending)
				f.proposal(t, f.student, f.project(t, "C"), StatusPending)
				return target
			},
			wantErr: ErrQuotaExceeded,
		},
		{
			name: "duplicate",
			prepare: func(t *testing.T, f *fixture) project.Project {
				target := f.project(t, "A")
				f.proposal(t, f.student, target, StatusApproved)
				return target
			},
			wantErr: ErrDuplicateSubmission,
		},
		{
			name: "rejected proposals do not count toward quota",
			prepare: func(t *testing.T, f *fixture) project.Project {
				f.proposal(t, f.student, f.project(t, "A"), StatusPending)
				f.proposal(t, f.student, f.project(t, "B"), StatusPending)
				f.proposal(t, f.student, f.project(t, "C"), StatusRejected)
				return f.project(t, "D")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			target := tt.prepare(t, f)

			before, err := f.store.Proposals().QueryProposals(ctx, QueryFilter{StudentID: f.student.ID})
			require.NoError(t, err)

			_, err = f.svc.Submit(ctx, f.student, target.ID, NewProposal{Content: "x"})
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, err)

			after, err := f.store.Proposals().QueryProposals(ctx, QueryFilter{StudentID: f.student.ID})
			require.NoError(t, err)
			assert.Equal(t, before, after, "a refused submission must not write")
		})
	}
}

func TestService_SetStatus_transitions(t *testing.T) {
	ctx := context.Background()

	type tcase struct {
		from    Status
		to      string
		student bool // request as the proposal's student rather than the owning teacher
		wantErr error
	}
	tests := []tcase{
		{from: StatusPending, to: "approved"},
		{from: StatusPending, to: "rejected"},
		{from: StatusApproved, to: "rejected"},
		{from: StatusApproved, to: "selected", student: true},
		{from: StatusPending, to: "selected", student: true, wantErr: ErrInvalidTransition},
		{from: StatusPending, to: "selected", wantErr: ErrInvalidTransition},
		{from: StatusPending, to: "pending", wantErr: ErrInvalidTransition},
		{from: StatusApproved, to: "approved", wantErr: ErrInvalidTransition},
		{from: StatusApproved, to: "pending", wantErr: ErrInvalidTransition},
		{from: StatusRejected, to: "approved", wantErr: ErrInvalidTransition},
		{from: StatusRejected, to: "pending", wantErr: ErrInvalidTransition},
		{from: StatusRejected, to: "selected", student: true, wantErr: ErrInvalidTransition},
		{from: StatusSelected, to: "rejected", wantErr: ErrInvalidTransition},
		{from: StatusSelected, to: "approved", wantErr: ErrInvalidTransition},
		{from: StatusPending, to: "archived", wantErr: ErrInvalidTransition},
		// legal transitions, wrong actor
		{from: StatusPending, to: "approved", student: true, wantErr: ErrUnauthorized},
		{from: StatusApproved, to: "rejected", student: true, wantErr: ErrUnauthorized},
		{from: StatusApproved, to: "selected", wantErr: ErrUnauthorized},
	}
	for _, tt := range tests {
		name := string(tt.from) + " -> " + tt.to
		if tt.student {
			name += " (student)"
		}
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			prj := f.project(t, "P")
			p := f.proposal(t, f.student, prj, tt.from)

			caller := f.teacher
			if tt.student {
				caller = f.student
			}
			got, err := f.svc.SetStatus(ctx, caller, p.ID, tt.to)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Equal(t, tt.from, f.get(t, p.ID).Status, "status must not change")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Status(tt.to), got.Status)
			assert.Equal(t, got, f.get(t, p.ID))
		})
	}

	t.Run("status is case and space insensitive", func(t *testing.T) {
		f := setup(t)
		p := f.proposal(t, f.student, f.project(t, "P"), StatusPending)
		got, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "  Approved ")
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, got.Status)
	})

	t.Run("only the owning teacher decides", func(t *testing.T) {
		f := setup(t)
		p := f.proposal(t, f.student, f.project(t, "P"), StatusPending)
		_, err := f.svc.SetStatus(ctx, f.teacher2, p.ID, "approved")
		assert.Equal(t, ErrUnauthorized, err)
	})

	t.Run("another student cannot select", func(t *testing.T) {
		f := setup(t)
		p := f.proposal(t, f.student, f.project(t, "P"), StatusApproved)
		_, err := f.svc.SetStatus(ctx, f.student2, p.ID, "selected")
		assert.Equal(t, ErrUnauthorized, err)
	})

	t.Run("unknown proposal", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.SetStatus(ctx, f.teacher, uuid.NewString(), "approved")
		assert.Equal(t, ErrNotFound, err)
		_, err = f.svc.SetStatus(ctx, f.teacher, "lol", "approved")
		assert.Equal(t, ErrNotFound, err)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		f := setup(t)
		p := f.proposal(t, f.student, f.project(t, "P"), StatusPending)
		_, err := f.svc.SetStatus(ctx, user.User{}, p.ID, "approved")
		assert.Equal(t, ErrUnauthorized, err)
	})
}

func TestService_Approve_guards(t *testing.T) {
	ctx := context.Background()

	t.Run("project reserved by another student", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "P")
		f.proposal(t, f.student2, prj, StatusSelected)
		p := f.proposal(t, f.student, prj, StatusPending)

		_, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "approved")
		assert.Equal(t, ErrProjectReserved, err)
	})

	t.Run("student already finalized elsewhere", func(t *testing.T) {
		f := setup(t)
		f.proposal(t, f.student, f.project(t, "A"), StatusSelected)
		p := f.proposal(t, f.student, f.project(t, "B"), StatusPending)

		_, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "approved")
		assert.Equal(t, ErrStudentAlreadyFinalized, err)
	})

	t.Run("project check comes first", func(t *testing.T) {
		f := setup(t)
		f.proposal(t, f.student, f.project(t, "A"), StatusSelected)
		prj := f.project(t, "B")
		f.proposal(t, f.student2, prj, StatusSelected)
		p := f.proposal(t, f.student, prj, StatusPending)

		_, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "approved")
		assert.Equal(t, ErrProjectReserved, err)
	})

	t.Run("rejecting ignores reservations", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "P")
		f.proposal(t, f.student2, prj, StatusSelected)
		p := f.proposal(t, f.student, prj, StatusPending)

		_, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "rejected")
		assert.NoError(t, err)
	})
}

func TestService_Select(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects the student's other approved proposals", func(t *testing.T) {
		f := setup(t)
		prjA, prjB, prjC := f.project(t, "A"), f.project(t, "B"), f.project(t, "C")
		a := f.proposal(t, f.student, prjA, StatusApproved)
		b := f.proposal(t, f.student, prjB, StatusApproved)
		c := f.proposal(t, f.student, prjC, StatusPending)
		other := f.proposal(t, f.student2, prjB, StatusApproved)

		got, err := f.svc.SetStatus(ctx, f.student, a.ID, "selected")
		require.NoError(t, err)
		assert.Equal(t, StatusSelected, got.Status)

		assert.Equal(t, StatusRejected, f.get(t, b.ID).Status)
		assert.Equal(t, StatusPending, f.get(t, c.ID).Status, "pending proposals are left alone")
		assert.Equal(t, StatusApproved, f.get(t, other.ID).Status, "other students are left alone")

		assert.True(t, f.rejected(t, f.student, prjB))
		assert.False(t, f.rejected(t, f.student, prjA))
		assert.False(t, f.rejected(t, f.student, prjC))

		reserved, err := f.svc.IsReserved(ctx, prjA.ID)
		require.NoError(t, err)
		assert.True(t, reserved)
		finalized, err := f.svc.HasFinalizedProject(ctx, f.student.ID)
		require.NoError(t, err)
		assert.True(t, finalized)

		// the student is now locked out of new submissions
		_, err = f.svc.Submit(ctx, f.student, f.project(t, "D").ID, NewProposal{})
		assert.Equal(t, ErrAlreadyFinalized, err)
	})

	t.Run("project reserved by another student", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "P")
		f.proposal(t, f.student2, prj, StatusSelected)
		p := f.proposal(t, f.student, prj, StatusApproved)

		_, err := f.svc.SetStatus(ctx, f.student, p.ID, "selected")
		assert.Equal(t, ErrProjectReserved, err)
	})

	t.Run("student check comes first", func(t *testing.T) {
		f := setup(t)
		f.proposal(t, f.student, f.project(t, "A"), StatusSelected)
		prj := f.project(t, "B")
		f.proposal(t, f.student2, prj, StatusSelected)
		p := f.proposal(t, f.student, prj, StatusApproved)

		_, err := f.svc.SetStatus(ctx, f.student, p.ID, "selected")
		assert.Equal(t, ErrStudentAlreadyFinalized, err)
	})

	t.Run("a failed cascade leaves nothing behind", func(t *testing.T) {
		f := setup(t)
		prjA, prjB := f.project(t, "A"), f.project(t, "B")
		a := f.proposal(t, f.student, prjA, StatusApproved)
		b := f.proposal(t, f.student, prjB, StatusApproved)

		f.db.FailNext("RememberRejection", errBoom)
		_, err := f.svc.SetStatus(ctx, f.student, a.ID, "selected")
		require.Error(t, err)
		assert.True(t, core.IsStorageUnavailable(err))

		assert.Equal(t, StatusApproved, f.get(t, a.ID).Status)
		assert.Equal(t, StatusApproved, f.get(t, b.ID).Status)
		assert.False(t, f.rejected(t, f.student, prjB))
		reserved, err := f.svc.IsReserved(ctx, prjA.ID)
		require.NoError(t, err)
		assert.False(t, reserved)
	})
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("remembers the rejection once", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "P")
		p := f.proposal(t, f.student, prj, StatusApproved)

		_, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "rejected")
		require.NoError(t, err)
		assert.True(t, f.rejected(t, f.student, prj))
		assert.False(t, f.rejected(t, f.student2, prj))

		rejs, err := f.svc.Rejections(ctx, f.student)
		require.NoError(t, err)
		require.Len(t, rejs, 1)
		assert.Equal(t, p.ID, rejs[0].ProposalID)
		assert.Equal(t, prj.ID, rejs[0].ProjectID)
	})

	t.Run("storage failure rolls back the status change", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "P")
		p := f.proposal(t, f.student, prj, StatusPending)

		f.db.FailNext("RememberRejection", errBoom)
		_, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "rejected")
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrStorageUnavailable))
		assert.Equal(t, StatusPending, f.get(t, p.ID).Status)
		assert.False(t, f.rejected(t, f.student, prj))
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	f := setup(t)
	prj := f.project(t, "P")
	pending := f.proposal(t, f.student, prj, StatusPending)
	selected := f.proposal(t, f.student2, f.project(t, "S"), StatusSelected)

	assert.Equal(t, ErrUnauthorized, f.svc.Delete(ctx, f.student2, pending.ID))
	assert.Equal(t, ErrUnauthorized, f.svc.Delete(ctx, f.teacher, pending.ID))
	assert.Equal(t, ErrInvalidTransition, f.svc.Delete(ctx, f.student2, selected.ID))
	assert.Equal(t, ErrNotFound, f.svc.Delete(ctx, f.student, uuid.NewString()))

	require.NoError(t, f.svc.Delete(ctx, f.student, pending.ID))
	_, err := f.store.Proposals().GetProposal(ctx, pending.ID)
	assert.Equal(t, ErrNotFound, err)

	// the quota slot is freed and the student may apply again
	_, err = f.svc.Submit(ctx, f.student, prj.ID, NewProposal{})
	assert.NoError(t, err)
}

func TestService_DeleteProject(t *testing.T) {
	ctx := context.Background()

	f := setup(t)
	prj := f.project(t, "P")
	p1 := f.proposal(t, f.student, prj, StatusApproved)
	p2 := f.proposal(t, f.student2, prj, StatusPending)

	assert.Equal(t, ErrUnauthorized, f.svc.DeleteProject(ctx, f.teacher2, prj.ID))
	assert.Equal(t, ErrUnauthorized, f.svc.DeleteProject(ctx, f.student, prj.ID))
	assert.Equal(t, project.ErrNotFound, f.svc.DeleteProject(ctx, f.teacher, "lol"))

	require.NoError(t, f.svc.DeleteProject(ctx, f.teacher, prj.ID))

	_, err := f.store.Projects().GetProject(ctx, prj.ID)
	assert.Equal(t, project.ErrNotFound, err)
	for _, id := range []string{p1.ID, p2.ID} {
		_, err = f.store.Proposals().GetProposal(ctx, id)
		assert.Equal(t, ErrNotFound, err)
	}
	assert.False(t, f.rejected(t, f.student, prj), "deleting a project is not a rejection")

	n, err := f.svc.ActiveCount(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_queries(t *testing.T) {
	ctx := context.Background()

	f := setup(t)
	prjA, prjB := f.project(t, "A"), f.project(t, "B")
	a := f.proposal(t, f.student, prjA, StatusSelected)
	b := f.proposal(t, f.student, prjB, StatusRejected)
	c := f.proposal(t, f.student2, prjB, StatusPending)

	t.Run("Summary", func(t *testing.T) {
		sum, err := f.svc.Summary(ctx, f.student)
		require.NoError(t, err)
		assert.Equal(t, Summary{ActiveCount: 1, MaxActive: MaxActiveProposals, Finalized: true, SelectedProjectID: prjA.ID}, sum)

		sum, err = f.svc.Summary(ctx, f.student2)
		require.NoError(t, err)
		assert.Equal(t, Summary{ActiveCount: 1, MaxActive: MaxActiveProposals}, sum)

		_, err = f.svc.Summary(ctx, f.teacher)
		assert.Equal(t, ErrUnauthorized, err)
	})

	t.Run("QueryMine", func(t *testing.T) {
		props, err := f.svc.QueryMine(ctx, f.student)
		require.NoError(t, err)
		assert.Equal(t, []Proposal{a, b}, props)
	})

	t.Run("QueryByProject", func(t *testing.T) {
		props, err := f.svc.QueryByProject(ctx, f.teacher, prjB.ID)
		require.NoError(t, err)
		assert.Equal(t, []Proposal{b, c}, props)

		props, err = f.svc.QueryByProject(ctx, f.teacher, prjB.ID, StatusPending)
		require.NoError(t, err)
		assert.Equal(t, []Proposal{c}, props)

		_, err = f.svc.QueryByProject(ctx, f.teacher2, prjB.ID)
		assert.Equal(t, ErrUnauthorized, err)
		_, err = f.svc.QueryByProject(ctx, f.teacher, uuid.NewString())
		assert.Equal(t, project.ErrNotFound, err)
	})

	t.Run("ReservedProjects", func(t *testing.T) {
		reserved, err := f.svc.ReservedProjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{prjA.ID: true}, reserved)
	})
}

func TestService_notifications(t *testing.T) {
	ctx := context.Background()

	t.Run("mails the student in arabic", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "نظام حجز القاعات")
		p := f.proposal(t, f.student, prj, StatusPending)

		_, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "approved")
		require.NoError(t, err)

		msgs := emailsvc.GetSentMessages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "ahmed@uni.test", msgs[0].To[0].Address)
		assert.Contains(t, msgs[0].TextContent, "تمت الموافقة على مقترحك")
		assert.Contains(t, msgs[0].TextContent, "نظام حجز القاعات")
		assert.Contains(t, msgs[0].HTMLContent, "أحمد")
		assert.Equal(t, "تحديث حالة المقترح", msgs[0].Subject)
		assert.Equal(t, "proposal_status", msgs[0].Category)
		assert.Equal(t, map[string]string{
			"proposal_id": p.ID,
			"project_id":  prj.ID,
			"status":      "approved",
			"auto":        "false",
		}, msgs[0].Meta)
	})

	t.Run("one mail per auto-rejected proposal", func(t *testing.T) {
		f := setup(t)
		a := f.proposal(t, f.student, f.project(t, "A"), StatusApproved)
		f.proposal(t, f.student, f.project(t, "B"), StatusApproved)

		_, err := f.svc.SetStatus(ctx, f.student, a.ID, "selected")
		require.NoError(t, err)

		msgs := emailsvc.GetSentMessages()
		require.Len(t, msgs, 2)
		assert.Contains(t, msgs[1].TextContent, "تم رفض مقترحك تلقائيًا بعد اختيارك مشروعًا نهائيًا آخر.")
		assert.Equal(t, "true", msgs[1].Meta["auto"])
	})

	t.Run("students without email get nothing", func(t *testing.T) {
		f := setup(t)
		p := f.proposal(t, f.student3, f.project(t, "A"), StatusPending)

		_, err := f.svc.SetStatus(ctx, f.teacher, p.ID, "rejected")
		require.NoError(t, err)
		assert.Empty(t, emailsvc.GetSentMessages())
	})
}

func TestService_concurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("one submission wins the last quota slot", func(t *testing.T) {
		f := setup(t)
		f.proposal(t, f.student, f.project(t, "A"), StatusPending)
		f.proposal(t, f.student, f.project(t, "B"), StatusPending)

		targets := make([]project.Project, 5)
		for i := range targets {
			targets[i] = f.project(t, "T")
		}

		var wg sync.WaitGroup
		errs := make([]error, len(targets))
		for i, prj := range targets {
			wg.Add(1)
			go func(i int, prj project.Project) {
				defer wg.Done()
				_, errs[i] = f.svc.Submit(ctx, f.student, prj.ID, NewProposal{})
			}(i, prj)
		}
		wg.Wait()

		var ok, quota int
		for _, err := range errs {
			switch err {
			case nil:
				ok++
			case ErrQuotaExceeded:
				quota++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, len(targets)-1, quota)

		n, err := f.svc.ActiveCount(ctx, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, MaxActiveProposals, n)
	})

	t.Run("one student wins a project", func(t *testing.T) {
		f := setup(t)
		prj := f.project(t, "P")
		p1 := f.proposal(t, f.student, prj, StatusApproved)
		p2 := f.proposal(t, f.student2, prj, StatusApproved)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, c := range []struct {
			caller user.User
			id     string
		}{{f.student, p1.ID}, {f.student2, p2.ID}} {
			wg.Add(1)
			go func(i int, caller user.User, id string) {
				defer wg.Done()
				_, errs[i] = f.svc.SetStatus(ctx, caller, id, "selected")
			}(i, c.caller, c.id)
		}
		wg.Wait()

		assert.ElementsMatch(t, []error{nil, ErrProjectReserved}, errs)
		sel, err := f.store.Proposals().QueryProposals(ctx, QueryFilter{ProjectID: prj.ID, Statuses: []Status{StatusSelected}})
		require.NoError(t, err)
		assert.Len(t, sel, 1)
	})
}
