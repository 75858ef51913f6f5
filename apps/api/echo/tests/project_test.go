package tests

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/takharruj/apps/api/echo"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
)

func Test_projectApi_query(t *testing.T) {
	e := setup(t)

	path := func(search, teacherID, ordering string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if teacherID != "" {
			v.Add("teacher_id", teacherID)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		return "/v1/projects?" + v.Encode()
	}

	now := time.Now().UTC()
	sami := e.createUser(t, "t1", "د. سامي", "sami@uni.test", user.RoleTeacher)
	layla := e.createUser(t, "t2", "د. ليلى", "layla@uni.test", user.RoleTeacher)
	student := e.createUser(t, "s1", "أحمد", "ahmed@uni.test", user.RoleStudent)
	other := e.createUser(t, "s2", "منى", "mona@uni.test", user.RoleStudent)

	booking := e.createProject(t, sami, "Room Booking", now.Add(1*time.Hour))
	library := e.createProject(t, layla, "نظام المكتبة", now.Add(2*time.Hour))
	chat := e.createProject(t, sami, "Chat Bot", now.Add(3*time.Hour))
	e.createProposal(t, other, library, proposal.StatusSelected)

	resp := func(prj project.Project) ProjectResponse {
		return ProjectResponse{Project: prj, Reserved: prj.ID == library.ID}
	}
	token := e.getToken(t, student)

	e.run(t, []httpTest{
		{name: "newest first", path: "/v1/projects", token: token, wantData: marchallList(t, resp(chat), resp(library), resp(booking))},
		{name: "search (unknown)", path: path("lol", "", ""), token: token, wantData: marchallList(t)},
		{name: "search is case insensitive", path: path("BOOK", "", ""), token: token, wantData: marchallList(t, resp(booking))},
		{name: "search arabic", path: path("المكتبة", "", ""), token: token, wantData: marchallList(t, resp(library))},
		{name: "search teacher name", path: path("ليلى", "", ""), token: token, wantData: marchallList(t, resp(library))},
		{name: "by teacher", path: path("", sami.ID, ""), token: token, wantData: marchallList(t, resp(chat), resp(booking))},
		{name: "order by title", path: path("", "", "title"), token: token, wantData: marchallList(t, resp(chat), resp(booking), resp(library))},
		{name: "order by created_at", path: path("", "", "created_at"), token: token, wantData: marchallList(t, resp(booking), resp(library), resp(chat))},
		{
			name: "unknown ordering fields are ignored", path: path("", "", "lol,-created_at"), token: token,
			wantData: marchallList(t, resp(chat), resp(library), resp(booking)),
		},
	})
}

func Test_projectApi_create(t *testing.T) {
	e := setup(t)
	teacher := e.createUser(t, "t1", "د. سامي", "sami@uni.test", user.RoleTeacher)
	student := e.createUser(t, "s1", "أحمد", "ahmed@uni.test", user.RoleStudent)

	e.run(t, []httpTest{
		{
			name: "students cannot create", method: http.MethodPost, path: "/v1/projects", token: e.getToken(t, student),
			body: marchallObj(t, project.NewProject{Title: "X"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "ليس لديك صلاحية الوصول"}),
		},
		{
			name: "title required", method: http.MethodPost, path: "/v1/projects", token: e.getToken(t, teacher),
			body: marchallObj(t, project.NewProject{Title: "  "}),
			wantCode: http.StatusBadRequest,
		},
	})

	rec := e.serve(httpTest{
		method: http.MethodPost, path: "/v1/projects", token: e.getToken(t, teacher),
		body: marchallObj(t, project.NewProject{Title: " نظام حجز القاعات ", Description: "وصف"}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got ProjectResponse
	decode(t, rec, &got)
	assert.Equal(t, "نظام حجز القاعات", got.Title)
	assert.Equal(t, "وصف", got.Description)
	assert.Equal(t, teacher.ID, got.TeacherID)
	assert.Equal(t, "د. سامي", got.TeacherName)
	assert.False(t, got.Reserved)

	stored, err := e.store.Projects().GetProject(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Title, stored.Title)
}

func Test_projectApi_retrieve(t *testing.T) {
	e := setup(t)
	teacher := e.createUser(t, "t1", "د. سامي", "sami@uni.test", user.RoleTeacher)
	student := e.createUser(t, "s1", "أحمد", "ahmed@uni.test", user.RoleStudent)
	prj := e.createProject(t, teacher, "A")
	reserved := e.createProject(t, teacher, "B")
	e.createProposal(t, student, reserved, proposal.StatusSelected)
	token := e.getToken(t, student)

	e.run(t, []httpTest{
		{name: "found", path: "/v1/projects/" + prj.ID, token: token, wantData: marchallObj(t, ProjectResponse{Project: prj})},
		{
			name: "reserved", path: "/v1/projects/" + reserved.ID, token: token,
			wantData: marchallObj(t, ProjectResponse{Project: reserved, Reserved: true}),
		},
		{
			name: "not found", path: "/v1/projects/" + uuid.NewString(), token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "المشروع غير موجود"}),
		},
		{
			name: "not found (en)", path: "/v1/projects/lol", token: token, lang: "en",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "project not found"}),
		},
	})
}

func Test_projectApi_destroy(t *testing.T) {
	e := setup(t)
	owner := e.createUser(t, "t1", "د. سامي", "sami@uni.test", user.RoleTeacher)
	other := e.createUser(t, "t2", "د. ليلى", "layla@uni.test", user.RoleTeacher)
	student := e.createUser(t, "s1", "أحمد", "ahmed@uni.test", user.RoleStudent)
	prj := e.createProject(t, owner, "A")
	prop := e.createProposal(t, student, prj, proposal.StatusApproved)

	e.run(t, []httpTest{
		{
			name: "not the owner", method: http.MethodDelete, path: "/v1/projects/" + prj.ID, token: e.getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, violationErr{Error: "غير مصرح لك بتنفيذ هذا الإجراء", Code: "unauthorized"}),
		},
		{
			name: "owner", method: http.MethodDelete, path: "/v1/projects/" + prj.ID, token: e.getToken(t, owner),
			wantData: marchallObj(t, SuccessResponse{Success: "تم حذف المشروع بنجاح"}),
		},
		{
			name: "already gone", method: http.MethodDelete, path: "/v1/projects/" + prj.ID, token: e.getToken(t, owner),
			wantCode: http.StatusNotFound,
		},
	})

	_, err := e.store.Proposals().GetProposal(context.Background(), prop.ID)
	assert.Equal(t, proposal.ErrNotFound, err)
	rejected, err := e.store.Proposals().HasRejection(context.Background(), student.ID, prj.ID)
	require.NoError(t, err)
	assert.False(t, rejected)
}

func Test_projectApi_queryProposals(t *testing.T) {
	e := setup(t)
	owner := e.createUser(t, "t1", "د. سامي", "sami@uni.test", user.RoleTeacher)
	other := e.createUser(t, "t2", "د. ليلى", "layla@uni.test", user.RoleTeacher)
	s1 := e.createUser(t, "s1", "أحمد", "ahmed@uni.test", user.RoleStudent)
	s2 := e.createUser(t, "s2", "منى", "mona@uni.test", user.RoleStudent)
	prj := e.createProject(t, owner, "A")
	p1 := e.createProposal(t, s1, prj, proposal.StatusPending)
	p2 := e.createProposal(t, s2, prj, proposal.StatusRejected)
	path := "/v1/projects/" + prj.ID + "/proposals"

	e.run(t, []httpTest{
		{name: "owner", path: path, token: e.getToken(t, owner), wantData: marchallList(t, p1, p2)},
		{name: "by status", path: path + "?status=rejected", token: e.getToken(t, owner), wantData: marchallList(t, p2)},
		{name: "other teacher", path: path, token: e.getToken(t, other), wantCode: http.StatusForbidden},
		{name: "student", path: path, token: e.getToken(t, s1), wantCode: http.StatusForbidden},
	})
}

func Test_projectApi_storageUnavailable(t *testing.T) {
	e := setup(t)
	student := e.createUser(t, "s1", "أحمد", "ahmed@uni.test", user.RoleStudent)
	e.db.FailNext("QueryProjects", errors.New("connection refused"))

	rec := e.serve(httpTest{path: "/v1/projects", token: e.getToken(t, student), lang: "en"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var got httpErr
	decode(t, rec, &got)
	assert.Equal(t, "service temporarily unavailable, try again", got.Error)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
