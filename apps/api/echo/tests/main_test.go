package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/takharruj/apps/api/echo"
	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
	emailsvc "github.com/trezcool/takharruj/services/email"
	"github.com/trezcool/takharruj/services/metrics"
	inmemdb "github.com/trezcool/takharruj/storage/database/inmem"
	testutil "github.com/trezcool/takharruj/tests"
)

var errMissingToken = httpErr{Error: "يجب تسجيل الدخول أولًا"}

type env struct {
	app     *Server
	conf    *core.Config
	db      *inmemdb.DB
	store   *inmemdb.Store
	usrRepo user.Repository
	metrics *metrics.Collector
}

func setup(t *testing.T, configure ...func(conf *core.Config)) *env {
	conf := core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	core.ParseEmailTemplates(conf, core.NopLogger{})
	emailsvc.ResetSentMessages()

	// set up DB & repos
	db := inmemdb.NewDB()
	store := inmemdb.NewStore(db)
	usrRepo := inmemdb.NewUserRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	if err := proposal.InitTranslations(translator); err != nil {
		t.Fatalf("InitTranslations() failed: %v", err)
	}
	collector := metrics.NewCollector()

	// set up server
	app, err := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         core.NopLogger{},
		UserSvc:        user.NewService(usrRepo),
		ProjectSvc:     project.NewService(store.Projects()),
		ProposalSvc:    proposal.NewService(store, usrRepo, mailSvc, core.NopLogger{}),
		Validate:       validate,
		Translator:     translator,
		Metrics:        collector,
		DisableReqLogs: true,
	})
	require.NoError(t, err)
	return &env{app: app, conf: conf, db: db, store: store, usrRepo: usrRepo, metrics: collector}
}

func (e *env) createUser(t *testing.T, id, name, email, role string) user.User {
	return testutil.CreateUser(t, e.usrRepo, id, name, email, role)
}

func (e *env) createProject(t *testing.T, teacher user.User, title string, createdAt ...time.Time) project.Project {
	return testutil.CreateProject(t, e.store.Projects(), teacher, title, createdAt...)
}

func (e *env) createProposal(t *testing.T, student user.User, prj project.Project, st proposal.Status) proposal.Proposal {
	return testutil.CreateProposal(t, e.store.Proposals(), student, prj.ID, st)
}

func (e *env) getToken(t *testing.T, usr user.User) string {
	return e.getTokenWithClaims(t, NewClaims(e.conf, usr, time.Hour))
}

func (e *env) getTokenWithClaims(t *testing.T, claims *Claims) string {
	token, err := GenerateToken(e.conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (e *env) serve(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	if tt.lang != "" {
		req.Header.Set("Accept-Language", tt.lang)
	}
	e.app.ServeHTTP(rec, req)
	return rec
}

func (e *env) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type violationErr struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	lang     string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "status code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}
