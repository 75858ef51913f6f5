package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
	"github.com/trezcool/takharruj/services/metrics"
)

const submitScope = "submit"

var errPrjNotFoundInCtx = errors.New("project object not found in echo.Context")

type (
	projectApi struct {
		svc         *project.Service
		proposalSvc *proposal.Service
		validate    *validator.Validate
		translator  *ut.UniversalTranslator
		metrics     *metrics.Collector
	}

	// ProjectResponse is a project plus whether a student already selected it.
	ProjectResponse struct {
		project.Project
		Reserved bool `json:"reserved"`
	}
)

func registerProjectAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := projectApi{
		svc:         deps.ProjectSvc,
		proposalSvc: deps.ProposalSvc,
		validate:    deps.Validate,
		translator:  deps.Translator,
		metrics:     deps.Metrics,
	}
	limit := rateLimitMiddleware(
		deps.Limiter, deps.Metrics, submitScope, deps.Conf.RateLimit.Submissions, deps.Conf.RateLimit.Window,
	)

	pg := g.Group("/projects", auth...)
	pg.GET("", api.query)
	pg.POST("", api.create, roleMiddleware(user.RoleTeacher))

	// detail endpoints
	dg := pg.Group("/:id", projectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.GET("/proposals", api.queryProposals)
	dg.POST("/proposals", api.submitProposal, limit)
}

// projectMiddleware loads the project named by the ":id" path param.
func projectMiddleware(svc *project.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			prj, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "getting project")
			}
			ctx.Set("object", prj)
			return next(ctx)
		}
	}
}

// Handlers

func (api *projectApi) query(ctx echo.Context) error {
	filter := new(project.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []ProjectResponse{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, project.OrderingFields...)

	rctx := ctx.Request().Context()
	projects, err := api.svc.Query(rctx, filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	reserved, err := api.proposalSvc.ReservedProjects(rctx)
	if err != nil {
		return errors.Wrap(err, "querying reserved projects")
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, prj := range projects {
		resp = append(resp, ProjectResponse{Project: prj, Reserved: reserved[prj.ID]})
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *projectApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.NewProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prj, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, ProjectResponse{Project: prj})
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	prj, ok := ctx.Get("object").(project.Project)
	if !ok {
		return errors.Wrap(errPrjNotFoundInCtx, "retrieving object from context")
	}
	reserved, err := api.proposalSvc.IsReserved(ctx.Request().Context(), prj.ID)
	if err != nil {
		return errors.Wrap(err, "checking reservation")
	}
	return ctx.JSON(http.StatusOK, ProjectResponse{Project: prj, Reserved: reserved})
}

func (api *projectApi) destroy(ctx echo.Context) error {
	prj, ok := ctx.Get("object").(project.Project)
	if !ok {
		return errors.Wrap(errPrjNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.proposalSvc.DeleteProject(ctx.Request().Context(), usr, prj.ID); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	trans := requestTranslator(ctx, api.translator)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: core.Translate(trans, proposal.MsgProjectDeleted)})
}

func (api *projectApi) queryProposals(ctx echo.Context) error {
	prj, ok := ctx.Get("object").(project.Project)
	if !ok {
		return errors.Wrap(errPrjNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var statuses []proposal.Status
	for _, s := range ctx.QueryParams()["status"] {
		if st, ok := proposal.ParseStatus(s); ok {
			statuses = append(statuses, st)
		}
	}

	props, err := api.proposalSvc.QueryByProject(ctx.Request().Context(), usr, prj.ID, statuses...)
	if err != nil {
		return errors.Wrap(err, "querying project proposals")
	}
	if props == nil {
		props = []proposal.Proposal{}
	}
	return ctx.JSON(http.StatusOK, props)
}

func (api *projectApi) submitProposal(ctx echo.Context) error {
	prj, ok := ctx.Get("object").(project.Project)
	if !ok {
		return errors.Wrap(errPrjNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data proposal.NewProposal
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProposal")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prop, err := api.proposalSvc.Submit(ctx.Request().Context(), usr, prj.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting proposal")
	}
	api.metrics.ObserveSubmission()

	trans := requestTranslator(ctx, api.translator)
	return ctx.JSON(http.StatusCreated, ProposalResponse{
		Proposal: prop,
		Success:  core.Translate(trans, proposal.MsgSubmitted),
	})
}
