package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/services/metrics"
)

type (
	proposalApi struct {
		svc        *proposal.Service
		validate   *validator.Validate
		translator *ut.UniversalTranslator
		metrics    *metrics.Collector
	}

	ProposalResponse struct {
		proposal.Proposal
		Success string `json:"success,omitempty"`
	}
)

func registerProposalAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := proposalApi{
		svc:        deps.ProposalSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
		metrics:    deps.Metrics,
	}

	pg := g.Group("/proposals", auth...)
	pg.GET("", api.queryMine)
	pg.GET("/summary", api.summary)
	pg.GET("/rejections", api.rejections)
	pg.PATCH("/:id", api.setStatus)
	pg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *proposalApi) queryMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	props, err := api.svc.QueryMine(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying proposals")
	}
	if props == nil {
		props = []proposal.Proposal{}
	}
	return ctx.JSON(http.StatusOK, props)
}

func (api *proposalApi) summary(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *proposalApi) rejections(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rejs, err := api.svc.Rejections(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying rejections")
	}
	if rejs == nil {
		rejs = []proposal.Rejection{}
	}
	return ctx.JSON(http.StatusOK, rejs)
}

func (api *proposalApi) setStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data proposal.StatusUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prop, err := api.svc.SetStatus(ctx.Request().Context(), usr, ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting proposal status")
	}
	api.metrics.ObserveTransition(string(prop.Status))

	trans := requestTranslator(ctx, api.translator)
	return ctx.JSON(http.StatusOK, ProposalResponse{
		Proposal: prop,
		Success:  core.Translate(trans, proposal.StatusMessageKey(prop.Status)),
	})
}

func (api *proposalApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting proposal")
	}
	trans := requestTranslator(ctx, api.translator)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: core.Translate(trans, proposal.MsgDeleted)})
}
