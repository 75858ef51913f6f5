package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
)

type (
	userApi struct {
		svc         *user.Service
		proposalSvc *proposal.Service
		validate    *validator.Validate
	}

	// SuccessResponse carries a localized confirmation message.
	SuccessResponse struct {
		Success string `json:"success"`
	}

	// MeResponse is the caller's profile. Students also get their standing.
	MeResponse struct {
		user.User
		Summary *proposal.Summary `json:"summary,omitempty"`
	}
)

func registerUserAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		svc:         deps.UserSvc,
		proposalSvc: deps.ProposalSvc,
		validate:    deps.Validate,
	}

	ug := g.Group("/users", auth...)
	ug.GET("/me", api.retrieveMe)
	ug.PUT("/me", api.updateMe)
}

// Handlers

func (api *userApi) retrieveMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	resp := MeResponse{User: usr}
	if usr.IsStudent() {
		sum, err := api.proposalSvc.Summary(ctx.Request().Context(), usr)
		if err != nil {
			return errors.Wrap(err, "getting summary")
		}
		resp.Summary = &sum
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.IsStudent() {
		return user.ErrUpdateForbidden
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(api.svc.NewContext(ctx.Request().Context(), api.validate), usr); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}
