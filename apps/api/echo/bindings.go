package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/takharruj/core"
)

const orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the "ordering" query param, keeping only the allowed fields.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	ord.Orderings = core.ParseOrdering(val, allowed...)
}
