package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core/rostersync"
	"github.com/trezcool/ushauri/core/syncrun"
)

type syncApi struct {
	svc      rostersync.Service
	runs     syncrun.Repository
	validate *validator.Validate
}

func registerSyncAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc rostersync.Service,
	runs syncrun.Repository,
	validate *validator.Validate,
) {
	api := syncApi{
		svc:      svc,
		runs:     runs,
		validate: validate,
	}

	sg := g.Group("/sync", jwt, passwordChangedMiddleware, adminMiddleware)
	sg.POST("", api.trigger)
	sg.GET("/runs", api.queryRuns)
	sg.GET("/runs/:id", api.retrieveRun)
}

// Handlers

// trigger runs a sync synchronously & returns its summary. A failed run is still a 200: see Response.Success.
func (api *syncApi) trigger(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data rostersync.Request
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to sync Request")
	}

	// the run outlives the request: a disconnected client does not cancel it
	runCtx := context.WithoutCancel(ctx.Request().Context())
	resp, err := rostersync.Trigger(runCtx, api.svc, api.validate, data, claims.Email)
	if err != nil {
		return errors.Wrap(err, "triggering sync")
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *syncApi) queryRuns(ctx echo.Context) error {
	runs, err := api.runs.QueryRuns(ctx.Request().Context(), bindRunFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying sync runs")
	}
	if runs == nil {
		runs = []syncrun.SyncRun{}
	}
	return ctx.JSON(http.StatusOK, runs)
}

func (api *syncApi) retrieveRun(ctx echo.Context) error {
	run, err := api.runs.GetRun(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == syncrun.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding sync run")
	}
	return ctx.JSON(http.StatusOK, run)
}
