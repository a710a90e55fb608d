package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/syncrun"
)

const (
	orderingParam = "ordering"
	limitParam    = "limit"
	statusParam   = "status"
	syncTypeParam = "sync_type"
)

// bindOrdering reads the "ordering" query param, keeping the `allowed` fields only.
func bindOrdering(ctx echo.Context, allowed ...string) []core.DBOrdering {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}
	return core.ParseOrdering(val, allowed...)
}

// bindRunFilter reads the sync runs query params. Invalid values are ignored.
func bindRunFilter(ctx echo.Context) syncrun.QueryFilter {
	filter := syncrun.QueryFilter{
		Status:   syncrun.Status(ctx.QueryParam(statusParam)),
		SyncType: ctx.QueryParam(syncTypeParam),
		Ordering: bindOrdering(ctx, syncrun.OrderingFields...),
	}
	if limit, err := strconv.Atoi(ctx.QueryParam(limitParam)); err == nil {
		filter.Limit = limit
	}
	filter.Clean()
	return filter
}
