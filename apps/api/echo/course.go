package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/course"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service) {
	api := courseApi{svc: svc}

	g.GET("/courses", api.courses, jwt)
	g.GET("/timetables", api.timetables, jwt)
}

func (api *courseApi) courses(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.Filter(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) timetables(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(course.TimetableFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	timetables, err := api.svc.FilterTimetables(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying timetables")
	}
	return ctx.JSON(http.StatusOK, timetables)
}
