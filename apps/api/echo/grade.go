package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/grade"
)

type gradeApi struct {
	svc *grade.Service
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *grade.Service) {
	api := gradeApi{svc: svc}

	gg := g.Group("/grades", jwt)
	gg.GET("", api.grades)
	gg.POST("", api.create)
	gg.PUT("/:id", api.update)
	gg.DELETE("/:id", api.delete)
}

func (api *gradeApi) grades(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(grade.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	grades, err := api.svc.Filter(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) create(ctx echo.Context) error {
	var data grade.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	g, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *gradeApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data grade.UpdateGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Update(ctx.Request().Context(), ident, id, data); err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradeApi) delete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ident, id); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}
