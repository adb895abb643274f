package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/assistance", jwt)
	ag.GET("", api.assistances)
	ag.POST("", api.createAssistance)
	ag.PUT("/:id", api.updateAssistance)
	ag.DELETE("/:id", api.deleteAssistance)

	sg := g.Group("/sanctions", jwt)
	sg.GET("", api.sanctions)
	sg.POST("", api.createSanction)
	sg.PUT("/:id", api.updateSanction)
	sg.DELETE("/:id", api.deleteSanction)
}

func (api *attendanceApi) assistances(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(attendance.AssistanceFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	records, err := api.svc.FilterAssistances(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying assistance records")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) createAssistance(ctx echo.Context) error {
	var data attendance.NewAssistance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssistance")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.CreateAssistance(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating assistance record")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *attendanceApi) updateAssistance(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data attendance.UpdateAssistance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssistance")
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.UpdateAssistance(ctx.Request().Context(), ident, id, data); err != nil {
		return errors.Wrap(err, "updating assistance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) deleteAssistance(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAssistance(ctx.Request().Context(), ident, id); err != nil {
		return errors.Wrap(err, "deleting assistance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) sanctions(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(attendance.SanctionFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	sanctions, err := api.svc.FilterSanctions(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying sanctions")
	}
	return ctx.JSON(http.StatusOK, sanctions)
}

func (api *attendanceApi) createSanction(ctx echo.Context) error {
	var data attendance.NewSanction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSanction")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.CreateSanction(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating sanction")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *attendanceApi) updateSanction(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data attendance.UpdateSanction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSanction")
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.UpdateSanction(ctx.Request().Context(), ident, id, data); err != nil {
		return errors.Wrap(err, "updating sanction")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) deleteSanction(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSanction(ctx.Request().Context(), ident, id); err != nil {
		return errors.Wrap(err, "deleting sanction")
	}
	return ctx.NoContent(http.StatusNoContent)
}
