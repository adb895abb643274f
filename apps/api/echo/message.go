package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/message"
)

type messageApi struct {
	svc *message.Service
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *message.Service) {
	api := messageApi{svc: svc}

	mg := g.Group("/messages", jwt)
	mg.GET("", api.messages)
	mg.POST("", api.create)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.delete)
}

func (api *messageApi) messages(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(message.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	msgs, err := api.svc.Filter(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) create(ctx echo.Context) error {
	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	msg, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data message.UpdateMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMessage")
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Update(ctx.Request().Context(), ident, id, data); err != nil {
		return errors.Wrap(err, "updating message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *messageApi) delete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ident, id); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}
