package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/subject"
	"github.com/escolarhq/escolar/storage/uploads"
)

type subjectApi struct {
	svc   *subject.Service
	files *uploads.Store
}

func registerSubjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *subject.Service, files *uploads.Store) {
	api := subjectApi{svc: svc, files: files}

	sg := g.Group("/subjects", jwt)
	sg.GET("", api.subjects)
	sg.GET("/messages", api.messages)
	sg.POST("/messages", api.createMessage)
	sg.PUT("/messages/:id", api.updateMessage)
	sg.DELETE("/messages/:id", api.deleteMessage)
}

func (api *subjectApi) subjects(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(subject.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	subjects, err := api.svc.Filter(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *subjectApi) messages(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(subject.MessageFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	msgs, err := api.svc.FilterMessages(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying subject messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *subjectApi) createMessage(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	data, err := api.bindNewMessage(ctx)
	if err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}

	msg, err := api.svc.CreateMessage(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating subject message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// bindNewMessage accepts either a JSON body or a multipart form. A file
// message arrives as multipart; the stored URL becomes the content.
func (api *subjectApi) bindNewMessage(ctx echo.Context) (subject.NewMessage, error) {
	var data subject.NewMessage

	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		if err := ctx.Bind(&data); err != nil {
			return data, errors.Wrap(err, "binding to NewMessage")
		}
		return data, nil
	}

	subjectID, err := strconv.Atoi(ctx.FormValue("subject_id"))
	if err != nil {
		return data, core.NewValidationError(nil, core.FieldError{Field: "subject_id", Error: "a valid subject id is required"})
	}
	data.SubjectID = subjectID
	data.Title = ctx.FormValue("title")
	data.Kind = subject.MessageKind(ctx.FormValue("kind"))
	data.Content = ctx.FormValue("content")

	if data.Kind == subject.MessageKindFile {
		fh, err := ctx.FormFile("file")
		if err != nil {
			return data, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
		}
		f, err := fh.Open()
		if err != nil {
			return data, errors.Wrap(err, "opening upload")
		}
		defer f.Close()

		url, err := api.files.SaveDocument(uploads.NSSubjectFiles, fh.Filename, f)
		if err != nil {
			return data, err
		}
		data.Content = url
	}
	return data, nil
}

func (api *subjectApi) updateMessage(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data subject.UpdateMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMessage")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.UpdateMessage(ctx.Request().Context(), ident, id, data); err != nil {
		return errors.Wrap(err, "updating subject message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *subjectApi) deleteMessage(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteMessage(ctx.Request().Context(), ident, id); err != nil {
		return errors.Wrap(err, "deleting subject message")
	}
	return ctx.NoContent(http.StatusNoContent)
}
