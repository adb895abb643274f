package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/assessment"
	"github.com/escolarhq/escolar/core/attendance"
	"github.com/escolarhq/escolar/core/course"
	"github.com/escolarhq/escolar/core/grade"
	"github.com/escolarhq/escolar/core/message"
	"github.com/escolarhq/escolar/core/subject"
	"github.com/escolarhq/escolar/core/user"
	"github.com/escolarhq/escolar/storage/uploads"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// notFoundErrs are the repository sentinels that map to a 404.
var notFoundErrs = []error{
	user.ErrNotFound,
	course.ErrNotFound,
	subject.ErrNotFound,
	assessment.ErrNotFound,
	grade.ErrNotFound,
	message.ErrNotFound,
	attendance.ErrAssistanceNotFound,
	attendance.ErrSanctionNotFound,
}

func isNotFoundErr(err error) bool {
	if core.IsNotFound(err) {
		return true
	}
	for _, sentinel := range notFoundErrs {
		if err == sentinel {
			return true
		}
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch {
			case core.IsPermissionDenied(err):
				code = http.StatusForbidden
				message = cause.Error()
			case core.IsConflict(err), cause == user.ErrEmailExists:
				code = http.StatusConflict
				message = cause.Error()
			case isNotFoundErr(cause):
				code = http.StatusNotFound
				message = cause.Error()
			case cause == uploads.ErrFileTooLarge, cause == uploads.ErrUnsupportedType:
				code = http.StatusBadRequest
				message = cause.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var ident user.Identity
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					ident = claims.Identity()
				}
				logger.Error(msg, errors.Wrap(err, msg), ident)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
