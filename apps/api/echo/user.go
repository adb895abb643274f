package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
	"github.com/escolarhq/escolar/storage/uploads"
)

type userApi struct {
	svc   *user.Service
	files *uploads.Store
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service, files *uploads.Store) {
	api := userApi{svc: svc, files: files}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/logout", api.logout)
	ag.POST("/register", api.register, adminMiddleware())
	ag.GET("/verify", api.verify)
	ag.GET("/role", api.activeRole)
	ag.GET("/roles", api.roles)
	ag.GET("/me/personal-data", api.personalData)
	ag.GET("/personal-data", api.publicPersonalData)
	ag.PUT("/:id/personal-data", api.updatePersonalData, adminMiddleware())
	ag.DELETE("/:id/personal-data", api.deletePersonalData, adminMiddleware())
	ag.GET("/me/profile-picture", api.profilePicture)
	ag.POST("/:id/profile-picture", api.setProfilePicture)
	ag.DELETE("/:id/profile-picture", api.deleteProfilePicture)

	g.GET("/students", api.students, jwt)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := api.svc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound || core.IsPermissionDenied(err) {
			return core.NewValidationError(errors.New("invalid credentials"))
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetIdentityClaims(ident))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	setAuthCookie(ctx, token)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) logout(ctx echo.Context) error {
	clearAuthCookie(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.Register(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

// verify lets the frontend confirm its cookie is still good.
func (api *userApi) verify(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ident)
}

func (api *userApi) activeRole(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"role": ident.Role})
}

func (api *userApi) roles(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	roles, err := api.svc.Roles(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *userApi) students(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	students, err := api.svc.FilterStudents(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *userApi) personalData(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	pd, err := api.svc.PersonalData(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying personal data")
	}
	return ctx.JSON(http.StatusOK, pd)
}

func (api *userApi) publicPersonalData(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}
	data, err := api.svc.FilterPublicPersonalData(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying public personal data")
	}
	return ctx.JSON(http.StatusOK, data)
}

func (api *userApi) updatePersonalData(ctx echo.Context) error {
	userID, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data user.UpdatePersonalData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePersonalData")
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.UpdatePersonalData(ctx.Request().Context(), ident, userID, data); err != nil {
		return errors.Wrap(err, "updating personal data")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) deletePersonalData(ctx echo.Context) error {
	userID, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeletePersonalData(ctx.Request().Context(), ident, userID); err != nil {
		return errors.Wrap(err, "deleting personal data")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) profilePicture(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	url, err := api.svc.ProfilePicture(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying profile picture")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"photo": url})
}

func (api *userApi) setProfilePicture(ctx echo.Context) error {
	userID, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("photo")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "photo", Error: "a photo file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer f.Close()

	url, err := api.files.SaveImage(uploads.NSProfilePictures, fh.Filename, f)
	if err != nil {
		return err
	}
	if err = api.svc.SetProfilePicture(ctx.Request().Context(), ident, userID, url); err != nil {
		return errors.Wrap(err, "setting profile picture")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"photo": url})
}

func (api *userApi) deleteProfilePicture(ctx echo.Context) error {
	userID, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteProfilePicture(ctx.Request().Context(), ident, userID); err != nil {
		return errors.Wrap(err, "deleting profile picture")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type LoginResponse struct {
	Token string `json:"token"`
}

// pathID parses the :id path param.
func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
