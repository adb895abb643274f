package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/assessment"
	"github.com/escolarhq/escolar/storage/uploads"
)

type assessmentApi struct {
	svc   *assessment.Service
	files *uploads.Store
}

func registerAssessmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *assessment.Service, files *uploads.Store) {
	api := assessmentApi{svc: svc, files: files}

	ag := g.Group("/assessments", jwt)
	ag.GET("", api.assessments)
	ag.POST("", api.create)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.delete)

	// selfassessables ride under their parent assessment
	ag.GET("/selfassessables/due", api.dueQuizzes)
	ag.GET("/selfassessables/submissions", api.quizSubmissions)
	ag.GET("/selfassessables/pending-grades", api.pendingGrades)
	ag.POST("/selfassessables/submit", api.submitQuiz)
	ag.GET("/:id/selfassessables/answered", api.quizAnswered)

	ag.POST("/:id/homework", api.submitHomework)
	ag.GET("/:id/homework/answered", api.homeworkAnswered)

	g.DELETE("/homework-submissions/:id", api.deleteHomeworkSubmission, jwt)
}

func (api *assessmentApi) assessments(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(assessment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	assessments, err := api.svc.Filter(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	return ctx.JSON(http.StatusOK, assessments)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	var data assessment.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Create(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data assessment.UpdateAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssessment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Update(ctx.Request().Context(), ident, id, data); err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) delete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ident, id); err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) dueQuizzes(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(assessment.QuizFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	questions, err := api.svc.DueQuizzes(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying due quizzes")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *assessmentApi) quizSubmissions(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(assessment.QuizFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	subs, err := api.svc.QuizSubmissions(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying quiz submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assessmentApi) pendingGrades(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	filter := new(assessment.QuizFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.Wrap(err, "binding filter"))
	}

	grades, err := api.svc.PendingGrades(ctx.Request().Context(), ident, *filter)
	if err != nil {
		return errors.Wrap(err, "querying pending grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *assessmentApi) submitQuiz(ctx echo.Context) error {
	var data assessment.NewQuizSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuizSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	pg, err := api.svc.SubmitQuiz(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusCreated, pg)
}

func (api *assessmentApi) quizAnswered(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	answered, err := api.svc.QuizAnswered(ctx.Request().Context(), ident, id)
	if err != nil {
		return errors.Wrap(err, "checking quiz submission")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"answered": answered})
}

func (api *assessmentApi) submitHomework(ctx echo.Context) error {
	taskID, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer f.Close()

	url, err := api.files.SaveDocument(uploads.NSSubmissions, fh.Filename, f)
	if err != nil {
		return err
	}
	hs, err := api.svc.SubmitHomework(ctx.Request().Context(), ident, taskID, url)
	if err != nil {
		return errors.Wrap(err, "submitting homework")
	}
	return ctx.JSON(http.StatusCreated, hs)
}

func (api *assessmentApi) homeworkAnswered(ctx echo.Context) error {
	taskID, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	answered, err := api.svc.HomeworkAnswered(ctx.Request().Context(), ident, taskID)
	if err != nil {
		return errors.Wrap(err, "checking homework submission")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"answered": answered})
}

func (api *assessmentApi) deleteHomeworkSubmission(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteHomeworkSubmission(ctx.Request().Context(), ident, id); err != nil {
		return errors.Wrap(err, "deleting homework submission")
	}
	return ctx.NoContent(http.StatusNoContent)
}
