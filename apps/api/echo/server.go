package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

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

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Logger        core.Logger
		Uploads       *uploads.Store
		UserSvc       *user.Service
		CourseSvc     *course.Service
		SubjectSvc    *subject.Service
		AssessmentSvc *assessment.Service
		GradeSvc      *grade.Service
		MessageSvc    *message.Service
		AttendanceSvc *attendance.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan struct{}, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)
	s.app.Static("/uploads", core.Conf.Uploads.Dir)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.opts.UserSvc, s.opts.Uploads)
	registerCourseAPI(v1, jwt, s.opts.CourseSvc)
	registerSubjectAPI(v1, jwt, s.opts.SubjectSvc, s.opts.Uploads)
	registerAssessmentAPI(v1, jwt, s.opts.AssessmentSvc, s.opts.Uploads)
	registerGradeAPI(v1, jwt, s.opts.GradeSvc)
	registerMessageAPI(v1, jwt, s.opts.MessageSvc)
	registerAttendanceAPI(v1, jwt, s.opts.AttendanceSvc)
}

// signalShutdown requests a graceful stop after an unrecoverable error.
func (s *server) signalShutdown() {
	select {
	case s.shutdown <- struct{}{}:
	default:
	}
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
