package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	echoapi "github.com/escolarhq/escolar/apps/api/echo"
	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/assessment"
	"github.com/escolarhq/escolar/core/attendance"
	"github.com/escolarhq/escolar/core/course"
	"github.com/escolarhq/escolar/core/grade"
	"github.com/escolarhq/escolar/core/message"
	"github.com/escolarhq/escolar/core/subject"
	"github.com/escolarhq/escolar/core/user"
	emailsvc "github.com/escolarhq/escolar/services/email"
	sendgridmail "github.com/escolarhq/escolar/services/email/sendgrid"
	logsvc "github.com/escolarhq/escolar/services/logger"
	"github.com/escolarhq/escolar/storage/database"
	sqlxrepos "github.com/escolarhq/escolar/storage/database/sqlx"
	"github.com/escolarhq/escolar/storage/uploads"
)

func main() {
	std := log.New(os.Stdout, "api ", log.LstdFlags|log.Lshortfile)
	errAndDie(core.Conf.CheckSetup())
	logger := logsvc.NewRollbarLogger(std, core.Conf)

	// set up DB
	errAndDie(database.CreateIfNotExist(core.Conf))
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Migrate(db.DB))

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = sendgridmail.NewService(core.Conf.SendgridAPIKey, core.Conf.AppName, core.Conf.DefaultFromEmail, logger)
	}
	files := uploads.NewStore(core.Conf)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	courseSvc := course.NewService(sqlxrepos.NewCourseRepository(db))
	subjectSvc := subject.NewService(sqlxrepos.NewSubjectRepository(db), mailSvc, files, logger)
	assessmentSvc := assessment.NewService(sqlxrepos.NewAssessmentRepository(db), mailSvc, files, logger)
	gradeSvc := grade.NewService(sqlxrepos.NewGradeRepository(db), mailSvc, logger)
	messageSvc := message.NewService(sqlxrepos.NewMessageRepository(db), mailSvc, logger)
	attendanceSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), logger)

	// closed selfassessables are promoted to permanent grades on a fixed cadence
	sched := cron.New()
	_, err = sched.AddFunc("*/15 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := assessmentSvc.PromotePendingGrades(ctx); err != nil {
			logger.Error("promoting pending grades", err)
		}
	})
	errAndDie(err)
	sched.Start()
	defer sched.Stop()

	app := echoapi.NewServer(
		&echoapi.Options{
			Address:       core.Conf.Server.Address,
			Logger:        logger,
			Uploads:       files,
			UserSvc:       usrSvc,
			CourseSvc:     courseSvc,
			SubjectSvc:    subjectSvc,
			AssessmentSvc: assessmentSvc,
			GradeSvc:      gradeSvc,
			MessageSvc:    messageSvc,
			AttendanceSvc: attendanceSvc,
		},
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			std.Printf("shutting down: %v", err)
		}
	}()

	app.Start()
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
