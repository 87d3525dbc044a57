package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/homer1989/lehrerdb-v4/apps/api/echo/handlers"
	"github.com/homer1989/lehrerdb-v4/core"
	"github.com/homer1989/lehrerdb-v4/core/grading"
	"github.com/homer1989/lehrerdb-v4/core/student"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		GradingSvc *grading.Service
		StudentSvc *student.Service
	}

	Server struct {
		deps         ServerDeps
		app          *echo.Echo
		errChan      chan error
		shutdownChan chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:         deps,
		app:          echo.New(),
		errChan:      make(chan error, 1),
		shutdownChan: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.Logger())
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	handlers.RegisterGradingAPI(v1, s.deps.GradingSvc)
	handlers.RegisterStudentAPI(v1, s.deps.StudentSvc)
}

func home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"service": "lehrerdb", "status": "ok"})
}

func (s *Server) Start() {
	signal.Notify(s.shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Address()); err != nil && err != http.ErrServerClosed {
		s.errChan <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errChan
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownChan
}

func (s *Server) signalShutdown() {
	s.shutdownChan <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}
