package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		AccountSvc account.ServiceInterface
		Validate   *validator.Validate
		Translator ut.Translator
		Redis      *redis.Client // optional; enables login rate limiting
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errChan  chan error
		shutChan chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errChan:  make(chan error, 1),
		shutChan: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutChan, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	auth := newJWTAuth(conf)
	api := s.app.Group("/api")
	registerAccountAPI(
		api, auth.middleware(), auth,
		s.deps.AccountSvc, s.deps.Validate, s.deps.Translator,
		s.deps.Redis, conf, s.deps.Logger,
	)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.ServerAddress()); err != nil && err != http.ErrServerClosed {
		s.errChan <- err
	}
}

func (s *server) Errors() <-chan error { return s.errChan }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutChan }

// signalShutdown requests a graceful stop; used when an integrity-threatening
// error bubbles up through the error handler.
func (s *server) signalShutdown() {
	s.shutChan <- syscall.SIGTERM
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Escolar API!")
}
