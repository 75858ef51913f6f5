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
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
	"github.com/trezcool/takharruj/services/metrics"
	"github.com/trezcool/takharruj/services/ratelimit"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        *user.Service
		ProjectSvc     *project.Service
		ProposalSvc    *proposal.Service
		Validate       *validator.Validate
		Translator     *ut.UniversalTranslator
		Limiter        ratelimit.Limiter  // defaults to an in-process limiter
		Metrics        *metrics.Collector // defaults to a fresh collector
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewMemoryLimiter()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}
	if deps.Logger == nil {
		deps.Logger = core.NopLogger{}
	}

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if err := s.setup(); err != nil {
		return nil, err
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	return s, nil
}

func (s *Server) setup() error {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware(s.deps.Metrics))

	for lang, msgs := range httpMessages {
		trans, found := s.deps.Translator.GetTranslator(lang)
		if !found {
			return errors.Errorf("no translator for locale %q", lang)
		}
		if err := core.AddTranslations(trans, msgs); err != nil {
			return errors.Wrapf(err, "adding %q http messages", lang)
		}
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.deps.Metrics, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	auth := []echo.MiddlewareFunc{jwt, profileMiddleware(conf, s.deps.UserSvc)}

	registerUserAPI(v1, auth, s.deps)
	registerProjectAPI(v1, auth, s.deps)
	registerProposalAPI(v1, auth, s.deps)
	return nil
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "مرحبًا بكم في واجهة تخرّج | Welcome to Takharruj API!")
}
