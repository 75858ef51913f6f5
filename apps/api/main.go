package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/takharruj/apps/api/echo"
	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
	emailsvc "github.com/trezcool/takharruj/services/email"
	logsvc "github.com/trezcool/takharruj/services/logger"
	"github.com/trezcool/takharruj/services/metrics"
	"github.com/trezcool/takharruj/services/ratelimit"
	"github.com/trezcool/takharruj/storage/database"
	sqlxrepos "github.com/trezcool/takharruj/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger("API", conf)
	dbLogger := logsvc.NewRollbarLogger("DB", conf)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	store := sqlxrepos.NewStore(db)
	usrRepo := sqlxrepos.NewUserRepository(db)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if conf.Redis.Addr != "" {
		client, err := ratelimit.NewRedisClient(context.Background(), conf.Redis.Addr, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer client.Close()
		limiter = ratelimit.NewRedisLimiter(client, conf.AppName, logger)
	}

	usrSvc := user.NewService(usrRepo)
	prjSvc := project.NewService(store.Projects())
	propSvc := proposal.NewService(store, usrRepo, mailSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	if err = proposal.InitTranslations(translator); err != nil {
		logger.Fatal(fmt.Sprintf("loading translations: %v", err), err)
	}

	core.ParseEmailTemplates(conf, logger)

	collector := metrics.NewCollector()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", collector.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server, err := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			ProjectSvc:  prjSvc,
			ProposalSvc: propSvc,
			Validate:    validate,
			Translator:  translator,
			Limiter:     limiter,
			Metrics:     collector,
		},
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up server: %v", err), err)
	}

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
