package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/ushauri/apps/api/echo"
	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/rostersync"
	"github.com/trezcool/ushauri/core/user"
	emailsvc "github.com/trezcool/ushauri/services/email"
	logsvc "github.com/trezcool/ushauri/services/logger"
	"github.com/trezcool/ushauri/services/metrics"
	"github.com/trezcool/ushauri/services/rosterapi"
	"github.com/trezcool/ushauri/services/secrets"
	"github.com/trezcool/ushauri/storage/database"
	sqlxrepos "github.com/trezcool/ushauri/storage/database/sqlx"
)

const dbSetupTimeout = 30 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := newLogger("API : ", conf)
	syncLogger := newLogger("SYNC : ", conf)
	dbLogger := newLogger("DB : ", conf)
	defer logger.Flush()

	if err := conf.Validate(); err != nil {
		logger.Fatal(err.Error(), err)
	}

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up repos & services
	usrRepo := sqlxrepos.NewUserRepository(db)
	runRepo := sqlxrepos.NewRunRepository(db)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(usrRepo, core.RealClock{})

	syncMetrics := metrics.New()
	rosterClient := rosterapi.NewClient(conf.Roster, syncLogger)
	syncSvc := rostersync.NewService(rostersync.Deps{
		Secrets:    secrets.NewStore(conf.Roster.SecretsDir),
		Connect:    rosterClient.WithAPIKey,
		Roster:     sqlxrepos.NewRosterRepository(db),
		Users:      usrRepo,
		Runs:       runRepo,
		Mailer:     mailSvc,
		Logger:     syncLogger,
		Metrics:    syncMetrics,
		Clock:      core.RealClock{},
		Policy:     rostersync.RetryPolicy{MaxAttempts: conf.Roster.MaxAttempts, BackoffUnit: conf.Roster.BackoffUnit},
		PageSize:   conf.Roster.PageSize,
		SecretName: conf.Roster.APIKeySecret,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			SyncSvc:    syncSvc,
			Runs:       runRepo,
			Validate:   validate,
			Translator: translator,
			Metrics:    syncMetrics.Handler(),
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newLogger(prefix string, conf *core.Config) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
