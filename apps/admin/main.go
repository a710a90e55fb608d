package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/rostersync"
	"github.com/trezcool/ushauri/core/user"
	emailsvc "github.com/trezcool/ushauri/services/email"
	logsvc "github.com/trezcool/ushauri/services/logger"
	"github.com/trezcool/ushauri/services/rosterapi"
	"github.com/trezcool/ushauri/services/secrets"
	"github.com/trezcool/ushauri/storage/database"
	sqlxrepos "github.com/trezcool/ushauri/storage/database/sqlx"
)

const dbOpenTimeout = 30 * time.Second

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	if err := conf.Validate(); err != nil {
		logger.Fatal(err.Error(), err)
	}

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), dbOpenTimeout)
	db, err := database.Open(ctx, conf)
	cancel()
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrRepo := sqlxrepos.NewUserRepository(db)
	syncSvc := rostersync.NewService(rostersync.Deps{
		Secrets:    secrets.NewStore(conf.Roster.SecretsDir),
		Connect:    rosterapi.NewClient(conf.Roster, logger).WithAPIKey,
		Roster:     sqlxrepos.NewRosterRepository(db),
		Users:      usrRepo,
		Runs:       sqlxrepos.NewRunRepository(db),
		Mailer:     mailSvc,
		Logger:     logger,
		Clock:      core.RealClock{},
		Policy:     rostersync.RetryPolicy{MaxAttempts: conf.Roster.MaxAttempts, BackoffUnit: conf.Roster.BackoffUnit},
		PageSize:   conf.Roster.PageSize,
		SecretName: conf.Roster.APIKeySecret,
	})

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db,
		usrSvc:     user.NewService(usrRepo, core.RealClock{}),
		syncSvc:    syncSvc,
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	if err != nil && err != errHelp {
		logger.Error(cli.formatError(err))
	}

	// welcome emails of provisioned users
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	logger.Flush()
	_ = db.Close()

	if err != nil {
		os.Exit(1)
	}
}
