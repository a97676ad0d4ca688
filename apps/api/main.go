package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/voicelab/auris/apps/api/echo"
	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/answer"
	"github.com/voicelab/auris/core/program"
	"github.com/voicelab/auris/core/progress"
	emailsvc "github.com/voicelab/auris/services/email"
	logsvc "github.com/voicelab/auris/services/logger"
	sweepersvc "github.com/voicelab/auris/services/sweeper"
	"github.com/voicelab/auris/storage/cache"
	"github.com/voicelab/auris/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

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

	// set up repositories
	progressRepo := database.NewProgressRepository(db)
	programRepo := database.NewProgramRepository(db)
	queueRepo := database.NewEmailQueueRepository(db)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	var programCache program.Cache
	if conf.Redis.Addr != "" {
		redisCache := cache.NewProgramCache(conf, logger)
		if err = redisCache.Ping(context.Background()); err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		programCache = redisCache
	}

	clock := core.NewClock()
	programSvc := program.NewService(programRepo, programCache, logger)
	progressSvc := progress.NewService(
		database.Wrap(db),
		progressRepo,
		programSvc,
		answer.NewService(),
		mailSvc,
		emailsvc.NewQueueScheduler(queueRepo, clock),
		clock,
		logger,
		conf.Cooldown,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	progress.RegisterValidators()

	core.ParseEmailTemplates(logger)

	// =========================================================================
	// Start Background Services

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	dispatcher := emailsvc.NewDispatcher(queueRepo, mailSvc, clock, logger, conf.EmailDispatchInterval)
	go dispatcher.Run(bgCtx)

	sweeper := sweepersvc.NewSweeper(progressRepo, progressSvc, clock, logger, conf.SweepInterval)
	go sweeper.Run(bgCtx)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			ProgressSvc: progressSvc,
		},
	)

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
		bgCancel()

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

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
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

func newTranslator() ut.Translator {
	lang := en.New()
	uni := ut.New(lang, lang)
	translator, _ := uni.GetTranslator(lang.Locale())
	return translator
}
