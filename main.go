package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"go.uber.org/fx"
	"wx_herald/dal"
	"wx_herald/logic"
	"wx_herald/server"
	"wx_herald/shared"
	"wx_herald/texts"
)

type initErrorHandler struct {
}

func (*initErrorHandler) HandleError(err error) {
	fmt.Fprintf(os.Stderr, "Failed to initialize dependency injection\n%v", err)
}

var logger *log.Logger

func main() {

	cfg := shared.LoadConfig()
	provideConfig := func() *shared.Config {
		return cfg
	}

	logger = initLogger(cfg)
	provideLogger := func() shared.ILogger {
		return logger
	}

	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			provideConfig,
			provideLogger,
			server.NewHTTPServer,
			fx.Annotate(server.NewMux, fx.ParamTags(`group:"handler_group"`)),
			shared.NewUserAgent,
			logic.NewMetrics,
			logic.NewSigner,
			logic.NewKeyStore,
			logic.NewHttpSigChecker,
			logic.NewUserRetriever,
			logic.NewActivitySender,
			logic.NewUserDirectory,
			logic.NewInbox,
			logic.NewPostBuilder,
			logic.NewDelivery,
			logic.NewNullWeatherSource,
			logic.NewPublisher,
			logic.NewScheduler,
			texts.NewTexts,
			dal.NewSqliteStore,
			dal.NewRepo,
			asHandlerGroupDef(server.NewApubHandlerGroup),
			asHandlerGroupDef(server.NewApiHandlerGroup),
			asHandlerGroupDef(server.NewMetricsHandlerGroup),
		),
		fx.Invoke(
			registerHooks,
			func(*http.Server) {},
		),
		fx.ErrorHook(&initErrorHandler{}),
	)
	app.Run()
}

func asHandlerGroupDef(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(server.IHandlerGroup)),
		fx.ResultTags(`group:"handler_group"`),
	)
}

func initLogger(cfg *shared.Config) *log.Logger {

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		msg := fmt.Sprintf("Failed to open log file '%v': %v", cfg.LogFile, err)
		log.Fatal(msg)
	}

	logger := log.New(io.MultiWriter(os.Stdout, logFile))
	logger.SetReportTimestamp(true)
	logger.SetTimeFormat("2006-01-02 15:04:05.000")
	switch cfg.LogLevel {
	case "Debug":
		logger.SetLevel(log.DebugLevel)
	case "Info":
		logger.SetLevel(log.InfoLevel)
	case "Warn":
		logger.SetLevel(log.WarnLevel)
	case "Error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	logger.SetReportCaller(true)

	return logger
}

func registerHooks(lc fx.Lifecycle, metrics logic.IMetrics,
	udir logic.IUserDirectory, scheduler logic.IScheduler) {
	lc.Append(
		fx.Hook{
			OnStart: func(context.Context) error {
				logger.Printf("Application starting up")
				if err := udir.EnsureLocations(); err != nil {
					return err
				}
				scheduler.Start()
				metrics.ServiceStarted()
				return nil
			},
			OnStop: func(context.Context) error {
				logger.Printf("Application shutting down")
				scheduler.Stop()
				return nil
			},
		},
	)
}
