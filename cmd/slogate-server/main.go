package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/slogate/slogate/internal/alert"
	"github.com/slogate/slogate/internal/api"
	"github.com/slogate/slogate/internal/config"
	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/ingest"
	"github.com/slogate/slogate/internal/log"
	loglogrus "github.com/slogate/slogate/internal/log/logrus"
	"github.com/slogate/slogate/internal/notify"
	"github.com/slogate/slogate/internal/policy"
	"github.com/slogate/slogate/internal/scheduler"
	"github.com/slogate/slogate/internal/slo"
	"github.com/slogate/slogate/internal/storage/sqlite"
	"github.com/slogate/slogate/internal/window"
)

func main() {
	if err := runServer(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(args []string) error {
	cfg := parseFlags(args)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Debug)
	logger.Infof("starting slogate server: addr=%s:%d config=%s", cfg.Host, cfg.Port, cfg.ConfigFile)

	// Load and validate the SLO configuration. Any validation error is
	// fatal; misconfiguration is never silently corrected.
	validator, err := slo.NewValidator(cfg.SchemaFile)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	sloCfg, validationErrs := validator.ValidateFile(cfg.ConfigFile)
	if len(validationErrs) > 0 {
		for _, e := range validationErrs {
			logger.Errorf("config: %s", e.Error())
		}
		return fmt.Errorf("SLO configuration invalid: %d errors", len(validationErrs))
	}

	// The aggregator is sized from every window the config references.
	windows, err := eval.RequiredWindows(sloCfg)
	if err != nil {
		return fmt.Errorf("failed to collect windows: %w", err)
	}
	agg := window.New(windows, cfg.BucketsPerWindow)
	intake := ingest.NewIntake(agg, sloCfg, logger)
	evaluator := eval.NewEvaluator(agg)
	policyEngine := policy.NewEngine(sloCfg.Policy, logger)

	// Audit storage is optional.
	var audit *sqlite.Store
	if cfg.DBPath != "" {
		audit, err = sqlite.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open audit storage: %w", err)
		}
		defer audit.Close()
		logger.Infof("audit storage enabled: %s", cfg.DBPath)
	}

	// Alert transitions go to the audit trail and to the dispatcher.
	var notifiers notify.Fanout
	if audit != nil {
		notifiers = append(notifiers, notify.AuditRecorder{Store: audit})
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(notify.DefaultConfig(cfg.WebhookURL)))
		logger.Infof("notification dispatcher: %s", cfg.WebhookURL)
	} else {
		notifiers = append(notifiers, notify.LogNotifier{Logger: logger})
	}

	alertEngine := alert.NewEngine(notifiers, logger)

	sched := scheduler.NewScheduler(evaluator, alertEngine, policyEngine, sloCfg, logger)
	sched.SetDefaultTick(cfg.DefaultTick)
	if audit != nil {
		sched.SetAuditStorage(audit)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(sched, intake, agg, policyEngine, validator, cfg.ConfigFile, addr, logger)

	var g run.Group

	// OS signals.
	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	// HTTP server.
	g.Add(
		func() error {
			return apiServer.Start()
		},
		func(_ error) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()
			if err := apiServer.Shutdown(ctx); err != nil {
				logger.Errorf("error shutting down server: %v", err)
			}
		},
	)

	// Evaluation scheduler.
	schedDone := make(chan struct{})
	g.Add(
		func() error {
			if err := sched.Start(); err != nil {
				return err
			}
			<-schedDone
			return nil
		},
		func(_ error) {
			sched.Stop()
			close(schedDone)
		},
	)

	err = g.Run()
	if err != nil {
		if _, ok := err.(run.SignalError); ok {
			logger.Infof("received signal, shutdown complete")
			return nil
		}
		return err
	}
	return nil
}

func parseFlags(args []string) config.Config {
	cfg := config.Default()

	app := kingpin.New("slogate-server", "SLO and error-budget evaluation engine.")
	app.Flag("host", "HTTP server host.").Default(cfg.Host).StringVar(&cfg.Host)
	app.Flag("port", "HTTP server port.").Default(fmt.Sprintf("%d", cfg.Port)).IntVar(&cfg.Port)
	app.Flag("config", "SLO configuration YAML file.").Required().StringVar(&cfg.ConfigFile)
	app.Flag("schema", "JSON schema for the configuration file.").Default(cfg.SchemaFile).StringVar(&cfg.SchemaFile)
	app.Flag("db", "SQLite audit database path (empty disables persistence).").StringVar(&cfg.DBPath)
	app.Flag("webhook-url", "Notification dispatcher URL (empty logs transitions).").StringVar(&cfg.WebhookURL)
	app.Flag("tick", "Default evaluation interval.").Default(cfg.DefaultTick.String()).DurationVar(&cfg.DefaultTick)
	app.Flag("buckets-per-window", "Ring buffer slots per window.").Default(fmt.Sprintf("%d", cfg.BucketsPerWindow)).IntVar(&cfg.BucketsPerWindow)
	app.Flag("shutdown-timeout", "Graceful shutdown timeout.").Default(cfg.GracefulShutdownTimeout.String()).DurationVar(&cfg.GracefulShutdownTimeout)
	app.Flag("debug", "Enable debug logging.").BoolVar(&cfg.Debug)

	kingpin.MustParse(app.Parse(args[1:]))
	return cfg
}

func newLogger(debug bool) log.Logger {
	logrusLog := logrus.New()
	logrusLog.SetFormatter(&logrus.JSONFormatter{})
	if debug {
		logrusLog.SetLevel(logrus.DebugLevel)
	}
	return loglogrus.NewLogrus(logrus.NewEntry(logrusLog))
}
