package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/mergebot/internal/authtoken"
	"github.com/simplesurance/mergebot/internal/azdoclt"
	"github.com/simplesurance/mergebot/internal/cfg"
	"github.com/simplesurance/mergebot/internal/githubclt"
	"github.com/simplesurance/mergebot/internal/logfields"
	"github.com/simplesurance/mergebot/internal/policy"
	"github.com/simplesurance/mergebot/internal/policystore"
	"github.com/simplesurance/mergebot/internal/prmonitor"
	ghprovider "github.com/simplesurance/mergebot/internal/provider/github"
	"github.com/simplesurance/mergebot/internal/webhook"
)

const appName = "mergebot"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

const serverShutdownTimeout = 30 * time.Second

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Error(
			"panic caught, terminating gracefully",
			logfields.Event("panic_caught"),
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPSServer(listenAddr string, certFile, keyFile string, handler http.Handler) {
	httpsServer := http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		ctx, cancelFn := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating https server",
			logfields.Event("https_server_terminating"),
			zap.Duration("shutdown_timeout", serverShutdownTimeout),
		)

		err := httpsServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down https server failed",
				logfields.Event("https_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"https server started",
			logfields.Event("https_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpsServer.ListenAndServeTLS(certFile, keyFile)
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("https server terminated", logfields.Event("https_server_terminated"))
			return
		}

		logger.Fatal(
			"https server terminated unexpectedly",
			logfields.Event("https_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func startHTTPServer(listenAddr string, handler http.Handler) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		ctx, cancelFn := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", serverShutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/mergebot/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the mergebot configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nReceive push events from git hosting services and create and complete pull requests according to merge policies.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration files", err)
	defer file.Close()

	config, err := cfg.Load(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustInitMonitor(config *cfg.Config) *prmonitor.Monitor {
	mon := prmonitor.New(
		prmonitor.WithInitialDelay(config.Monitor.InitialDelay),
		prmonitor.WithInterval(config.Monitor.Interval),
		prmonitor.WithItemTimeout(config.Monitor.ItemTimeout),
		prmonitor.WithMaxItemsPerTick(config.Monitor.MaxItemsPerTick),
	)

	mon.Start()

	goodbye.Register(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping pull request monitor",
			logfields.Event("pull_request_monitor_stopping"),
			zap.Int("monitored_pull_requests", mon.Len()),
		)

		mon.Stop()
	})

	return mon
}

func webhookOpts(config *cfg.Config, staticStore *policystore.Static) []webhook.Option {
	var opts []webhook.Option

	azStoreFn := func(*azdoclt.Client) policy.Store { return staticStore }
	if config.AzureDevOps.UseExtensionData() {
		azStoreFn = func(clt *azdoclt.Client) policy.Store {
			return azdoclt.NewPolicyStore(
				clt,
				config.AzureDevOps.OrganizationBaseURL,
				config.AzureDevOps.PublisherID,
				config.AzureDevOps.ExtensionID,
			)
		}
	}

	opts = append(opts, webhook.WithAzureDevOps(
		config.AzureDevOps.WebhookEndpoint,
		azdoclt.NewFactory(),
		azStoreFn,
	))

	if config.Github.Enabled() {
		opts = append(opts, webhook.WithGithub(
			config.Github.WebhookEndpoint,
			ghprovider.New(ghprovider.WithPayloadSecret(config.Github.WebhookSecret)),
			githubclt.New(config.Github.APIToken),
			staticStore,
		))
	}

	if config.Webhook.FilterQuery != "" {
		filter, err := webhook.NewFilter(config.Webhook.FilterQuery)
		exitOnErr("could not parse webhook.filter_query of configuration file", err)

		opts = append(opts, webhook.WithFilter(filter))
	}

	if config.DryRun {
		opts = append(opts, webhook.WithDryRun())
	}

	return opts
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.Bool("dry_run", config.DryRun),
		zap.String("azure_devops_webhook_endpoint", config.AzureDevOps.WebhookEndpoint),
		zap.Bool("azure_devops_extension_data", config.AzureDevOps.UseExtensionData()),
		zap.String("jwt_signing_key", hide(config.JWT.SigningKey)),
		zap.String("jwt_issuer", config.JWT.Issuer),
		zap.Duration("jwt_validity", config.JWT.Validity),
		zap.String("github_webhook_endpoint", config.Github.WebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.Github.WebhookSecret)),
		zap.String("github_api_token", hide(config.Github.APIToken)),
		zap.Bool("github_enabled", config.Github.Enabled()),
		zap.Duration("monitor_initial_delay", config.Monitor.InitialDelay),
		zap.Duration("monitor_interval", config.Monitor.Interval),
		zap.Duration("monitor_item_timeout", config.Monitor.ItemTimeout),
		zap.Int("monitor_max_items_per_tick", config.Monitor.MaxItemsPerTick),
		zap.String("webhook_filter_query", config.Webhook.FilterQuery),
		zap.Int("static_policies", len(config.Policies)),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(
			fmt.Sprintf("terminating, received signal %s", sig.String()),
			logfields.Event("terminating"),
		)
	})

	mon := mustInitMonitor(config)
	factory := policy.NewFactory(mon)

	svc := webhook.New(
		factory,
		mon,
		authtoken.New(config.JWT.SigningKey, config.JWT.Issuer, config.JWT.Validity),
		webhookOpts(config, policystore.NewStatic(config.Policies))...,
	)
	router := svc.Router()

	logger.Info(
		"registered webhook event http endpoints",
		logfields.Event("http_handlers_registered"),
		zap.String("azure_devops_endpoint", config.AzureDevOps.WebhookEndpoint),
		zap.Bool("github_enabled", config.Github.Enabled()),
	)

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, router)
	}

	if config.HTTPSListenAddr != "" {
		startHTTPSServer(
			config.HTTPSListenAddr,
			config.HTTPSCertFile,
			config.HTTPSKeyFile,
			router,
		)
	}

	select {}
}
