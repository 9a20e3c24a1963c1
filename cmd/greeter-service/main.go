package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/foomo/soapgreeter/internal/config"
	"github.com/foomo/soapgreeter/internal/greeter"
	"github.com/foomo/soapgreeter/internal/logging"
	"github.com/foomo/soapgreeter/internal/server"
	"github.com/foomo/soapgreeter/internal/telemetry"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Command output goes to w.
func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "greeter-service",
		Writer:  w,
		Usage:   "SOAP greeter service",
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "info",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Host the greeter endpoint",
				Action: serve,
			},
			{
				Name:      "say-hello",
				Usage:     "Call SayHello on a running endpoint",
				ArgsUsage: "[name]",
				Flags:     []cli.Flag{urlFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					client := greeter.NewClient(c.String("url"), cliLogger(c))
					greeting, err := client.SayHello(ctx, c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintln(c.Root().Writer, greeting)
					return nil
				},
			},
			{
				Name:  "server-info",
				Usage: "Call GetServerInfo on a running endpoint",
				Flags: []cli.Flag{urlFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					client := greeter.NewClient(c.String("url"), cliLogger(c))
					info, err := client.GetServerInfo(ctx)
					if err != nil {
						return err
					}
					out := c.Root().Writer
					fmt.Fprintf(out, "MachineName: %s\n", info.MachineName)
					fmt.Fprintf(out, "OsVersion:   %s\n", info.OsVersion)
					fmt.Fprintf(out, "UtcNow:      %s\n", info.UtcNow.Format(time.RFC3339Nano))
					return nil
				},
			},
		},
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.LogLevel = c.String("log-level")

	logger, err := logging.New(logging.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tracing, err := telemetry.InitTracing(ctx, cfg.Tracing(version))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("could not flush traces", zap.Error(err))
		}
	}()
	if tracing.Fallback() {
		logger.Warn("trace exporter unavailable, spans stay in process",
			zap.String("endpoint", cfg.OTLPEndpoint),
			zap.String("protocol", cfg.OTLPProtocol),
		)
	}

	srv, err := server.New(cfg, logger, server.BuildInfo{Version: version, Commit: commit, Date: date}, reg, reg)
	if err != nil {
		return err
	}

	logger.Info("greeter service starting",
		zap.String("version", build()),
		zap.String("environment", cfg.Environment),
		zap.String("soap_path", cfg.SOAPPath),
		zap.String("soap_version", cfg.SOAPVersion),
		zap.Bool("fault_detail", cfg.IsDevelopment()),
		zap.Bool("trace_export", tracing.Exporting()),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("greeter service stopped")
	return nil
}

func urlFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "url",
		Usage:   "greeter endpoint address",
		Sources: cli.EnvVars("GREETER_URL"),
		Value:   "http://localhost:8080" + greeter.DefaultPath,
	}
}

func cliLogger(c *cli.Command) *zap.Logger {
	logger, err := logging.New(logging.Config{
		ServiceName: "greeter-cli",
		LogLevel:    c.String("log-level"),
		OutputPath:  "stderr",
	})
	if err != nil {
		return zap.NewNop()
	}
	return logger.Logger
}
