package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/GreedyKomodoDragon/handle-exporter/internal/exporter"
	"github.com/GreedyKomodoDragon/handle-exporter/internal/handleindex"
	"github.com/GreedyKomodoDragon/handle-exporter/internal/handles"
	"github.com/GreedyKomodoDragon/handle-exporter/internal/metrics"
	"github.com/GreedyKomodoDragon/handle-exporter/internal/objectstore"
)

// DefaultBucket holds the migration's handle reports
const DefaultBucket = "brage-migration-reports-750639270376"

var Version = "devel"

func main() {
	// A missing .env file is the normal case in CI and on servers
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "handle-exporter",
		Usage:     "Export handles from migration handle reports into a CSV file",
		UsageText: "handle-exporter [options] <time>",
		Version:   Version,
		Writer:    out,
		Flags:     exportFlags(),
		Action:    runExport,
		Commands: []*cli.Command{
			{
				Name:      "handles",
				Usage:     "Print the handle URI of every line in an exported file",
				ArgsUsage: "<file>",
				Action:    runHandles,
			},
			{
				Name:      "lookup",
				Usage:     "Look up the identifier recorded for a handle in the Redis index",
				ArgsUsage: "<handle>",
				Flags:     redisFlags(),
				Action:    runLookup,
			},
		},
		// Errors are logged by the actions; keep urfave from printing them twice
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func exportFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "bucket",
			Usage:   "Bucket holding the handle reports",
			Value:   DefaultBucket,
			EnvVars: []string{"S3_BUCKET"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output file, truncated on every run",
			Value:   exporter.DefaultOutputPath,
			EnvVars: []string{"HANDLES_OUTPUT"},
		},
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "Key prefix the time argument is appended to",
			Value:   exporter.DefaultReportPrefix,
			EnvVars: []string{"HANDLES_REPORT_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "Object store client: s3 or minio",
			Value:   objectstore.BackendS3,
			EnvVars: []string{"STORE_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Bucket region; the AWS profile's region is used when empty",
			EnvVars: []string{"AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "Custom endpoint for S3-compatible storage",
			EnvVars: []string{"AWS_ENDPOINT_URL"},
		},
		&cli.StringFlag{
			Name:    "access-key-id",
			Usage:   "Static access key; the default credential chain is used when empty",
			EnvVars: []string{"AWS_ACCESS_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "secret-access-key",
			Usage:   "Static secret key",
			EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
		},
		&cli.IntFlag{
			Name:    "page-size",
			Usage:   "Keys per listing request, 0 for the store default",
			EnvVars: []string{"HANDLES_PAGE_SIZE"},
		},
		&cli.StringFlag{
			Name:    "on-malformed",
			Usage:   "What to do with a report that cannot be parsed: abort or skip",
			Value:   string(exporter.Abort),
			EnvVars: []string{"HANDLES_ON_MALFORMED"},
		},
		&cli.StringFlag{
			Name:    "metrics-file",
			Usage:   "Write run metrics in Prometheus text format to this file",
			EnvVars: []string{"HANDLES_METRICS_FILE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
	return append(flags, redisFlags()...)
}

func redisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Also record handles in this Redis instance",
			EnvVars: []string{"REDIS_ADDR"},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			EnvVars: []string{"REDIS_PASSWORD"},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			EnvVars: []string{"REDIS_DB"},
		},
		&cli.BoolFlag{
			Name:    "redis-tls",
			EnvVars: []string{"REDIS_TLS_ENABLED"},
		},
		&cli.StringFlag{
			Name:    "redis-key",
			Usage:   "Hash holding handle to identifier",
			Value:   handleindex.DefaultKey,
			EnvVars: []string{"REDIS_HANDLES_KEY"},
		},
	}
}

// runConfig is everything the export action needs, built from flags
type runConfig struct {
	reportTime  string
	store       objectstore.Config
	export      exporter.Config
	redis       handleindex.Options
	metricsFile string
	logLevel    slog.Level
}

// reportTimeArg returns the last positional argument
func reportTimeArg(c *cli.Context) (string, error) {
	if c.NArg() == 0 {
		return "", errors.New("missing <time> argument")
	}
	return c.Args().Get(c.NArg() - 1), nil
}

func configFromContext(c *cli.Context) (runConfig, error) {
	reportTime, err := reportTimeArg(c)
	if err != nil {
		return runConfig{}, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return runConfig{}, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := runConfig{
		reportTime: reportTime,
		store: objectstore.Config{
			Backend:         c.String("backend"),
			Bucket:          c.String("bucket"),
			Region:          c.String("region"),
			Endpoint:        c.String("endpoint"),
			AccessKeyID:     c.String("access-key-id"),
			SecretAccessKey: c.String("secret-access-key"),
			PageSize:        int32(c.Int("page-size")),
		},
		export: exporter.Config{
			OutputPath:   c.String("output"),
			ReportPrefix: c.String("prefix"),
			OnMalformed:  exporter.MalformedPolicy(strings.ToLower(c.String("on-malformed"))),
		},
		redis:       redisOptions(c),
		metricsFile: c.String("metrics-file"),
		logLevel:    level,
	}

	if err := cfg.store.Validate(); err != nil {
		return runConfig{}, err
	}
	if err := cfg.export.Validate(); err != nil {
		return runConfig{}, err
	}

	return cfg, nil
}

func redisOptions(c *cli.Context) handleindex.Options {
	return handleindex.Options{
		Addr:       c.String("redis-addr"),
		Password:   c.String("redis-password"),
		DB:         c.Int("redis-db"),
		TLSEnabled: c.Bool("redis-tls"),
		Key:        c.String("redis-key"),
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func runExport(c *cli.Context) error {
	cfg, err := configFromContext(c)
	if err != nil {
		newLogger(c.App.ErrWriter, slog.LevelInfo).Error("Invalid configuration", "error", err)
		return cli.Exit(err, 1)
	}

	logger := newLogger(c.App.Writer, cfg.logLevel).With("run_id", uuid.NewString())

	store, err := objectstore.New(c.Context, cfg.store, logger)
	if err != nil {
		logger.Error("Failed to create object store", "error", err)
		return err
	}
	defer store.Close()

	exp, err := exporter.NewExporter(store, cfg.export, logger)
	if err != nil {
		logger.Error("Failed to create exporter", "error", err)
		return err
	}

	if cfg.redis.Addr != "" {
		idx, err := handleindex.NewRedisIndex(cfg.redis, logger)
		if err != nil {
			logger.Error("Failed to create handle index", "error", err)
			return err
		}
		defer idx.Close()

		if err := idx.Ping(c.Context); err != nil {
			logger.Error("Handle index unreachable", "addr", cfg.redis.Addr, "error", err)
			return err
		}
		exp.WithIndex(idx)
	}

	var recorder *metrics.Recorder
	if cfg.metricsFile != "" {
		recorder = metrics.NewRecorder(store.GetBucketName(), cfg.export.Prefix(cfg.reportTime))
		exp.WithMetrics(recorder)
	}

	summary, err := exp.Export(c.Context, cfg.reportTime)

	if recorder != nil {
		if werr := recorder.WriteTextfile(cfg.metricsFile); werr != nil {
			logger.Warn("Failed to write metrics", "path", cfg.metricsFile, "error", werr)
		}
	}

	if err != nil {
		attrs := []any{
			"error", err,
			"kind", exporter.KindOf(err).String(),
			"written", summary.Written,
		}
		var exportErr *exporter.Error
		if errors.As(err, &exportErr) && exportErr.Key != "" {
			attrs = append(attrs, "key", exportErr.Key)
		}
		logger.Error("Handle export failed", attrs...)
		return err
	}

	if summary.SkipErrors != nil {
		logger.Warn("Some handle reports were skipped",
			"skipped", summary.Skipped,
			"errors", summary.SkipErrors.Error(),
		)
	}

	return nil
}

func runHandles(c *cli.Context) error {
	logger := newLogger(c.App.ErrWriter, slog.LevelInfo)

	if c.NArg() == 0 {
		logger.Error("Missing <file> argument")
		return cli.Exit("missing <file> argument", 1)
	}

	uris, err := handles.ReadHandlesFile(c.Args().First())
	if err != nil {
		logger.Error("Failed to read handle list", "error", err)
		return err
	}

	for _, uri := range uris {
		fmt.Fprintln(c.App.Writer, uri)
	}
	return nil
}

func runLookup(c *cli.Context) error {
	logger := newLogger(c.App.ErrWriter, slog.LevelInfo)

	if c.NArg() == 0 {
		logger.Error("Missing <handle> argument")
		return cli.Exit("missing <handle> argument", 1)
	}
	handle := c.Args().First()

	idx, err := handleindex.NewRedisIndex(redisOptions(c), logger)
	if err != nil {
		logger.Error("Failed to create handle index", "error", err)
		return err
	}
	defer idx.Close()

	identifier, found, err := idx.Lookup(c.Context, handle)
	if err != nil {
		logger.Error("Lookup failed", "handle", handle, "error", err)
		return err
	}
	if !found {
		logger.Info("Handle not indexed", "handle", handle)
		return cli.Exit("", 2)
	}

	fmt.Fprintln(c.App.Writer, identifier)
	return nil
}
