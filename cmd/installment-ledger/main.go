package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iwvelando/installment-ledger/internal/config"
	"github.com/iwvelando/installment-ledger/internal/store"
	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/validation"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: installment-ledger [flags] <command> [args]

commands:
  list                      list installments (filter flags: -search -debtor -type -dueDay -status -date -start -end)
  export <file>             export installments; format from the extension (.csv, .xlsx, .pdf)
  billing                   print a billing summary of the filtered installments
  report <debtorID>         print the collection message and WhatsApp link of a debtor
  pay <loanID> <n>          pay (or with -yes reverse) an installment; -amount for a partial payment
  backup [file]             write a JSON backup of the whole ledger
  restore <file> -yes       replace the ledger with a backup
  serve                     run the HTTP API (-server-config server-config.yaml)

flags:
`

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// CLI override takes precedence
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var zapConfig zap.Config
	switch format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	// Logs go to stderr unless a file is configured; stdout carries command output.
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

// app carries what every command needs.
type app struct {
	conf         *config.Configuration
	logger       *zap.Logger
	store        *store.Store
	outputFormat string
	logLevel     string
	out          io.Writer
}

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// A missing default config file falls back to defaults and environment.
	path := *configLocation
	if _, err := os.Stat(path); err != nil && path == constants.DefaultConfigFile {
		path = ""
	}
	conf, err := config.LoadConfiguration(path)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := store.OpenKV(ctx, conf.Storage, logger)
	if err != nil {
		logger.Fatal("failed to open storage",
			zap.String("op", "main"),
			zap.String("backend", conf.Storage.Backend),
			zap.Error(err),
		)
	}

	st, err := store.Open(ctx, logger, kv)
	if err != nil {
		_ = kv.Close()
		logger.Fatal("failed to load ledger",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	a := &app{
		conf:         conf,
		logger:       logger,
		store:        st,
		outputFormat: outputFormat,
		logLevel:     *logLevel,
		out:          os.Stdout,
	}
	runErr := a.run(ctx, flag.Args())

	if err := st.Close(); err != nil {
		logger.Warn("failed to close storage",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	if runErr != nil {
		logger.Error("command failed",
			zap.String("op", "main"),
			zap.String("command", flag.Arg(0)),
			zap.Error(runErr),
		)
		_ = logger.Sync()
		os.Exit(1)
	}
}
