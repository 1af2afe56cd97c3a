// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// xtypes-lookupd registers the types declared in schema files with a
// type library and serves their TypeObjects to peers over a Unix
// socket, so that a peer holding only a type identifier can resolve
// the full type. With --resolve it acts as such a peer against a
// running daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/xcdr/lib/config"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/idlschema"
	"github.com/bureau-foundation/xcdr/lib/process"
	"github.com/bureau-foundation/xcdr/lib/typelib"
	"github.com/bureau-foundation/xcdr/lib/typelookup"
	"github.com/bureau-foundation/xcdr/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath   string
	schemas      []string
	socketPath   string
	libraryPath  string
	logLevel     string
	registerOnly bool
	describe     bool
	showVersion  bool

	resolve        []string
	resolveTimeout time.Duration
}

func parseFlags(args []string, stdout io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("xtypes-lookupd", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.configPath, "config", "", "config file (default: $XCDR_CONFIG, else built-in defaults)")
	flagSet.StringArrayVar(&opts.schemas, "schema", nil, "schema file to register, in addition to the config's schemas (repeatable)")
	flagSet.StringVar(&opts.socketPath, "socket", "", "override lookup.socket_path")
	flagSet.StringVar(&opts.libraryPath, "library", "", "override library.path")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flagSet.BoolVar(&opts.registerOnly, "register-only", false, "register the schemas' types and exit without serving")
	flagSet.BoolVar(&opts.describe, "describe", false, "print each schema type's declaration and identifiers and exit")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.StringArrayVar(&opts.resolve, "resolve", nil, "resolve a hex type identifier or a registered type name through the running daemon, print its declaration, and exit (repeatable)")
	flagSet.DurationVar(&opts.resolveTimeout, "resolve-timeout", 0, "override resolve.timeout for --resolve")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(stdout, "Usage: xtypes-lookupd [flags]\n\n%s", flagSet.FlagUsages())
			return opts, err
		}
		return opts, process.Usage(err)
	}
	if flagSet.NArg() > 0 {
		return opts, process.Usagef("unexpected argument %q", flagSet.Arg(0))
	}
	if len(opts.resolve) > 0 && (opts.describe || opts.registerOnly) {
		return opts, process.Usagef("--resolve cannot be combined with --describe or --register-only")
	}
	if opts.resolveTimeout < 0 {
		return opts, process.Usagef("--resolve-timeout must not be negative")
	}
	return opts, nil
}

func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Schemas = append(cfg.Schemas, opts.schemas...)
	if opts.socketPath != "" {
		cfg.Lookup.SocketPath = opts.socketPath
	}
	if opts.libraryPath != "" {
		cfg.Library.Path = opts.libraryPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string, stderr io.Writer) (*slog.Logger, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return nil, process.Usagef("--log-level: %v", err)
	}
	return slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: parsed})), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "xtypes-lookupd %s\n", version.Full())
		return nil
	}

	logger, err := newLogger(opts.logLevel, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if len(opts.resolve) > 0 {
		return resolveReferences(ctx, stdout, cfg, logger, opts.resolve, opts.resolveTimeout)
	}

	var types []*idl.Type
	if len(cfg.Schemas) > 0 {
		namespace, err := idlschema.LoadFiles(cfg.Schemas...)
		if err != nil {
			return fmt.Errorf("loading schemas: %w", err)
		}
		types = namespace.Types()
		logger.Info("schemas loaded", "files", len(cfg.Schemas), "types", len(types))
	}

	if opts.describe {
		codecConfig, err := cfg.CodecConfig()
		if err != nil {
			return err
		}
		return describe(stdout, types, codecConfig)
	}

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	libraryConfig, err := cfg.TypeLibraryConfig()
	if err != nil {
		return err
	}
	libraryConfig.Logger = logger
	library, err := typelib.Open(ctx, libraryConfig)
	if err != nil {
		return fmt.Errorf("opening type library: %w", err)
	}
	defer library.Close()

	summary, err := register(ctx, library, types)
	if err != nil {
		return err
	}
	logger.Info("types registered",
		"types", summary.Types,
		"objects_added", summary.ObjectsAdded,
	)
	if opts.registerOnly {
		return nil
	}

	server, err := typelookup.NewServer(typelookup.ServerConfig{
		SocketPath: cfg.Lookup.SocketPath,
		Library:    library,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	logger.Info("xtypes-lookupd starting",
		"version", version.Info(),
		"socket", cfg.Lookup.SocketPath,
		"library", cfg.Library.Path,
	)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serving type lookups: %w", err)
	}
	logger.Info("xtypes-lookupd stopped")
	return nil
}
