// Package main is the entry point for the docview document viewer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/term"

	"github.com/dshills/docview/internal/app"
	"github.com/dshills/docview/internal/config"
	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/logging"
	"github.com/dshills/docview/internal/renderer/backend"
	"github.com/dshills/docview/internal/watcher"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// cliOptions holds parsed command line flags. Overrides are applied only
// for flags that were set.
type cliOptions struct {
	configPath  string
	path        string
	showVersion bool
	showHelp    bool
	overrides   map[string]string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}
	if opts.showVersion {
		fmt.Printf("docview %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return exitOK
	}

	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err == nil {
		err = applyOverrides(&cfg, opts.overrides)
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return exitFatal
	}

	logger, err := openLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}
	defer logger.Close()

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: docview needs an interactive terminal")
		return exitFatal
	}

	var history *app.History
	if cfg.History.Enabled {
		history = loadHistory(cfg.History, logger)
	}

	var w watcher.Watcher
	if fw, err := watcher.NewFSNotifyWatcher(watcher.WithFilter(watcher.IgnoreChmod)); err != nil {
		logger.Warn("live reload unavailable: %v", err)
	} else {
		w = fw
		defer fw.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	screen, err := backend.NewTerminal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return exitFatal
	}

	application, err := app.New(ctx, app.Options{
		Path:    opts.path,
		Config:  cfg,
		Logger:  logger,
		Backend: screen,
		Watcher: w,
		History: history,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	opts := cliOptions{overrides: make(map[string]string)}
	fs := flag.NewFlagSet("docview", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file (.toml or .yaml)")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("log-file", "", "Write logs to this file")
	fs.String("fit", "", "Fit mode (page, width, height, actual)")
	fs.Int("max-wide", 0, "Maximum pages shown side by side (0 = unlimited)")
	fs.Bool("r-to-l", false, "Lay pages out right to left")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.showVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&opts.showHelp, "help", false, "Show help message")
	fs.BoolVar(&opts.showHelp, "h", false, "Show help message (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "docview - terminal document viewer\n\n")
		fmt.Fprintf(stderr, "Usage: docview [options] FILE\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  docview paper.pdf              View a PDF\n")
		fmt.Fprintf(stderr, "  docview -fit width notes.txt   View text, fit to width\n")
		fmt.Fprintf(stderr, "  docview -max-wide 2 book.pdf   At most two pages across\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.showHelp {
		fs.Usage()
		return opts, flag.ErrHelp
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level", "log-file", "fit", "max-wide", "r-to-l":
			opts.overrides[f.Name] = f.Value.String()
		}
	})
	if opts.showVersion {
		return opts, nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return opts, fmt.Errorf("expected one file, got %d", fs.NArg())
	}
	opts.path = fs.Arg(0)
	return opts, nil
}

// applyOverrides applies flag values on top of the loaded configuration.
func applyOverrides(cfg *config.Config, overrides map[string]string) error {
	for name, v := range overrides {
		switch name {
		case "log-level":
			cfg.Log.Level = v
		case "log-file":
			cfg.Log.File = v
		case "fit":
			cfg.View.Fit = v
		case "max-wide":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("-max-wide: %w", err)
			}
			cfg.View.MaxAcross = n
		case "r-to-l":
			on, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("-r-to-l: %w", err)
			}
			if on {
				cfg.View.Direction = document.RightToLeft.String()
			} else {
				cfg.View.Direction = document.LeftToRight.String()
			}
		}
	}
	return nil
}

func openLogger(cfg config.LogConfig) (*logging.Logger, error) {
	if cfg.File == "" {
		return logging.Nop(), nil
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.OpenFile(cfg.File, level)
}

func loadHistory(cfg config.HistoryConfig, logger *logging.Logger) *app.History {
	path := cfg.Path
	if path == "" {
		p, err := app.DefaultHistoryPath()
		if err != nil {
			logger.Warn("history disabled: %v", err)
			return nil
		}
		path = p
	}
	h, err := app.LoadHistory(path)
	if err != nil {
		logger.Warn("history disabled: %v", err)
		return nil
	}
	return h
}
