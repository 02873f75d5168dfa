package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/wudi/pdfoverlay/config"
	"github.com/wudi/pdfoverlay/observability"
)

const usage = `Usage: pdfoverlay [-config file] <command> [flags] <pdf>

Commands:
  apply    merge an edits file into the document and write a copy
  fields   list the document's form fields as JSON
  text     list the document's native text runs as JSON
  preview  write a PNG preview of one page with its overlays
`

type command func(ctx context.Context, env *env, args []string) error

var commands = map[string]command{
	"apply":   runApply,
	"fields":  runFields,
	"text":    runText,
	"preview": runPreview,
}

// env is what every command shares.
type env struct {
	cfg    config.Config
	logger observability.Logger
	stdout io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pdfoverlay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "pdfoverlay: unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintf(stderr, "pdfoverlay: %v\n", err)
			return 2
		}
	}
	e := &env{cfg: cfg, logger: newLogger(cfg.Log, stderr), stdout: stdout}
	if err := cmd(ctx, e, fs.Args()[1:]); err != nil {
		fmt.Fprintf(stderr, "pdfoverlay %s: %v\n", fs.Arg(0), err)
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func newLogger(c config.Log, w io.Writer) observability.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(c.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	return observability.NewSlogLogger(slog.New(h))
}
