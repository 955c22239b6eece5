package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/victornm/q3log/internal/config"
	"github.com/victornm/q3log/internal/errors"
	"github.com/victornm/q3log/internal/ingest"
	"github.com/victornm/q3log/internal/report"
	"github.com/victornm/q3log/internal/server"
	"github.com/victornm/q3log/internal/telemetry"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "q3log: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("q3log", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: q3log [flags] <log-file>")
		fmt.Fprintln(stderr, "\nReports the games of a Quake 3 Arena server log.\n\nFlags:")
		fs.PrintDefaults()
	}

	var (
		configPath = fs.StringP("config", "c", os.Getenv("CONFIG_PATH"), "config file (yaml, json or toml)")
		serve      = fs.Bool("serve", false, "serve the HTTP and gRPC APIs instead of printing a report")
	)
	fs.StringP("report-type", "r", "all", "report type: all, player-rank or cause (mean-death)")
	fs.StringP("report-format", "f", "text", "report format: text or html")
	fs.StringP("output-file", "o", "", "write the report to this file instead of stdout")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", telemetry.LogFormatText, "log format: text or json")

	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	c, err := loadConfig(*configPath, fs)
	if err != nil {
		return err
	}

	if err := telemetry.SetupLogger(stderr, c.Log.Level, c.Log.Format); err != nil {
		return err
	}

	if *serve {
		return runServer(c)
	}

	if c.Source.Path == "" {
		fs.Usage()
		return fmt.Errorf("missing log file")
	}

	return runReport(context.Background(), c, stdout)
}

func loadConfig(file string, fs *pflag.FlagSet) (server.Config, error) {
	c := server.DefaultConfig()

	err := config.Load(file, &c,
		config.Binding{Key: "report.type", Flag: fs.Lookup("report-type")},
		config.Binding{Key: "report.format", Flag: fs.Lookup("report-format")},
		config.Binding{Key: "report.output", Flag: fs.Lookup("output-file")},
		config.Binding{Key: "log.level", Flag: fs.Lookup("log-level")},
		config.Binding{Key: "log.format", Flag: fs.Lookup("log-format")},
	)
	if err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	switch fs.NArg() {
	case 0:
	case 1:
		c.Source.Path = fs.Arg(0)
	default:
		return c, fmt.Errorf("expected one log file, got %d arguments", fs.NArg())
	}

	return c, nil
}

func runReport(ctx context.Context, c server.Config, stdout io.Writer) (err error) {
	opts := report.Options{
		Type:   report.Type(c.Report.Type),
		Format: report.Format(c.Report.Format),
	}

	// fail on a bad option before reading the log
	if _, err := report.ParseType(c.Report.Type); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return err
	}

	run, err := ingest.NewService(ingest.Config{}).Ingest(ctx, ingest.IngestRequest{Path: c.Source.Path})
	if err != nil {
		return err
	}

	w := stdout
	if c.Report.Output != "" {
		var f *os.File
		f, err = os.Create(c.Report.Output)
		if err != nil {
			return errors.New(errors.CodeIOFailure,
				errors.WithMessagef("create output file %s", c.Report.Output),
				errors.WithCause(err))
		}
		defer func() {
			err = stderrors.Join(err, f.Close())
		}()
		w = f
	}

	return report.Render(w, run.Games, opts)
}

func runServer(c server.Config) error {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
	return nil
}
