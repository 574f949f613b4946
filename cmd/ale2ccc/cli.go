package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/ale2ccc/internal/config"
	"github.com/hpungsan/ale2ccc/internal/db"
	"github.com/hpungsan/ale2ccc/internal/errors"
	"github.com/hpungsan/ale2ccc/internal/logger"
	"github.com/hpungsan/ale2ccc/internal/mcp"
	"github.com/hpungsan/ale2ccc/internal/metrics"
	"github.com/hpungsan/ale2ccc/internal/ops"
	"github.com/hpungsan/ale2ccc/internal/report"
	"github.com/hpungsan/ale2ccc/internal/web"
)

// appEnv is what every command needs from the process.
type appEnv struct {
	cfg     *config.Config
	baseDir string // holds history.db

	stdout, stderr io.Writer
	interactive    bool // stderr is a terminal
}

// newCLIApp creates the CLI application with all commands.
// Without a subcommand the arguments are converted: <in.ale>... <out.ccc>.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:      "ale2ccc",
		Usage:     "Convert Avid Log Exchange files to an ASC CDL Color Correction Collection",
		UsageText: "ale2ccc [options] <in.ale>... <out.ccc>\nale2ccc <command> [options]",
		Version:   Version,
		Writer:    env.stdout,
		ErrWriter: env.stderr,
		Flags:     convertFlags(),
		Action: func(c *cli.Context) error {
			return runConvert(c, env)
		},
		Commands: []*cli.Command{
			convertCmd(env),
			inspectCmd(env),
			historyCmd(env),
			serveCmd(env),
			uiCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// logFlags control diagnostic verbosity on every command.
func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Usage: "Log debug diagnostics"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Log errors only"},
	}
}

// convertFlags are shared by the default action and the convert command.
func convertFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{Name: "naming-pattern", Aliases: []string{"n"}, Usage: "Regex deriving the CDL id from the Name column (first group is the id)"},
		&cli.BoolFlag{Name: "history", Usage: "Record this run in history.db"},
		&cli.StringFlag{Name: "metrics-file", Usage: "Write Prometheus textfile metrics to this path"},
		&cli.StringFlag{Name: "report", Aliases: []string{"r"}, Usage: "Write a run report (.html renders HTML, otherwise Markdown)"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Run summary format: text|json"},
		&cli.BoolFlag{Name: "force", Usage: "Replace an existing output that is not a CCC document"},
	}, logFlags()...)
}

// convertCmd creates the convert command.
func convertCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert ALE files into one CCC (same as running without a command)",
		ArgsUsage: "<in.ale>... <out.ccc>",
		Flags:     convertFlags(),
		Action: func(c *cli.Context) error {
			return runConvert(c, env)
		},
	}
}

// runConvert converts every argument but the last into the last.
func runConvert(c *cli.Context, env *appEnv) error {
	args := c.Args().Slice()
	if len(args) < 2 {
		if len(args) == 0 && env.interactive {
			_ = cli.ShowAppHelp(c)
		}
		return outputError(errors.NewUsage("expected at least one input ALE and an output CCC: ale2ccc <in.ale>... <out.ccc>"))
	}

	format := c.String("format")
	if format != "text" && format != "json" {
		return outputError(errors.NewUsage(fmt.Sprintf("unsupported --format %q (want text or json)", format)))
	}

	cfg := *env.cfg
	if c.Bool("history") {
		cfg.HistoryEnabled = true
	}

	log, err := newLogger(c, &cfg, env.stderr)
	if err != nil {
		return outputError(errors.NewUsage(err.Error()))
	}

	database, err := env.openDB(&cfg, cfg.HistoryEnabled)
	if err != nil {
		return outputError(err)
	}
	if database != nil {
		defer database.Close()
	}

	deps := ops.Deps{
		DB:      database,
		Config:  &cfg,
		Logger:  log,
		Metrics: metrics.NewManager(),
	}

	result, err := ops.Convert(c.Context, deps, ops.ConvertInput{
		Inputs:        args[:len(args)-1],
		Output:        args[len(args)-1],
		NamingPattern: c.String("naming-pattern"),
		ReportFile:    c.String("report"),
		MetricsFile:   c.String("metrics-file"),
		Force:         c.Bool("force"),
	})
	if result != nil {
		switch {
		case format == "json":
			if jerr := outputJSON(env.stdout, result); jerr != nil && err == nil {
				err = errors.NewInternal(jerr)
			}
		case env.interactive || c.IsSet("format"):
			fmt.Fprintln(env.stderr, summaryLine(result))
		}
	}
	if err != nil {
		return outputError(err)
	}
	return nil
}

// summaryLine is the one-line end-of-run summary.
func summaryLine(out *ops.ConvertOutput) string {
	if out.Status != db.StatusOK {
		msg := out.Status
		if out.Error != nil {
			msg = out.Error.Code
		}
		return fmt.Sprintf("%s: %s not written (%d rows read, %d skipped)", msg, out.Output, out.RowsRead, out.Skipped)
	}
	return fmt.Sprintf("wrote %d entries to %s (%d rows read, %d skipped, %d renamed)",
		out.Entries, out.Output, out.RowsRead, out.Skipped, out.Renamed)
}

// inspectCmd creates the inspect command.
func inspectCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Parse an ALE or CCC file and show what a conversion would see",
		ArgsUsage: "<file>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "naming-pattern", Aliases: []string{"n"}, Usage: "Regex deriving the CDL id (ALE only)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format: table|json|yaml"},
		}, logFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewUsage("inspect takes exactly one file"))
			}

			log, err := newLogger(c, env.cfg, env.stderr)
			if err != nil {
				return outputError(errors.NewUsage(err.Error()))
			}

			result, err := ops.Inspect(c.Context, ops.Deps{Config: env.cfg, Logger: log}, ops.InspectInput{
				Path:          c.Args().First(),
				NamingPattern: c.String("naming-pattern"),
			})
			if err != nil {
				return outputError(err)
			}

			switch c.String("format") {
			case "json":
				return outputJSON(env.stdout, result)
			case "yaml":
				return outputYAML(env.stdout, result)
			case "table":
				_, err := fmt.Fprintln(env.stdout, inspectTable(result))
				return err
			default:
				return outputError(errors.NewUsage(fmt.Sprintf("unsupported --format %q (want table, json or yaml)", c.String("format"))))
			}
		},
	}
}

// historyCmd creates the history command and its subcommands.
func historyCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse recorded conversion runs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List runs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Filter by exact output path"},
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status: ok|failed|write_failed"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum runs to return"},
					&cli.IntFlag{Name: "offset", Value: 0, Usage: "Runs to skip"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format: table|json|yaml"},
				},
				Action: func(c *cli.Context) error {
					database, err := env.openDB(env.cfg, true)
					if err != nil {
						return outputError(err)
					}
					defer database.Close()

					result, err := ops.HistoryList(database, ops.HistoryListInput{
						Output: c.String("output"),
						Status: c.String("status"),
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}

					switch c.String("format") {
					case "json":
						return outputJSON(env.stdout, result)
					case "yaml":
						return outputYAML(env.stdout, result)
					default:
						_, err := fmt.Fprintln(env.stdout, historyTable(result))
						return err
					}
				},
			},
			{
				Name:      "show",
				Usage:     "Show one run with its corrections",
				ArgsUsage: "<run-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|yaml|markdown"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.NewUsage("history show takes exactly one run id"))
					}
					database, err := env.openDB(env.cfg, true)
					if err != nil {
						return outputError(err)
					}
					defer database.Close()

					result, err := ops.HistoryShow(database, c.Args().First())
					if err != nil {
						return outputError(err)
					}

					switch c.String("format") {
					case "yaml":
						return outputYAML(env.stdout, result)
					case "markdown", "md":
						_, err := env.stdout.Write(report.Markdown(result.Report()))
						return err
					default:
						return outputJSON(env.stdout, result)
					}
				},
			},
			{
				Name:  "prune",
				Usage: "Delete runs older than a number of days",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "older-than", Required: true, Usage: "Age in days, e.g. 30d"},
				},
				Action: func(c *cli.Context) error {
					days, err := parseDuration(c.String("older-than"))
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					database, err := env.openDB(env.cfg, true)
					if err != nil {
						return outputError(err)
					}
					defer database.Close()

					result, err := ops.HistoryPrune(c.Context, database, ops.HistoryPruneInput{
						OlderThan: time.Duration(days) * 24 * time.Hour,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(env.stdout, result)
				},
			},
		},
	}
}

// serveCmd creates the serve command (MCP over stdio).
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP tool server on stdin/stdout",
		Flags: logFlags(),
		Action: func(c *cli.Context) error {
			log, err := newLogger(c, env.cfg, env.stderr)
			if err != nil {
				return outputError(errors.NewUsage(err.Error()))
			}
			for _, name := range mcp.ValidateDisabledTools(env.cfg.DisabledTools) {
				log.Warn(c.Context, "unknown tool in disabled_tools", logger.String("tool", name))
			}

			database, err := env.openDB(env.cfg, env.cfg.HistoryEnabled)
			if err != nil {
				return outputError(err)
			}
			if database != nil {
				defer database.Close()
			}

			deps := ops.Deps{
				DB:      database,
				Config:  env.cfg,
				Logger:  log.Named("mcp"),
				Metrics: metrics.NewManager(),
			}
			if err := mcp.Run(deps, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// uiCmd creates the ui command (history browser over HTTP).
func uiCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the history browser over HTTP",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to listen on"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8765, Usage: "Port to listen on"},
		}, logFlags()...),
		Action: func(c *cli.Context) error {
			log, err := newLogger(c, env.cfg, env.stderr)
			if err != nil {
				return outputError(errors.NewUsage(err.Error()))
			}
			database, err := env.openDB(env.cfg, true)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			srv, err := web.NewServer(ops.Deps{DB: database, Config: env.cfg, Logger: log}, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(c.Context, srv, log.Named("web")); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// openDB opens history.db when want is true. A nil DB means history is off.
func (env *appEnv) openDB(cfg *config.Config, want bool) (*sql.DB, error) {
	if !want {
		return nil, nil
	}
	if env.baseDir == "" {
		return nil, errors.NewInvalidRequest("history location is unknown")
	}
	database, err := db.Init(env.baseDir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	db.ConfigurePool(database, cfg)
	return database, nil
}

// newLogger builds the diagnostics logger from config and --verbose/--quiet.
func newLogger(c *cli.Context, cfg *config.Config, w io.Writer) (logger.Logger, error) {
	level := cfg.LogLevel
	switch {
	case c.Bool("verbose"):
		level = "debug"
	case c.Bool("quiet"):
		level = "error"
	}
	return logger.New(logger.Options{Level: level, Format: cfg.LogFormat, Output: w})
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML writes v as YAML.
func outputYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cErr *errors.CDLError
	if stderrors.As(err, &cErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days <= 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 30d")
}
