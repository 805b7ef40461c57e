// Package cli implements the unitrun command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ryym/unitrun/internal/config"
	"github.com/ryym/unitrun/internal/exitcodes"
)

// Main runs the command line and returns the process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	app := NewApp(stdout, stderr)
	err := app.Run(args)
	if err == nil {
		return exitcodes.Success
	}

	var exitErr cli.ExitCoder
	switch {
	case IsArgumentError(err):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitcodes.UsageError
	case errors.As(err, &exitErr):
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return exitErr.ExitCode()
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitcodes.TestFailure
	}
}

// NewApp builds the urfave/cli application. Exit codes are left to the
// caller: the app never calls os.Exit.
func NewApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "unitrun"
	app.Usage = "Run the utest.* unit test suite"
	app.UsageText = "unitrun [options] [test names...]"
	app.Description = "Discovers utest.DDD.DDDD.{py,c} files, builds the compiled ones and checks every test's exit code against its EXPECTED_EXIT_CODE."
	app.Flags = Flags()
	app.Writer = stdout
	app.ErrWriter = stderr
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.OnUsageError = func(c *cli.Context, err error, _ bool) error {
		return NewArgumentError(err)
	}
	app.Action = func(c *cli.Context) error {
		return action(c, stdout, stderr)
	}
	return app
}

func action(c *cli.Context, stdout, stderr io.Writer) error {
	level := c.String(LogLevelFlagName)
	if c.Bool(VerboseFlagName) && !c.IsSet(LogLevelFlagName) {
		level = "info"
	}
	logger, err := newLogger(stderr, level)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger.Debug("Loaded config", "config", fmt.Sprintf("%+v", *cfg))

	out, err := Run(Options{
		Config:      cfg,
		Verbose:     c.Bool(VerboseFlagName),
		Names:       c.Args().Slice(),
		MetricsFile: c.String(MetricsFileFlagName),
		Logger:      logger,
		Stdout:      stdout,
	})
	if err != nil {
		return err
	}
	if !out.Success() {
		return cli.Exit("", exitcodes.TestFailure)
	}
	return nil
}

// loadConfig layers defaults, the config file and flags, in that order.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default(c.String(TestDirFlagName))

	path := c.String(ConfigFlagName)
	if path == "" {
		candidate := filepath.Join(cfg.TestDir, config.DefaultFile)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		loaded, err := config.Load(path, cfg)
		if err != nil {
			return nil, NewArgumentError(err)
		}
		cfg = loaded
	}

	if c.IsSet(TestDirFlagName) {
		cfg.TestDir = absPath(c.String(TestDirFlagName))
	}
	if c.IsSet(RootFlagName) {
		cfg.Root = absPath(c.String(RootFlagName))
	}

	if err := cfg.Complete(); err != nil {
		return nil, Argumentf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (log.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, lvl, false)), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, Argumentf("unknown log level %q", s)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
