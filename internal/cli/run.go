package cli

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ryym/unitrun/internal/config"
	"github.com/ryym/unitrun/internal/engine"
	"github.com/ryym/unitrun/internal/guard"
	"github.com/ryym/unitrun/internal/metrics"
	"github.com/ryym/unitrun/internal/report"
	"github.com/ryym/unitrun/internal/suite"
	"github.com/ryym/unitrun/internal/workspace"
)

// Options configures a single run.
type Options struct {
	Config  *config.Config
	Verbose bool
	// Names restricts the run to these tests. Empty means every test.
	Names       []string
	MetricsFile string

	Logger log.Logger
	Stdout io.Writer

	// Signals end the run early. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID       string
	Executed    int
	Failed      int
	Interrupted bool
}

// Success reports whether every executed test passed without interruption.
func (o Outcome) Success() bool {
	return o.Failed == 0 && !o.Interrupted
}

// Run discovers and executes the tests described by opts. Per-test results
// and the summary go to opts.Stdout. An error means the run could not be
// carried out at all.
func Run(opts Options) (Outcome, error) {
	cfg := opts.Config
	out := Outcome{RunID: uuid.NewString()}
	logger := opts.Logger.New("run", out.RunID)

	m := metrics.New()
	m.RecordRun(out.RunID)

	ws, err := workspace.New(out.RunID)
	if err != nil {
		return out, err
	}
	logger.Debug("Created workspace", "dir", ws.Dir())

	sigs := opts.Signals
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	g := guard.Enter(func(sig os.Signal) {
		if sig != nil {
			logger.Warn("Interrupted, stopping the run", "signal", sig)
		}
		if err := ws.Remove(); err != nil {
			logger.Error("Failed to remove workspace", "dir", ws.Dir(), "err", err)
		}
	}, sigs...)
	defer g.Close()

	tests, err := suite.Discover(cfg.TestDir)
	if err != nil {
		return out, err
	}
	tests, unknown := suite.Filter(tests, opts.Names)
	if len(unknown) > 0 {
		return out, Argumentf("unknown tests: %v", unknown)
	}
	logger.Info("Discovered tests", "dir", cfg.TestDir, "count", len(tests))

	reporter := report.New(opts.Stdout)
	eng := engine.New(cfg, ws, logger, reporter, m)
	eng.Env = []string{cfg.SearchPathVar + "=" + cfg.SearchPath(os.Getenv(cfg.SearchPathVar))}
	eng.Verbose = opts.Verbose
	if opts.Verbose {
		names := make([]string, len(tests))
		for i, d := range tests {
			names[i] = d.Name
		}
		eng.Relay = report.NewRelay(opts.Stdout, names)
	}

	for _, d := range tests {
		if g.Interrupted() {
			break
		}
		res := eng.Execute(g.Context(), d)
		if res.Skipped {
			break
		}
		out.Executed++
		if !res.Passed() {
			out.Failed++
		}
	}

	out.Interrupted = g.Interrupted()
	reporter.Summary(out.Success())
	if opts.Verbose {
		fmt.Fprint(opts.Stdout, reporter.Table(out.Interrupted))
	}

	m.RecordOutcome(out.Success(), out.Interrupted)
	if opts.MetricsFile != "" {
		if err := m.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Error("Failed to export metrics", "path", opts.MetricsFile, "err", err)
		}
	}

	logger.Info("Run finished", "executed", out.Executed, "failed", out.Failed, "interrupted", out.Interrupted)
	return out, nil
}
