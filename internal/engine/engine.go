// Package engine prepares and executes discovered tests one at a time.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ryym/unitrun/internal/config"
	"github.com/ryym/unitrun/internal/metrics"
	"github.com/ryym/unitrun/internal/process"
	"github.com/ryym/unitrun/internal/report"
	"github.com/ryym/unitrun/internal/suite"
	"github.com/ryym/unitrun/internal/workspace"
)

// VerboseFlag is appended to every test command in verbose mode.
const VerboseFlag = "-v"

// maxDiagnostic bounds how much build tool output is kept for the log.
const maxDiagnostic = 4096

// ErrBuildFailed marks a compiled test whose artifact could not be built.
var ErrBuildFailed = errors.New("build failed")

// ErrInterrupted marks a test abandoned because the run was cancelled
// before its process was started.
var ErrInterrupted = errors.New("interrupted before start")

// Outcome is the verdict for one test.
type Outcome string

const (
	Pass Outcome = "pass"
	Fail Outcome = "fail"
)

// Result describes how one test went.
type Result struct {
	Name     string
	Kind     suite.Kind
	Outcome  Outcome
	Expected int
	// Actual is the raw exit code; -1 if the test never ran or was killed
	// by a signal.
	Actual int
	// Ran is false when the test process was never started.
	Ran bool
	// Skipped is set when cancellation arrived before the test process was
	// started. Skipped results are neither reported nor counted.
	Skipped bool
	// Err explains why the test could not run or its metadata was invalid.
	Err      error
	Duration time.Duration
}

// Passed reports whether the test passed.
func (r Result) Passed() bool {
	return r.Outcome == Pass
}

// Engine executes tests against a shared workspace. Tests must be executed
// sequentially: compiled tests reuse the workspace's artifact path.
type Engine struct {
	cfg      *config.Config
	ws       *workspace.Workspace
	log      log.Logger
	reporter *report.Reporter
	metrics  *metrics.Metrics

	// Env is added to every test's environment before its own variables.
	Env []string
	// Verbose appends VerboseFlag to test commands and relays their output.
	Verbose bool
	// Relay receives test output in verbose mode. Output is discarded when
	// nil.
	Relay *report.Relay
}

// New creates an engine. reporter and m may be nil.
func New(cfg *config.Config, ws *workspace.Workspace, logger log.Logger, reporter *report.Reporter, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:      cfg,
		ws:       ws,
		log:      logger.New("component", "engine"),
		reporter: reporter,
		metrics:  m,
	}
}

// Execute prepares, runs and judges a single test, then reports it.
func (e *Engine) Execute(ctx context.Context, d *suite.Descriptor) Result {
	start := time.Now()
	res := e.execute(ctx, d)
	res.Duration = time.Since(start)

	if res.Skipped {
		e.log.Debug("Test skipped", "test", d.Name, "err", res.Err)
		return res
	}
	e.record(res)
	return res
}

// skip marks res as abandoned if ctx has been cancelled.
func skip(ctx context.Context, res *Result) bool {
	if ctx.Err() == nil {
		return false
	}
	res.Skipped = true
	res.Err = fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	return true
}

func (e *Engine) execute(ctx context.Context, d *suite.Descriptor) Result {
	res := Result{
		Name:    d.Name,
		Kind:    d.Kind,
		Outcome: Fail,
		Actual:  -1,
	}
	logger := e.log.New("test", d.Name)
	if skip(ctx, &res) {
		return res
	}

	md, err := d.Metadata()
	if err != nil {
		logger.Error("Failed to read test metadata", "err", err)
		res.Err = err
		return res
	}
	res.Expected, err = md.ExpectedExitCode()
	if err != nil {
		logger.Error("Invalid test metadata", "err", err)
		res.Err = err
		return res
	}

	env := append([]string(nil), e.Env...)
	for _, v := range md.Environment() {
		v.Value = filepath.Join(e.cfg.Root, v.Value)
		env = append(env, v.String())
	}

	var cmd process.Command
	switch d.Kind {
	case suite.Interpreted:
		cmd = e.interpretedCommand(d)
	case suite.Compiled:
		cmd, err = e.build(ctx, d, md, logger)
		if skip(ctx, &res) {
			return res
		}
		if err != nil {
			res.Err = err
			return res
		}
	default:
		res.Err = fmt.Errorf("unsupported test kind %q", d.Kind)
		logger.Error("Cannot execute test", "err", res.Err)
		return res
	}

	cmd.Env = env
	if e.Verbose {
		cmd.Args = append(cmd.Args, VerboseFlag)
	}

	var flushers []*report.LineWriter
	if e.Verbose && e.Relay != nil {
		stdout, stderr := e.Relay.Writer(d.Name), e.Relay.Writer(d.Name)
		cmd.Stdout, cmd.Stderr = stdout, stderr
		flushers = append(flushers, stdout, stderr)
	}

	if skip(ctx, &res) {
		return res
	}
	logger.Debug("Running test", "cmd", cmd.String(), "env", env)
	code, err := process.Run(ctx, cmd)
	for _, f := range flushers {
		f.Flush()
	}
	if err != nil {
		logger.Error("Failed to run test", "err", err)
		res.Err = err
		return res
	}

	res.Ran = true
	res.Actual = code
	if code == res.Expected {
		res.Outcome = Pass
	} else {
		logger.Info("Unexpected exit code", "expected", res.Expected, "actual", code)
	}
	if ctx.Err() != nil {
		res.Err = fmt.Errorf("interrupted: %w", context.Cause(ctx))
	}
	return res
}

func (e *Engine) interpretedCommand(d *suite.Descriptor) process.Command {
	if e.cfg.Interpreter != "" {
		return process.Command{Program: e.cfg.Interpreter, Args: []string{d.Path}}
	}
	return process.Command{Program: d.Path}
}

// build runs the optional extraction step and compiles the test into the
// workspace artifact. Only a failed compilation is an error; extraction
// problems surface through the compiler. Failures caused by ctx being
// cancelled are not logged or counted.
func (e *Engine) build(ctx context.Context, d *suite.Descriptor, md *suite.Metadata, logger log.Logger) (process.Command, error) {
	if md.Has(suite.TagCodeExtract) {
		if err := e.extract(ctx, md, logger); err != nil {
			if ctx.Err() != nil {
				return process.Command{}, err
			}
			logger.Warn("Code extraction failed", "err", err)
			e.recordBuildFailure(metrics.StepExtract)
		}
	}

	if err := e.ws.ResetArtifact(); err != nil {
		return process.Command{}, err
	}

	var diag bytes.Buffer
	compile := process.Command{
		Program: e.cfg.Compiler,
		Args:    []string{"-I" + e.ws.Dir(), "-o", e.ws.ArtifactPath(), d.Path},
		Stderr:  &limitedWriter{w: &diag, n: maxDiagnostic},
	}
	logger.Debug("Compiling test", "cmd", compile.String())
	if !process.Succeeds(ctx, compile) {
		if ctx.Err() != nil {
			return process.Command{}, fmt.Errorf("compilation of %s cancelled", d.Name)
		}
		logger.Warn("Compilation failed", "cmd", compile.String(), "output", diag.String())
		e.recordBuildFailure(metrics.StepCompile)
		return process.Command{}, fmt.Errorf("%w: %s", ErrBuildFailed, d.Name)
	}

	return process.Command{Program: e.ws.ArtifactPath()}, nil
}

// extract invokes the extraction tool once with every requested fragment,
// writing its output to the workspace's extracted-code file.
func (e *Engine) extract(ctx context.Context, md *suite.Metadata, logger log.Logger) error {
	sources, names := md.ExtractSet()

	args := []string{"-extra-arg=-I" + e.cfg.DriverInclude}
	for _, name := range names {
		args = append(args, "-extract="+name)
	}
	for _, src := range sources {
		args = append(args, filepath.Join(e.cfg.Root, src))
	}

	out, err := os.Create(e.ws.ExtractedCodePath())
	if err != nil {
		return fmt.Errorf("failed to create extracted code file: %w", err)
	}
	defer out.Close()

	var diag bytes.Buffer
	cmd := process.Command{
		Program: e.cfg.ExtractTool,
		Args:    args,
		Stdout:  out,
		Stderr:  &limitedWriter{w: &diag, n: maxDiagnostic},
	}
	logger.Debug("Extracting code", "cmd", cmd.String())
	if !process.Succeeds(ctx, cmd) {
		return fmt.Errorf("%s exited unsuccessfully: %s", cmd.Program, diag.String())
	}
	return nil
}

func (e *Engine) record(res Result) {
	if e.reporter != nil {
		entry := report.Entry{
			Name:     res.Name,
			Kind:     res.Kind,
			Passed:   res.Passed(),
			Expected: res.Expected,
			Duration: res.Duration,
		}
		if res.Ran {
			actual := res.Actual
			entry.Actual = &actual
		}
		if res.Err != nil {
			entry.Note = res.Err.Error()
		}
		e.reporter.Record(entry)
	}
	if e.metrics != nil {
		e.metrics.RecordTest(string(res.Kind), res.Passed(), res.Duration)
	}
}

func (e *Engine) recordBuildFailure(step string) {
	if e.metrics != nil {
		e.metrics.RecordBuildFailure(step)
	}
}

// limitedWriter keeps the first n bytes and silently drops the rest.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n > 0 {
		chunk := p
		if len(chunk) > l.n {
			chunk = chunk[:l.n]
		}
		written, err := l.w.Write(chunk)
		l.n -= written
		if err != nil {
			return written, err
		}
	}
	return len(p), nil
}
