package e2e

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// Fixture provides an isolated repository layout for each test:
// <Root>/test/unit holds the tests and TMPDIR points at a private directory
// so the runner's workspace can be inspected.
type Fixture struct {
	t       *testing.T
	Root    string
	TestDir string
	TmpDir  string
}

// NewFixture creates a new test fixture.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	root := t.TempDir()
	testDir := filepath.Join(root, "test", "unit")
	if err := os.MkdirAll(testDir, 0o755); err != nil {
		t.Fatalf("failed to create test dir: %v", err)
	}

	return &Fixture{
		t:       t,
		Root:    root,
		TestDir: testDir,
		TmpDir:  t.TempDir(),
	}
}

// WriteTest writes an executable test file into the test directory.
func (f *Fixture) WriteTest(name, content string) {
	f.t.Helper()
	f.writeExecutable(filepath.Join(f.TestDir, name), content)
}

// WriteFile writes an executable file relative to the repository root.
func (f *Fixture) WriteFile(rel, content string) string {
	f.t.Helper()
	path := filepath.Join(f.Root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.t.Fatalf("failed to create dir: %v", err)
	}
	f.writeExecutable(path, content)
	return path
}

func (f *Fixture) writeExecutable(path, content string) {
	f.t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		f.t.Fatalf("failed to write %s: %v", path, err)
	}
}

// Result is a finished unitrun invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes unitrun against the fixture and waits for it to complete.
func (f *Fixture) Run(args ...string) Result {
	return f.RunWithTimeout(30*time.Second, args...)
}

// RunWithTimeout executes unitrun with a custom timeout.
func (f *Fixture) RunWithTimeout(timeout time.Duration, args ...string) Result {
	f.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := f.command(ctx, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	res := Result{Stdout: outBuf.String(), Stderr: errBuf.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		f.t.Fatalf("failed to run unitrun: %v", err)
	}
	return res
}

// RunAsync starts unitrun without waiting, streaming stdout to the returned
// buffer.
func (f *Fixture) RunAsync(args ...string) (*exec.Cmd, *SyncBuffer) {
	f.t.Helper()

	cmd := f.command(context.Background(), args...)
	outBuf := &SyncBuffer{}
	cmd.Stdout = outBuf
	cmd.Stderr = outBuf

	if err := cmd.Start(); err != nil {
		f.t.Fatalf("failed to start unitrun: %v", err)
	}
	return cmd, outBuf
}

func (f *Fixture) command(ctx context.Context, args ...string) *exec.Cmd {
	argv := append([]string{"--testdir", f.TestDir}, args...)
	cmd := exec.CommandContext(ctx, binPath, argv...)
	cmd.Env = append(os.Environ(), "TMPDIR="+f.TmpDir)
	return cmd
}

// Workspaces lists the workspace directories left in the fixture's TMPDIR.
func (f *Fixture) Workspaces() []string {
	f.t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.TmpDir, "unitrun-*"))
	if err != nil {
		f.t.Fatalf("glob failed: %v", err)
	}
	return matches
}

// Lines splits output into lines without the trailing newline.
func Lines(output string) []string {
	return strings.Split(strings.TrimSuffix(output, "\n"), "\n")
}

// WaitForContent polls buf until it contains want.
func WaitForContent(buf *SyncBuffer, want string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), want) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// SyncBuffer is a thread-safe buffer for capturing command output.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *SyncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns the buffer contents as a string.
func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
