// Package report prints test verdicts and the run summary.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ryym/unitrun/internal/suite"
)

const (
	SummarySuccess  = "Completed, successfully"
	SummaryFailures = "Completed, with failures"
)

// Entry is what the reporter needs to know about one executed test.
type Entry struct {
	Name     string
	Kind     suite.Kind
	Passed   bool
	Expected int
	// Actual is nil when the test never produced an exit code.
	Actual   *int
	Note     string
	Duration time.Duration
}

// Reporter writes one line per test and a closing summary.
type Reporter struct {
	mu      sync.Mutex
	out     io.Writer
	entries []Entry
}

// New creates a reporter writing to out.
func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Verdict formats the result line for a test. Compiled tests get two
// spaces before the verdict so they stand apart from interpreted ones.
func Verdict(name string, kind suite.Kind, passed bool) string {
	sep := " "
	if kind == suite.Compiled {
		sep = "  "
	}
	word := "failed"
	if passed {
		word = "ok"
	}
	return name + sep + word
}

// Record prints the verdict line for e and remembers it for the table.
func (r *Reporter) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
	fmt.Fprintln(r.out, Verdict(e.Name, e.Kind, e.Passed))
}

// Entries returns everything recorded so far.
func (r *Reporter) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Summary prints an empty line followed by the overall outcome.
func (r *Reporter) Summary(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out)
	if success {
		fmt.Fprintln(r.out, SummarySuccess)
	} else {
		fmt.Fprintln(r.out, SummaryFailures)
	}
}

// Table renders the recorded results as a table, for verbose runs.
func (r *Reporter) Table(interrupted bool) string {
	entries := r.Entries()

	var buf bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle("Test Results")

	t.AppendHeader(table.Row{"Test", "Kind", "Expected", "Actual", "Duration", "Result", "Note"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Expected", Align: text.AlignRight},
		{Name: "Actual", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Note", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	passed, failed := 0, 0
	var total time.Duration
	for _, e := range entries {
		actual := "-"
		if e.Actual != nil {
			actual = fmt.Sprintf("%d", *e.Actual)
		}
		result := "FAIL"
		if e.Passed {
			result = "PASS"
			passed++
		} else {
			failed++
		}
		total += e.Duration
		t.AppendRow(table.Row{
			e.Name,
			string(e.Kind),
			e.Expected,
			actual,
			formatDuration(e.Duration),
			result,
			e.Note,
		})
	}

	overall := "PASS"
	if failed > 0 || interrupted {
		overall = "FAIL"
	}
	if interrupted {
		overall += " (interrupted)"
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d tests", len(entries)),
		fmt.Sprintf("%d passed", passed),
		fmt.Sprintf("%d failed", failed),
		formatDuration(total),
		overall,
		"",
	})
	t.SetStyle(table.StyleLight)
	t.Style().Title.Format = text.FormatDefault
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.Render()

	return buf.String()
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
