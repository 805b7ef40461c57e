package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
)

// Relay forwards a test's output line by line, each line prefixed with the
// test name. Prefixes are padded to the longest name seen so the separators
// line up across tests.
type Relay struct {
	mu         sync.Mutex
	out        io.Writer
	maxNameLen int
}

// NewRelay creates a relay writing to out, pre-sized for names.
func NewRelay(out io.Writer, names []string) *Relay {
	maxLen := 0
	for _, name := range names {
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	return &Relay{out: out, maxNameLen: maxLen}
}

// Writer returns an io.Writer for one stream of the named test. Call Flush
// on it once the process has exited to emit a trailing partial line.
func (r *Relay) Writer(name string) *LineWriter {
	return &LineWriter{relay: r, name: name}
}

func (r *Relay) printLine(name, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(name) > r.maxNameLen {
		r.maxNameLen = len(name)
	}
	padded := name + strings.Repeat(" ", r.maxNameLen-len(name))
	fmt.Fprintf(r.out, "%s | %s\n", padded, stripansi.Strip(line))
}

// LineWriter splits writes into lines for a Relay.
type LineWriter struct {
	relay   *Relay
	name    string
	partial string
}

func (w *LineWriter) Write(p []byte) (n int, err error) {
	data := w.partial + string(p)
	lines := strings.Split(data, "\n")

	for i := 0; i < len(lines)-1; i++ {
		w.relay.printLine(w.name, strings.TrimSuffix(lines[i], "\r"))
	}

	// Keep incomplete line for next write
	w.partial = lines[len(lines)-1]

	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *LineWriter) Flush() {
	if w.partial != "" {
		w.relay.printLine(w.name, w.partial)
		w.partial = ""
	}
}
