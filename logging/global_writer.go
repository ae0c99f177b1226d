package logging

import (
	"io"
	"os"
	"sync"
)

// output is the process-wide destination for pretty log lines. It
// defaults to stderr; a full-screen TUI swaps in io.Discard while it
// owns the terminal and restores stderr when it exits.
var output = struct {
	mu sync.RWMutex
	w  io.Writer
}{w: os.Stderr}

// swappableWriter forwards each write to the current global
// destination, so a writer handed out once stays subject to later
// swaps.
type swappableWriter struct{}

func (swappableWriter) Write(p []byte) (int, error) {
	output.mu.RLock()
	defer output.mu.RUnlock()
	return output.w.Write(p)
}

// SetGlobalOutput redirects every writer obtained from GetGlobalOutput.
func SetGlobalOutput(w io.Writer) {
	output.mu.Lock()
	defer output.mu.Unlock()
	output.w = w
}

// GetGlobalOutput returns the swappable writer that pretty output goes
// through.
func GetGlobalOutput() io.Writer {
	return swappableWriter{}
}
