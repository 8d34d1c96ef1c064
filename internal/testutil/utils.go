package testutil

import (
	"io"
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger that writes to stdout when running with
// -v and stays quiet otherwise.
func TestLogger(t *testing.T) *log.Logger {
	var out io.Writer = io.Discard
	if testing.Verbose() {
		out = os.Stdout
	}

	logger := log.New(out, "[test] ", log.LstdFlags|log.Lmsgprefix)
	t.Cleanup(func() {
		logger.SetOutput(io.Discard)
	})
	return logger
}
