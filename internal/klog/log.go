// Package klog is the single logging sink for the search engine. It
// follows the btcd-family package-level logger pattern: a subsystem
// obtains a no-op btclog.Logger by default and the daemon's entrypoint
// injects a real one (file + stdout, through jrick/logrotate) via
// UseLogger once configuration has been parsed.
package klog

import (
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// log is the package-level logger every other internal package pulls in
// by importing klog and calling klog.Log(). It starts disabled so tests
// and early startup code never panic on a nil logger.
var log = btclog.Disabled

// UseLogger injects a configured logger, called once at startup after the
// log file (and its rotator) have been opened.
func UseLogger(logger btclog.Logger) { log = logger }

// Log returns the active logger. Internal packages call klog.Log().Infof/
// Errorf/Warnf directly rather than wrapping every log record in a
// bespoke function, matching the teacher's direct-call logging style.
func Log() btclog.Logger { return log }

// NewRotatingFileWriter opens (creating parent directories as needed) a
// rotating log file at path, sized maxRollMB per segment, keeping
// maxRolls old segments - the same rotation policy the btcd family wires
// through jrick/logrotate.
func NewRotatingFileWriter(path string, maxRollMB, maxRolls int) (io.WriteCloser, error) {
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	r, err := rotator.New(path, int64(maxRollMB*1024), false, maxRolls)
	if err != nil {
		return nil, fmt.Errorf("open log rotator: %w", err)
	}
	return r, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

// multiWriter duplicates log output to stdout and the rotating file, so
// an operator watching the console sees the same lines landing on disk.
type multiWriter struct {
	w1, w2 io.Writer
}

// NewConsoleAndFileWriter fans log output out to stdout and file.
func NewConsoleAndFileWriter(file io.Writer) io.Writer {
	return multiWriter{w1: os.Stdout, w2: file}
}

func (m multiWriter) Write(p []byte) (int, error) {
	if _, err := m.w1.Write(p); err != nil {
		return 0, err
	}
	return m.w2.Write(p)
}
