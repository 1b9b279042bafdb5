package klog

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btclog"
)

// Recorder is a btclog.Logger that stores every formatted line instead of
// writing it anywhere, so tests can assert on the exact log record
// formats spec.md §6 fixes for testing.
type Recorder struct {
	mu    sync.Mutex
	Infos []string
	Errs  []string
}

// NewRecorder returns a Recorder and installs it as the active logger.
func NewRecorder() *Recorder {
	r := &Recorder{}
	UseLogger(r)
	return r
}

func (r *Recorder) Infof(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Infos = append(r.Infos, fmt.Sprintf(format, args...))
}

func (r *Recorder) Errorf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errs = append(r.Errs, fmt.Sprintf(format, args...))
}

func (r *Recorder) Info(args ...interface{})     {}
func (r *Recorder) Error(args ...interface{})    {}
func (r *Recorder) Trace(args ...interface{})    {}
func (r *Recorder) Tracef(string, ...interface{}) {}
func (r *Recorder) Debug(args ...interface{})    {}
func (r *Recorder) Debugf(string, ...interface{}) {}
func (r *Recorder) Warn(args ...interface{})     {}
func (r *Recorder) Warnf(string, ...interface{}) {}
func (r *Recorder) Critical(args ...interface{}) {}
func (r *Recorder) Criticalf(string, ...interface{}) {}
func (r *Recorder) Level() btclog.Level          { return btclog.LevelInfo }
func (r *Recorder) SetLevel(btclog.Level)        {}

// AllInfos returns a snapshot copy of the recorded Info lines.
func (r *Recorder) AllInfos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Infos))
	copy(out, r.Infos)
	return out
}

// CountPrefixed returns how many recorded Info lines start with prefix.
func (r *Recorder) CountPrefixed(prefix string) int {
	n := 0
	for _, line := range r.AllInfos() {
		if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
