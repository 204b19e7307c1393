package ss7

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// TraceRecord is one entry in a Trace: a sequence number, the subsystem
// category that produced it (e.g. "restart", "isolation", "changeover",
// "route"), and a rendered message. Adapted from mrnes's TraceInst, which
// keys records by execution id and simulated time; this module has
// neither, so a monotonic sequence number stands in for both.
type TraceRecord struct {
	Seq      int    `json:"seq" yaml:"seq"`
	Category string `json:"category" yaml:"category"`
	Message  string `json:"message" yaml:"message"`
}

// Trace gathers management-plane and route-state events for post-run
// analysis, gated by InUse exactly as mrnes's TraceManager gates its own
// recording so that disabled tracing costs nothing but a boolean check.
type Trace struct {
	InUse   bool          `json:"inuse" yaml:"inuse"`
	Name    string        `json:"name" yaml:"name"`
	Records []TraceRecord `json:"records" yaml:"records"`

	mu sync.Mutex
}

// NewTrace creates a Trace. If active is false, Logf is a no-op and
// WriteToFile refuses to write, mirroring CreateTraceManager's pattern of
// leaving trace collection compiled in but inert until switched on.
func NewTrace(name string, active bool) *Trace {
	return &Trace{InUse: active, Name: name}
}

// Active reports whether the trace is collecting records. A nil *Trace is
// treated as inactive so callers that construct a Router without a trace
// need not special-case it.
func (t *Trace) Active() bool {
	return t != nil && t.InUse
}

// Logf appends one formatted record under category. No-op when the trace
// is nil or inactive.
func (t *Trace) Logf(category, format string, args ...any) {
	if !t.Active() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Records = append(t.Records, TraceRecord{
		Seq:      len(t.Records),
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Snapshot returns a copy of the records collected so far.
func (t *Trace) Snapshot() []TraceRecord {
	if !t.Active() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceRecord, len(t.Records))
	copy(out, t.Records)
	return out
}

// WriteToFile serializes the trace to filename, choosing YAML or JSON by
// extension, mirroring TraceManager.WriteToFile's dual-format dump.
func (t *Trace) WriteToFile(filename string) error {
	if !t.Active() {
		return fmt.Errorf("ss7: trace is not active")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var data []byte
	var err error
	switch strings.ToLower(path.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(t)
	case ".json":
		data, err = json.MarshalIndent(t, "", "\t")
	default:
		return fmt.Errorf("ss7: unrecognized trace file extension %q", path.Ext(filename))
	}
	if err != nil {
		return fmt.Errorf("ss7: marshalling trace: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}
