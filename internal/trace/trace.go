// Package trace writes per-tick navigation traces as zstd-compressed JSON
// lines and reads them back.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/Garsondee/Nav-Sense/internal/sim"
)

// Record kinds.
const (
	KindSample = "sample"
	KindEvent  = "event"
)

// Record is one line of a trace file. Exactly one of Sample and Event is set.
type Record struct {
	Kind   string      `json:"kind"`
	Tick   int         `json:"tick"`
	Sample *sim.Sample `json:"sample,omitempty"`
	Event  *nav.Event  `json:"event,omitempty"`
}

// Writer appends records to a single .jsonl.zst file. It is safe for
// concurrent use.
type Writer struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	n   int
	err error
}

// Create opens path for writing, truncating any previous trace.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the file being written.
func (w *Writer) Path() string { return w.path }

// Len returns the number of records written.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Err returns the first error hit by an attached observer.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Write appends one record.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(r)
}

func (w *Writer) writeLocked(r Record) error {
	if w.w == nil {
		return fmt.Errorf("trace: %s is closed", w.path)
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.w != nil {
		err = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	return err
}

// Attach records, after every tick of ts, a sample of each listed unit and
// every event logged since the previous tick. Write errors stop the trace
// and are reported by Err.
func Attach(ts *sim.TestSim, w *Writer, units ...nav.EntityID) {
	seen := len(ts.Log.Entries())
	ts.Observe(func(s *sim.TestSim) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.err != nil {
			return
		}
		entries := s.Log.Entries()
		for i := seen; i < len(entries); i++ {
			e := entries[i]
			if err := w.writeLocked(Record{Kind: KindEvent, Tick: e.Tick, Event: &e}); err != nil {
				w.err = err
				return
			}
		}
		seen = len(entries)
		for _, id := range units {
			smp, ok := s.SampleOf(id)
			if !ok {
				continue
			}
			if err := w.writeLocked(Record{Kind: KindSample, Tick: s.Tick, Sample: &smp}); err != nil {
				w.err = err
				return
			}
		}
	})
}

// Read decodes a whole trace file.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return out, fmt.Errorf("trace: %s line %d: %w", path, line, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}

// Samples returns the samples of one unit, in tick order.
func Samples(records []Record, unit string) []sim.Sample {
	var out []sim.Sample
	for _, r := range records {
		if r.Kind == KindSample && r.Sample != nil && r.Sample.Unit == unit {
			out = append(out, *r.Sample)
		}
	}
	return out
}
