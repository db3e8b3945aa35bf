// Package persist implements the debounced, crash-safe JSON snapshot writer
// shared by CommsData, MakerData and TakerData. Every state mutation
// schedules a write; writes coalesce so that k mutations between two
// flushes produce exactly one file write.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

// Typed is implemented by any data snapshot that can be persisted. Type
// returns the discriminator written into and validated against the "type"
// field of the stored JSON.
type Typed interface {
	PersistType() string
}

// Snapshotter produces an immutable copy of an actor's persisted state
// under its own read lock. Implementations must not block the caller
// longer than it takes to copy the struct.
type Snapshotter[T Typed] interface {
	Snapshot() T
}

// envelope is the on-disk wrapper used solely to read back the
// discriminator before unmarshaling the full payload.
type envelope struct {
	Type string `json:"type"`
}

// Persister debounces writes of T to a single JSON file on disk. Queue
// depth is 1 and queue() is non-blocking: if a write is already pending,
// a second queue() call is a no-op, since the eventual write captures
// whatever the source holds at flush time.
type Persister[T Typed] struct {
	path   string
	source Snapshotter[T]
	log    *logging.Logger

	queueCh chan struct{}
	closeCh chan struct{}
	done    chan struct{}
}

// New starts a Persister worker goroutine writing snapshots of source to path.
func New[T Typed](path string, source Snapshotter[T]) *Persister[T] {
	p := &Persister[T]{
		path:    path,
		source:  source,
		log:     logging.GetDefault().Component("persist"),
		queueCh: make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	p.Queue()
	return p
}

// Queue schedules a write. Safe to call from any goroutine; never blocks.
func (p *Persister[T]) Queue() {
	select {
	case p.queueCh <- struct{}{}:
	default:
	}
}

// Terminate stops the worker, flushing one final time, and waits for the
// goroutine to exit.
func (p *Persister[T]) Terminate() {
	close(p.closeCh)
	<-p.done
}

func (p *Persister[T]) run() {
	defer close(p.done)
	for {
		select {
		case <-p.queueCh:
			if err := p.flush(); err != nil {
				p.log.Warn("persist: write failed", "path", p.path, "error", err)
			}
		case <-p.closeCh:
			if err := p.flush(); err != nil {
				p.log.Warn("persist: final write failed", "path", p.path, "error", err)
			}
			return
		}
	}
}

func (p *Persister[T]) flush() error {
	snapshot := p.source.Snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		// Serialization errors are a bug: the in-memory type is never
		// expected to be unmarshalable.
		panic(fmt.Sprintf("persist: snapshot of %q failed to marshal: %v", p.path, err))
	}
	return writeFileSync(p.path, data)
}

// writeFileSync writes data to path via a temp-file-plus-rename so a crash
// mid-write never leaves a truncated file in its place, fsyncing both the
// file and its parent directory before returning.
func writeFileSync(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync()
		dirFile.Close()
	}

	return nil
}

// Restore reads and validates a persisted snapshot from path, checking
// that its "type" discriminator matches expectedType before unmarshaling
// the full value into out.
func Restore[T Typed](path string, expectedType string, out *T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse %q discriminator: %w", path, err)
	}
	if env.Type != expectedType {
		return fmt.Errorf("restore %q: expected type %q, got %q", path, expectedType, env.Type)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %q: %w", path, err)
	}
	return nil
}

// lockedSnapshotter adapts a plain struct guarded by an external RWMutex
// into a Snapshotter, matching the actor ownership model: the owning actor
// is the sole writer, the Persister worker the sole reader.
type lockedSnapshotter[T Typed] struct {
	mu   *sync.RWMutex
	copy func() T
}

// NewLockedSnapshotter builds a Snapshotter that takes mu's read lock for
// the duration of each Snapshot call.
func NewLockedSnapshotter[T Typed](mu *sync.RWMutex, copy func() T) Snapshotter[T] {
	return &lockedSnapshotter[T]{mu: mu, copy: copy}
}

func (s *lockedSnapshotter[T]) Snapshot() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copy()
}
