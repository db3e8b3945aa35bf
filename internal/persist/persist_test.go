package persist

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureData struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func (f fixtureData) PersistType() string { return "fixture" }

type fixtureStore struct {
	mu   sync.RWMutex
	data fixtureData
}

func (s *fixtureStore) increment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Count++
}

func (s *fixtureStore) snapshotter() Snapshotter[fixtureData] {
	return NewLockedSnapshotter(&s.mu, func() fixtureData {
		return fixtureData{Type: "fixture", Count: s.data.Count}
	})
}

func TestNewEnqueuesInitialWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.json")

	store := &fixtureStore{data: fixtureData{Type: "fixture", Count: 0}}
	p := New(path, store.snapshotter())
	p.Terminate()

	var restored fixtureData
	require.NoError(t, Restore(path, "fixture", &restored))
	assert.Equal(t, 0, restored.Count)
}

func TestPersisterWritesOnQueue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.json")

	store := &fixtureStore{data: fixtureData{Type: "fixture", Count: 1}}
	p := New(path, store.snapshotter())

	p.Queue()
	p.Terminate()

	var restored fixtureData
	require.NoError(t, Restore(path, "fixture", &restored))
	assert.Equal(t, 1, restored.Count)
}

func TestPersisterCoalescesBurstsIntoOneWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.json")

	store := &fixtureStore{}
	p := New(path, store.snapshotter())

	for i := 0; i < 10; i++ {
		store.increment()
		p.Queue()
	}
	// give the worker a chance to drain the coalesced signal before we
	// force a final flush via Terminate
	time.Sleep(10 * time.Millisecond)
	p.Terminate()

	var restored fixtureData
	require.NoError(t, Restore(path, "fixture", &restored))
	assert.Equal(t, 10, restored.Count)
}

func TestRestoreRejectsWrongType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.json")

	store := &fixtureStore{data: fixtureData{Type: "fixture", Count: 1}}
	p := New(path, store.snapshotter())
	p.Queue()
	p.Terminate()

	var restored fixtureData
	err := Restore(path, "not-fixture", &restored)
	assert.Error(t, err)
}

func TestRestoreMissingFileErrors(t *testing.T) {
	var restored fixtureData
	err := Restore(filepath.Join(t.TempDir(), "missing.json"), "fixture", &restored)
	assert.Error(t, err)
}
