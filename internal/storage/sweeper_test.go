package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/config"
	"timesheets/internal/shared/testutil"
)

type recorder struct {
	mu       sync.Mutex
	removed  []int
	failures []string
}

func (r *recorder) RecordSweep(_ context.Context, removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, removed)
}

func (r *recorder) RecordStorageFailure(_ context.Context, op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op)
}

func testConfig(t *testing.T) config.StorageConfig {
	return config.StorageConfig{Backend: config.BackendLocal, Dir: t.TempDir()}
}

func putAged(t *testing.T, store *LocalStore, key string, age time.Duration, now time.Time) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), key, strings.NewReader(key)))
	mod := now.Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), key), mod, mod))
}

func TestSweeper_Sweep(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestLocalStore(t)
	putAged(t, store, "old_1.xlsx", 3*time.Hour, now)
	putAged(t, store, "old_2.csv", 25*time.Hour, now)
	putAged(t, store, "fresh.csv", 10*time.Minute, now)

	rec := &recorder{}
	logger, _ := testutil.NewTestLogger(t)
	sw := NewSweeper(store, time.Hour, time.Minute, rec, logger)
	sw.now = func() time.Time { return now }

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{2}, rec.removed)

	objects, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "fresh.csv", objects[0].Key)
}

type failingStore struct {
	*LocalStore
	listErr   error
	deleteErr error
}

func (f *failingStore) List(ctx context.Context) ([]ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.LocalStore.List(ctx)
}

func (f *failingStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil && key == "bad.csv" {
		return f.deleteErr
	}
	return f.LocalStore.Delete(ctx, key)
}

func TestSweeper_Failures(t *testing.T) {
	now := time.Now()

	t.Run("list failure", func(t *testing.T) {
		rec := &recorder{}
		store := &failingStore{LocalStore: newTestLocalStore(t), listErr: errors.New("boom")}
		sw := NewSweeper(store, time.Hour, time.Minute, rec, nil)

		_, err := sw.Sweep(context.Background())
		assert.EqualError(t, err, "boom")
		assert.Equal(t, []string{"list"}, rec.failures)
	})

	t.Run("one delete fails, others proceed", func(t *testing.T) {
		rec := &recorder{}
		local := newTestLocalStore(t)
		putAged(t, local, "bad.csv", 2*time.Hour, now)
		putAged(t, local, "good.csv", 2*time.Hour, now)
		store := &failingStore{LocalStore: local, deleteErr: errors.New("denied")}
		sw := NewSweeper(store, time.Hour, time.Minute, rec, nil)

		n, err := sw.Sweep(context.Background())
		assert.EqualError(t, err, "denied")
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"delete"}, rec.failures)
	})
}

func TestSweeper_Run(t *testing.T) {
	t.Run("disabled retention returns immediately", func(t *testing.T) {
		sw := NewSweeper(newTestLocalStore(t), 0, 0, nil, nil)
		assert.NoError(t, sw.Run(context.Background()))
	})

	t.Run("sweeps until cancelled", func(t *testing.T) {
		store := newTestLocalStore(t)
		putAged(t, store, "old.csv", time.Hour, time.Now())
		rec := &recorder{}
		sw := NewSweeper(store, time.Minute, 10*time.Millisecond, rec, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- sw.Run(ctx) }()

		assert.Eventually(t, func() bool {
			ok, err := store.Exists(context.Background(), "old.csv")
			return err == nil && !ok
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("sweeper did not stop")
		}
	})
}
