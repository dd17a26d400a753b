package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/pipeline"
)

// --- mocks ---

type mockRecorder struct {
	events []domain.ArtifactEvent
	err    error
}

func (m *mockRecorder) RecordArtifact(_ context.Context, a domain.ArtifactEvent) error {
	m.events = append(m.events, a)
	return m.err
}

type mockPublisher struct {
	events []domain.ArtifactEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, events ...domain.ArtifactEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

// --- runner ---

func TestRunner_ArtifactRecordedAndPublished(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	defer domain.SetClock(nil)

	path := filepath.Join(t.TempDir(), "tx90.csv")
	require.NoError(t, os.WriteFile(path, []byte("region_id\n"), 0o644))

	rec := &mockRecorder{}
	pub := &mockPublisher{}
	r := pipeline.NewRunner("regions", observability.DiscardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithRecorder(rec), pipeline.WithPublisher(pub), pipeline.WithRunID("run-1"))

	err := r.Run(context.Background(), func(ctx context.Context) error {
		return r.Artifact(ctx, "temperature", "tx90", path)
	})
	require.NoError(t, err)

	want := []domain.ArtifactEvent{{
		RunID:     "run-1",
		Stage:     "regions",
		Variable:  "temperature",
		Product:   "tx90",
		Path:      filepath.ToSlash(path),
		Bytes:     10,
		CreatedAt: fixed,
	}}
	ignoreSum := cmpopts.IgnoreFields(domain.ArtifactEvent{}, "SHA256")
	if diff := cmp.Diff(want, rec.events, ignoreSum); diff != "" {
		t.Errorf("recorded mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, pub.events, ignoreSum); diff != "" {
		t.Errorf("published mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, rec.events[0].SHA256, 64)
}

func TestRunner_PublishFailureIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.nc")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	r := pipeline.NewRunner("percentiles", observability.DiscardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithRecorder(&mockRecorder{err: errors.New("locked")}),
		pipeline.WithPublisher(&mockPublisher{err: errors.New("broker down")}))

	require.NoError(t, r.Artifact(context.Background(), "temperature", "tmax", path))
	assert.Len(t, r.Artifacts(), 1)
	assert.NotEmpty(t, r.RunID())
}

func TestRunner_MissingArtifact(t *testing.T) {
	r := pipeline.NewRunner("plot", observability.DiscardLogger(), observability.NewMetricsForTesting())
	err := r.Artifact(context.Background(), "composite", "ica", filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestRunner_PropagatesStageError(t *testing.T) {
	r := pipeline.NewRunner("consolidate", observability.DiscardLogger(), observability.NewMetricsForTesting())
	err := r.Run(context.Background(), func(context.Context) error {
		return fmt.Errorf("wind: %w", domain.ErrGridMismatch)
	})
	assert.ErrorIs(t, err, domain.ErrGridMismatch)
}

// --- retry ---

func TestRetry_TransientThenSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var waits []time.Duration
	r := pipeline.Retry{
		Initial:     2 * time.Second,
		Max:         3 * time.Second,
		MaxAttempts: 4,
		Clock:       clock,
		OnRetry:     func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) },
	}

	calls := 0
	done := make(chan struct{})
	var attempts int
	var err error
	go func() {
		defer close(done)
		attempts, err = r.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("status 503: %w", domain.ErrTransient)
			}
			return nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Minute)
	}
	<-done

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, waits)
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	r := pipeline.DefaultRetry(5)
	calls := 0
	attempts, err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("401 unauthorized")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	r := pipeline.Retry{MaxAttempts: 3, Clock: clockwork.NewFakeClock()}
	calls := 0
	attempts, err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return domain.ErrTransient
	})
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := pipeline.Retry{Initial: time.Hour, Max: time.Hour, MaxAttempts: 3, Clock: clockwork.NewFakeClock(),
		OnRetry: func(int, time.Duration, error) { cancel() }}

	_, err := r.Do(ctx, func(context.Context) error { return domain.ErrTransient })
	assert.ErrorIs(t, err, context.Canceled)
}
