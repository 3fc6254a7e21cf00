package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Efreh/sqlOptimizer/internal/database"
	"github.com/Efreh/sqlOptimizer/internal/plan"
)

type fakeDriver struct {
	closed atomic.Bool
}

func (f *fakeDriver) Name() string                                  { return "fake" }
func (f *fakeDriver) Connect(ctx context.Context, dsn string) error { return nil }
func (f *fakeDriver) Close(ctx context.Context) error {
	f.closed.Store(true)
	return nil
}
func (f *fakeDriver) Exec(ctx context.Context, query string, args ...any) error { return nil }
func (f *fakeDriver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeDriver) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return nil
}
func (f *fakeDriver) Explain(ctx context.Context, query string, args ...any) (*plan.Report, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeDriver) RefreshStats(ctx context.Context) error { return nil }
func (f *fakeDriver) Reset(ctx context.Context) error        { return nil }

// fakeFactory records every driver it hands out. Workers call it
// concurrently, so the slice is guarded.
func fakeFactory(drivers *[]*fakeDriver) DriverFactory {
	var mu sync.Mutex
	return func(ctx context.Context) (database.Driver, error) {
		drv := &fakeDriver{}
		mu.Lock()
		*drivers = append(*drivers, drv)
		mu.Unlock()
		return drv, nil
	}
}

func sleepOp(d time.Duration) Operation {
	return func(ctx context.Context, drv database.Driver) error {
		time.Sleep(d)
		return nil
	}
}

func TestBenchCountsOperations(t *testing.T) {
	var drivers []*fakeDriver
	res, err := Bench(context.Background(), fakeFactory(&drivers), sleepOp(time.Millisecond), Options{
		Variant:     "baseline",
		Concurrency: 4,
		Duration:    200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, "baseline", res.Variant)
	assert.Equal(t, 4, res.Concurrency)
	assert.Positive(t, res.Operations)
	assert.Zero(t, res.Errors)
	assert.Positive(t, res.Throughput)
	assert.Positive(t, res.P50)
	assert.GreaterOrEqual(t, res.P99, res.P50)
	assert.GreaterOrEqual(t, res.Max, res.P99)
}

func TestBenchCountsErrors(t *testing.T) {
	var drivers []*fakeDriver
	op := func(ctx context.Context, drv database.Driver) error {
		time.Sleep(time.Millisecond)
		return errors.New("boom")
	}

	res, err := Bench(context.Background(), fakeFactory(&drivers), op, Options{
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Zero(t, res.Operations)
	assert.Positive(t, res.Errors)
	assert.Equal(t, 1.0, res.ErrorRate)
}

func TestBenchWarmupDiscardsEarlyOperations(t *testing.T) {
	var calls atomic.Int64
	op := func(ctx context.Context, drv database.Driver) error {
		calls.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	}

	var drivers []*fakeDriver
	res, err := Bench(context.Background(), fakeFactory(&drivers), op, Options{
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Warmup:      100 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Positive(t, res.Operations)
	assert.Less(t, res.Operations, calls.Load(), "warmup operations should not be counted")
}

func TestBenchClosesWorkerDrivers(t *testing.T) {
	var drivers []*fakeDriver
	_, err := Bench(context.Background(), fakeFactory(&drivers), sleepOp(time.Millisecond), Options{
		Concurrency: 3,
		Duration:    50 * time.Millisecond,
	})
	require.NoError(t, err)

	require.Len(t, drivers, 3)
	for _, drv := range drivers {
		assert.True(t, drv.closed.Load())
	}
}

func TestBenchValidatesOptions(t *testing.T) {
	factory := func(ctx context.Context) (database.Driver, error) { return &fakeDriver{}, nil }

	_, err := Bench(context.Background(), factory, sleepOp(0), Options{Concurrency: 0, Duration: time.Second})
	require.ErrorContains(t, err, "concurrency")

	_, err = Bench(context.Background(), factory, sleepOp(0), Options{Concurrency: 1})
	require.ErrorContains(t, err, "duration")
}

func TestBenchFactoryFailureAborts(t *testing.T) {
	factory := func(ctx context.Context) (database.Driver, error) {
		return nil, errors.New("connect refused")
	}

	_, err := Bench(context.Background(), factory, sleepOp(0), Options{
		Concurrency: 2,
		Duration:    time.Second,
	})
	require.ErrorContains(t, err, "connect refused")
}

func TestBenchHonorsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var drivers []*fakeDriver
	started := time.Now()
	_, err := Bench(ctx, fakeFactory(&drivers), sleepOp(time.Millisecond), Options{
		Concurrency: 2,
		Duration:    time.Minute,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(started), 5*time.Second)
}
