package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-cli/internal/enrich"
	"github.com/sells-group/listing-cli/internal/model"
)

func TestRunBatches_BatchSynchronous(t *testing.T) {
	var (
		inFlight, peak atomic.Int32
		mu             sync.Mutex
		seen           []int
	)

	err := runBatches(context.Background(), []int{0, 1, 2, 3, 4}, 2, 0, func(_ context.Context, i int) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		seen = append(seen, i)
		mu.Unlock()
		inFlight.Add(-1)
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, seen)
}

func TestRunBatches_DelayBetweenBatches(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()

	err := runBatches(context.Background(), []int{0, 1, 2, 3, 4}, 2, 20*time.Millisecond, func(context.Context, int) {
		calls.Add(1)
	})
	require.NoError(t, err)

	assert.Equal(t, int32(5), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRunBatches_StopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	err := runBatches(ctx, []int{0, 1, 2, 3}, 1, time.Second, func(context.Context, int) {
		calls.Add(1)
		cancel()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunBatches_Empty(t *testing.T) {
	called := false
	err := runBatches(context.Background(), nil, 0, time.Second, func(context.Context, int) { called = true })
	require.NoError(t, err)
	assert.False(t, called)
}

func TestApplyFallback_FillsOnlyAbsent(t *testing.T) {
	rec := newRecord(t, model.SourceMapDirectory, 1, "Cafe X", "Vernon")
	rec.Phone = "250-555-0142"

	n := applyFallback(&rec, enrich.Fallback{
		URL:   "https://cafex.ca/",
		Email: "hello@cafex.ca",
		Phone: "604-555-0000",
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, "https://cafex.ca/", rec.URL)
	assert.Equal(t, "hello@cafex.ca", rec.Email)
	assert.Equal(t, "250-555-0142", rec.Phone)
	assert.True(t, model.IsAbsent(rec.Address))
}

func TestValidRecords(t *testing.T) {
	recs := []model.BusinessRecord{
		{Title: "  ", Rank: 1},
		{Title: "Cafe X", Rank: 0},
		{Title: "Cafe X", Rank: 1},
		{Title: "Bistro Nord", Rank: 2},
	}

	assert.Len(t, validRecords(recs, 0), 2)
	assert.Len(t, validRecords(recs, 1), 1)
	assert.Empty(t, validRecords(nil, 5))
}
