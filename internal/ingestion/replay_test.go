package ingestion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradestream/internal/domain"
	"tradestream/internal/orchestrator"
	"tradestream/internal/storage/memory"
)

func seedJournal(t *testing.T, journal *memory.EventStore, candidates ...*domain.Trade) {
	t.Helper()
	for i, c := range candidates {
		event := &domain.CandidateEvent{
			Trade:      *c.Clone(),
			ReceivedAt: testNow.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, journal.Record(context.Background(), event))
	}
}

func newTestReplayer(journal *memory.EventStore, batchSize int) (*Replayer, *memory.ProjectionStore, *memory.ExceptionStore) {
	projections := memory.NewProjectionStore()
	exceptions := memory.NewExceptionStore()

	orch := orchestrator.New(orchestrator.Options{
		ProjectionStore: projections,
		ExceptionStore:  exceptions,
		Now:             func() time.Time { return testNow },
	})
	r := NewReplayer(ReplayerOptions{
		Journal:      journal,
		Orchestrator: orch,
		BatchSize:    batchSize,
	})
	return r, projections, exceptions
}

func TestReplayer_RebuildsProjectionAndExceptions(t *testing.T) {
	journal := memory.NewEventStore()

	v1 := newCandidate("T-1", 1, 30)
	v2 := newCandidate("T-1", 2, 30)
	v2.RequestID = "req-T-1-v2"
	stale := newCandidate("T-1", 1, 30)
	stale.RequestID = "req-T-1-late"
	noMaturity := newCandidate("T-2", 1, 30)
	noMaturity.MaturityDate = nil
	seedJournal(t, journal, v1, v2, stale, noMaturity)

	r, projections, exceptions := newTestReplayer(journal, 0)

	result, err := r.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Processed)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 2, result.Rejected)
	assert.Zero(t, result.Malformed)

	rows, err := projections.GetByTradeID(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	recs, err := exceptions.GetByTradeID(context.Background(), "T-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "lower version received: 1 < 2", recs[0].Reason)

	recs, err = exceptions.GetByTradeID(context.Background(), "T-2")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "missing maturity date", recs[0].Reason)
}

func TestReplayer_SecondPassChangesNothing(t *testing.T) {
	journal := memory.NewEventStore()
	v1 := newCandidate("T-1", 1, 30)
	stale := newCandidate("T-1", 1, 0)
	stale.RequestID = "req-T-1-late"
	stale.MaturityDate = nil
	seedJournal(t, journal, v1, stale)

	r, projections, exceptions := newTestReplayer(journal, 0)
	ctx := context.Background()

	first, err := r.Replay(ctx)
	require.NoError(t, err)
	second, err := r.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Accepted, second.Accepted)
	assert.Equal(t, first.Rejected, second.Rejected)

	stats, err := projections.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Rows)

	n, err := exceptions.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "replayed rejections collapse into one record")
}

func TestReplayer_PagesThroughJournal(t *testing.T) {
	journal := memory.NewEventStore()
	var candidates []*domain.Trade
	for i := 1; i <= 7; i++ {
		candidates = append(candidates, newCandidate(fmt.Sprintf("T-%d", i), 1, 30))
	}
	seedJournal(t, journal, candidates...)

	r, projections, _ := newTestReplayer(journal, 2)

	result, err := r.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, result.Processed)
	assert.Equal(t, 7, result.Accepted)

	stats, err := projections.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.Rows)
}

func TestReplayer_CountsMalformedWithoutStopping(t *testing.T) {
	journal := memory.NewEventStore()
	bad := newCandidate("T-1", 1, 30)
	bad.BookID = ""
	good := newCandidate("T-2", 1, 30)
	seedJournal(t, journal, bad, good)

	r, projections, _ := newTestReplayer(journal, 0)

	result, err := r.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Malformed)
	assert.Equal(t, 1, result.Processed)

	_, err = projections.Get(context.Background(), "T-2", 1)
	require.NoError(t, err)
}
