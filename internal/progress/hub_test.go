package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubFlushesFullBatch(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageAuditStart))
	hub.Emit(sampleEvent(StageFetchDone))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubFlushesOnTick(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageAuditStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubEmitDoesNotBlockWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{events: make(chan Event), logger: zap.NewNop()}
	start := time.Now()
	hub.Emit(sampleEvent(StageAuditStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, int64(0), hub.dropped.Load(), "drop counter resets after the warning")
}

func TestHubCloseDrainsAndClosesSinks(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)
	hub.Emit(sampleEvent(StageAuditStart))
	hub.Emit(Event{Stage: StageAuditDone})

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1, "invalid events never reach sinks")
	require.True(t, sink.closed)

	hub.Emit(sampleEvent(StageAuditDone))
	require.Len(t, sink.Batches(), 1)
}

func TestHubKeepsGoingAfterSinkError(t *testing.T) {
	t.Parallel()

	failing := &stubSink{err: errors.New("boom")}
	ok := &stubSink{}
	hub := NewHub(Config{MaxBatchEvents: 1}, failing, ok)
	hub.Emit(sampleEvent(StageAuditStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, ok.Batches(), 1)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	valid := sampleEvent(StageFetchDone)
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Event){
		"missing id":       func(e *Event) { e.AuditID = [16]byte{} },
		"missing ts":       func(e *Event) { e.TS = time.Time{} },
		"unknown stage":    func(e *Event) { e.Stage = "JOB_START" },
		"fetch no site":    func(e *Event) { e.Site = "" },
		"fetch no class":   func(e *Event) { e.StatusClass = "" },
		"negative latency": func(e *Event) { e.Dur = -time.Second },
	}
	for name, mutate := range cases {
		evt := sampleEvent(StageFetchDone)
		mutate(&evt)
		require.Error(t, evt.Validate(), name)
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, Status2xx, ClassifyStatus(204))
	require.Equal(t, Status3xx, ClassifyStatus(301))
	require.Equal(t, Status4xx, ClassifyStatus(404))
	require.Equal(t, Status5xx, ClassifyStatus(503))
	require.Equal(t, StatusOther, ClassifyStatus(0))
	require.Equal(t, StatusOther, ClassifyStatus(99))
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
	err     error
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return s.err
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func sampleEvent(stage Stage) Event {
	evt := Event{
		AuditID: UUIDToBytes(uuid.New()),
		TS:      time.Now(),
		Stage:   stage,
		Site:    "example.com",
	}
	if stage == StageFetchDone {
		evt.StatusClass = Status2xx
	}
	return evt
}
