package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/allisson/eventflow/internal/breaker"
	apperrors "github.com/allisson/eventflow/internal/errors"
	"github.com/allisson/eventflow/internal/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// handlerFunc adapts a function to the Handler interface.
type handlerFunc func(ctx context.Context, msg queue.Message) error

func (f handlerFunc) Handle(ctx context.Context, msg queue.Message) error {
	return f(ctx, msg)
}

func makeBatch(n int) []queue.Message {
	messages := make([]queue.Message, n)
	for i := range messages {
		messages[i] = queue.Message{
			MessageID: "msg-" + string(rune('0'+i)),
			Body:      `{}`,
		}
	}
	return messages
}

func newBreaker() *breaker.CircuitBreaker {
	return breaker.New(breaker.Config{FailureThreshold: 100, ResetTimeout: time.Minute})
}

func TestDispatcher_Dispatch_AllSucceed(t *testing.T) {
	handler := handlerFunc(func(ctx context.Context, msg queue.Message) error {
		return nil
	})
	d := NewDispatcher(Config{Name: "test"}, handler, newBreaker(), nil, testLogger())

	result := d.Dispatch(context.Background(), makeBatch(7))

	assert.Empty(t, result.BatchItemFailures)
}

func TestDispatcher_Dispatch_PartialFailure(t *testing.T) {
	failing := map[string]bool{"msg-1": true, "msg-4": true}
	handler := handlerFunc(func(ctx context.Context, msg queue.Message) error {
		if failing[msg.MessageID] {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "bad payload")
		}
		return nil
	})
	d := NewDispatcher(Config{Name: "test"}, handler, newBreaker(), nil, testLogger())

	result := d.Dispatch(context.Background(), makeBatch(7))

	require.Len(t, result.BatchItemFailures, 2)
	ids := []string{result.BatchItemFailures[0].ItemIdentifier, result.BatchItemFailures[1].ItemIdentifier}
	assert.ElementsMatch(t, []string{"msg-1", "msg-4"}, ids)
}

// A chunked batch of 7 messages (group size 5) where index 3 has an
// unparsable body: only that message's id is reported, regardless of which
// group the others fall into.
func TestDispatcher_Dispatch_ChunkedSingleBadMessage(t *testing.T) {
	messages := makeBatch(7)
	messages[3].Body = `{not json`

	handler := handlerFunc(func(ctx context.Context, msg queue.Message) error {
		if msg.Body == `{not json` {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "failed to parse event")
		}
		return nil
	})
	d := NewDispatcher(Config{Name: "test", Policy: PolicyChunked, ChunkSize: 5}, handler, newBreaker(), nil, testLogger())

	result := d.Dispatch(context.Background(), messages)

	require.Len(t, result.BatchItemFailures, 1)
	assert.Equal(t, messages[3].MessageID, result.BatchItemFailures[0].ItemIdentifier)
}

func TestDispatcher_Dispatch_ChunkedBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	handler := handlerFunc(func(ctx context.Context, msg queue.Message) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	d := NewDispatcher(Config{Name: "test", Policy: PolicyChunked, ChunkSize: 2}, handler, newBreaker(), nil, testLogger())

	result := d.Dispatch(context.Background(), makeBatch(8))

	assert.Empty(t, result.BatchItemFailures)
	assert.LessOrEqual(t, maxInFlight, 2)
}

func TestDispatcher_Dispatch_PanicIsNormalized(t *testing.T) {
	handler := handlerFunc(func(ctx context.Context, msg queue.Message) error {
		if msg.MessageID == "msg-2" {
			panic("boom")
		}
		return nil
	})
	d := NewDispatcher(Config{Name: "test"}, handler, newBreaker(), nil, testLogger())

	result := d.Dispatch(context.Background(), makeBatch(4))

	require.Len(t, result.BatchItemFailures, 1)
	assert.Equal(t, "msg-2", result.BatchItemFailures[0].ItemIdentifier)
}

func TestDispatcher_Dispatch_OpenBreakerFailsFast(t *testing.T) {
	calls := 0
	handler := handlerFunc(func(ctx context.Context, msg queue.Message) error {
		calls++
		return nil
	})

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := breaker.NewWithClock(breaker.Config{FailureThreshold: 3, ResetTimeout: time.Minute}, func() time.Time { return now })
	cb.OnFailure()
	cb.OnFailure()
	cb.OnFailure()

	// Sequential chunks of one message keep the assertion deterministic.
	d := NewDispatcher(Config{Name: "test", ChunkSize: 1}, handler, cb, nil, testLogger())
	result := d.Dispatch(context.Background(), makeBatch(3))

	// Every message fails with SERVICE_UNAVAILABLE and the handler is never invoked.
	require.Len(t, result.BatchItemFailures, 3)
	assert.Equal(t, 0, calls)
}

func TestDispatcher_Dispatch_BreakerOpensDuringBatch(t *testing.T) {
	handler := handlerFunc(func(ctx context.Context, msg queue.Message) error {
		return apperrors.New("store down")
	})

	cb := breaker.New(breaker.Config{FailureThreshold: 2, ResetTimeout: time.Minute})
	d := NewDispatcher(Config{Name: "test", ChunkSize: 1}, handler, cb, nil, testLogger())

	result := d.Dispatch(context.Background(), makeBatch(5))

	// All messages fail; after the second, the breaker is open.
	assert.Len(t, result.BatchItemFailures, 5)
	assert.True(t, cb.State().Open)
}

func TestDispatcher_Dispatch_FullConcurrency(t *testing.T) {
	var mu sync.Mutex
	started := 0
	release := make(chan struct{})

	handler := handlerFunc(func(ctx context.Context, msg queue.Message) error {
		mu.Lock()
		started++
		mu.Unlock()
		<-release
		return nil
	})
	d := NewDispatcher(Config{Name: "test", Policy: PolicyFullConcurrency}, handler, newBreaker(), nil, testLogger())

	done := make(chan queue.BatchResult, 1)
	go func() {
		done <- d.Dispatch(context.Background(), makeBatch(6))
	}()

	// All 6 handlers must be in flight at the same time.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return started == 6
	}, time.Second, time.Millisecond)

	close(release)
	result := <-done
	assert.Empty(t, result.BatchItemFailures)
}
