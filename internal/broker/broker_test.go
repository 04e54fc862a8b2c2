package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) (*Broker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func TestTaskRoundTrip(t *testing.T) {
	task := Task{
		Stage:    "transcribe",
		JobID:    "job-123",
		Language: "vi",
		Payload:  json.RawMessage(`{"chunk_count":3}`),
	}

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded Task
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, task.Stage, decoded.Stage)
	assert.Equal(t, task.JobID, decoded.JobID)
	assert.Equal(t, task.Language, decoded.Language)
	assert.JSONEq(t, string(task.Payload), string(decoded.Payload))
}

func TestStatusUpdateRoundTrip(t *testing.T) {
	update := StatusUpdate{
		JobID:     "job-123",
		RequestID: "req-abc",
		Status:    "transcribing",
	}

	data, err := json.Marshal(update)
	require.NoError(t, err)

	var decoded StatusUpdate
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, update, decoded)
}

func TestStatusUpdateOmitsEmptyError(t *testing.T) {
	update := StatusUpdate{JobID: "job-123", RequestID: "req-abc", Status: "completed"}
	data, err := json.Marshal(update)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)
}

func TestConsumeAcksTaskOnHandlerSuccess(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task := Task{Stage: "assemble", JobID: "job-1"}
	require.NoError(t, b.Enqueue(ctx, QueueCPU, task))

	handled := make(chan struct{}, 1)
	go b.Consume(ctx, QueueCPU, 0, func(ctx context.Context, got Task) error {
		assert.Equal(t, task.JobID, got.JobID)
		handled <- struct{}{}
		return nil
	})

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	require.Eventually(t, func() bool {
		n, err := b.rdb.LLen(ctx, processingList(QueueCPU, 0)).Result()
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond, "processing list should be empty after ack")

	_, err := b.rdb.Get(ctx, claimedAtKey(processingList(QueueCPU, 0))).Result()
	assert.True(t, errors.Is(err, redis.Nil), "claim timestamp should be cleared after ack")
}

func TestConsumeRequeuesTaskOnHandlerError(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task := Task{Stage: "transcribe", JobID: "job-2"}
	require.NoError(t, b.Enqueue(ctx, QueueGPU, task))

	attempts := make(chan struct{}, 1)
	go b.Consume(ctx, QueueGPU, 0, func(ctx context.Context, got Task) error {
		select {
		case attempts <- struct{}{}:
		default:
		}
		return errors.New("asr engine unavailable")
	})

	select {
	case <-attempts:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	require.Eventually(t, func() bool {
		n, err := b.rdb.LLen(ctx, QueueGPU).Result()
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond, "failed task should be pushed back onto the main queue")

	require.Eventually(t, func() bool {
		n, err := b.rdb.LLen(ctx, processingList(QueueGPU, 0)).Result()
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond, "processing list should be cleared after requeue")
}

func TestReclaimOrphanedRequeuesStaleClaims(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	processing := processingList(QueueCPU, 0)
	task := Task{Stage: "assemble", JobID: "job-3"}
	data, err := json.Marshal(task)
	require.NoError(t, err)
	require.NoError(t, b.rdb.LPush(ctx, processing, data).Err())

	staleClaim := time.Now().Add(-claimStaleAfter - time.Minute).Unix()
	require.NoError(t, b.rdb.Set(ctx, claimedAtKey(processing), staleClaim, 0).Err())

	n, err := b.ReclaimOrphaned(ctx, QueueCPU, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	depth, err := b.QueueDepth(ctx, QueueCPU)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	remaining, err := b.rdb.LLen(ctx, processing).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	_, err = b.rdb.Get(ctx, claimedAtKey(processing)).Result()
	assert.True(t, errors.Is(err, redis.Nil), "claim timestamp should be cleared after reclaim")
}

func TestReclaimOrphanedLeavesFreshClaimsAlone(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	processing := processingList(QueueGPU, 0)
	task := Task{Stage: "diarize", JobID: "job-4"}
	data, err := json.Marshal(task)
	require.NoError(t, err)
	require.NoError(t, b.rdb.LPush(ctx, processing, data).Err())
	require.NoError(t, b.rdb.Set(ctx, claimedAtKey(processing), time.Now().Unix(), 0).Err())

	n, err := b.ReclaimOrphaned(ctx, QueueGPU, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a recently claimed task is still in flight and must not be reclaimed")

	remaining, err := b.rdb.LLen(ctx, processing).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}
