// Package broker is the durable task queue and status fan-out backbone
// shared by the Job Controller and the pipeline workers (spec §2, §6).
//
// The teacher's internal/queue package ran an in-process channel-backed
// worker pool with a DB-polling scanner and a manual autoscaler — fine for
// a single-process server but it can't survive a worker restart or run the
// GPU and CPU stages on separate machines. This package keeps the same
// worker-loop shape (blocking pop, context-cancellable shutdown, structured
// logging per task) but grounds the actual queue and status-broadcast on
// Redis (github.com/redis/go-redis/v9), the way EasterCompany-dex-discord-service
// uses Redis lists and pub/sub as its job backbone. Two named lists,
// gpu_tasks and cpu_tasks, replace the in-memory channel; BRPOPLPUSH gives
// workers the same blocking-pull semantics the teacher's worker() got from
// a channel receive, but durable across restarts and worker crashes (spec
// §9, §101, §227, §269: delivery is at-least-once, and a task only leaves
// the system once a worker acknowledges it — see Consume's reliable-queue
// pattern below). A single pub/sub topic, job_updates, replaces the SSE
// broadcaster's internal fan-out channel as the cross-process notification
// path consumed by internal/livebus.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Queue names. The assemble, transcribe and diarize tasks are all enqueued
// on gpu_tasks; cpu_tasks is a second list that cmd/worker also consumes.
const (
	QueueGPU = "gpu_tasks"
	QueueCPU = "cpu_tasks"

	topicJobUpdates = "job_updates"

	// popTimeout bounds each BRPOPLPUSH call so ctx cancellation is noticed
	// promptly instead of blocking indefinitely on an empty queue.
	popTimeout = 5 * time.Second

	// claimStaleAfter bounds how long a task may sit in a processing list
	// before ReclaimOrphaned treats its worker as dead and requeues it. Set
	// well above the slowest single-task pipeline stage (diarization can
	// run minutes on CPU-bound deployments) so a live worker's in-flight
	// task is never requeued out from under it.
	claimStaleAfter = 30 * time.Minute
)

// processingList is the reliable-queue list a task is moved into atomically
// when a worker claims it, so a crash between claim and ack leaves the task
// visible on Redis rather than gone. One processing list per worker slot:
// workerID uniquely identifies the slot within queue's consumer pool, so
// ReclaimOrphaned can distinguish one worker's abandoned claim from
// another's in-flight one.
func processingList(queue string, workerID int) string {
	return fmt.Sprintf("%s:processing:%d", queue, workerID)
}

// claimedAtKey holds the unix timestamp a worker slot last claimed a task,
// so ReclaimOrphaned can tell an abandoned claim from one still in flight
// without depending on a Redis server introspection command.
func claimedAtKey(processing string) string {
	return processing + ":claimed_at"
}

// Task is the envelope pushed onto a Redis list. Stage identifies which
// pipeline worker should claim it; JobID and Language are carried on every
// task since nearly every stage needs both to load its row.
type Task struct {
	Stage    string          `json:"stage"`
	JobID    string          `json:"job_id"`
	Language string          `json:"language,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// StatusUpdate is published to job_updates whenever a job's lifecycle state
// changes, and is what internal/livebus fans out to WebSocket subscribers.
// Payload carries stage-specific extras (e.g. the Transcription Worker's
// sentence-level view) alongside the bare status transition.
type StatusUpdate struct {
	JobID     string          `json:"job_id"`
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Broker wraps a redis.Client with the queue and pub/sub operations the
// core depends on.
type Broker struct {
	rdb *redis.Client
}

// New connects to Redis at addr (host:port) and verifies connectivity.
func New(ctx context.Context, addr, password string, db int) (*Broker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broker: connect to redis at %s: %w", addr, err)
	}
	return &Broker{rdb: rdb}, nil
}

// Close releases the underlying Redis connection pool.
func (b *Broker) Close() error {
	return b.rdb.Close()
}

// Enqueue pushes task onto queue (QueueGPU or QueueCPU).
func (b *Broker) Enqueue(ctx context.Context, queue string, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("broker: marshal task: %w", err)
	}
	if err := b.rdb.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("broker: enqueue to %s: %w", queue, err)
	}
	return nil
}

// Handler processes one task pulled off a queue. A returned error leaves
// the task queued for redelivery (see Consume); the pipeline stages are
// also expected to mark the job failed themselves on a terminal error
// (§4's "failed is reachable from every non-terminal state") so a
// redelivered task after that finds the job already failed and exits
// quickly rather than retrying indefinitely.
type Handler func(ctx context.Context, task Task) error

// Consume blocks popping tasks from queue and invoking handler for each,
// until ctx is cancelled. It is meant to be run in its own goroutine, one
// per worker slot — callers wanting N concurrent workers on the same queue
// start N goroutines calling Consume with distinct workerID values,
// mirroring the teacher's fixed-size worker pool but with Redis
// arbitrating which worker gets which task instead of a shared Go channel.
//
// Delivery is reliable, not fire-and-forget BRPOP: BRPOPLPUSH atomically
// moves the claimed task from queue into this worker slot's processing
// list, so a crash between the claim and completion leaves the task
// sitting in Redis rather than lost. On handler success the task is
// removed from the processing list. On handler error the task is pushed
// back onto queue for another worker to pick up and then removed from the
// processing list, rather than dropped — satisfying the at-least-once
// contract a task handler must already tolerate (redelivery after a
// partial run). A task that is never acked because its worker crashed
// outright is recovered later by ReclaimOrphaned, run periodically
// alongside Consume.
func (b *Broker) Consume(ctx context.Context, queue string, workerID int, handler Handler) {
	log := logger.Get()
	processing := processingList(queue, workerID)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := b.rdb.BRPopLPush(ctx, queue, processing, popTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // timeout, no task available
			}
			if ctx.Err() != nil {
				return
			}
			log.Error("broker: BRPOPLPUSH failed", "queue", queue, "worker_id", workerID, "error", err.Error())
			time.Sleep(time.Second)
			continue
		}
		if err := b.rdb.Set(ctx, claimedAtKey(processing), strconv.FormatInt(time.Now().Unix(), 10), 0).Err(); err != nil {
			log.Error("broker: failed to record claim time", "processing_list", processing, "error", err.Error())
		}

		var task Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			log.Error("broker: malformed task dropped", "queue", queue, "error", err.Error())
			b.ack(ctx, processing, raw)
			continue
		}

		logger.WorkerOperation(workerID, task.JobID, "claim", "stage", task.Stage, "queue", queue)
		start := time.Now()
		if err := handler(ctx, task); err != nil {
			log.Error("broker: task handler failed, requeueing",
				"queue", queue, "worker_id", workerID, "job_id", task.JobID,
				"stage", task.Stage, "error", err.Error())
			if pushErr := b.rdb.LPush(ctx, queue, raw).Err(); pushErr != nil {
				log.Error("broker: requeue failed, task left in processing list for ReclaimOrphaned",
					"queue", queue, "worker_id", workerID, "job_id", task.JobID, "error", pushErr.Error())
				continue
			}
			b.ack(ctx, processing, raw)
			continue
		}
		b.ack(ctx, processing, raw)
		logger.Performance("broker.task", time.Since(start), "queue", queue, "job_id", task.JobID, "stage", task.Stage)
	}
}

// ack removes one occurrence of raw from a worker's processing list and
// clears its claim timestamp, marking the task as durably handled (either
// completed or requeued).
func (b *Broker) ack(ctx context.Context, processing string, raw string) {
	if err := b.rdb.LRem(ctx, processing, 1, raw).Err(); err != nil {
		logger.Error("broker: failed to ack processing entry", "processing_list", processing, "error", err.Error())
	}
	if err := b.rdb.Del(ctx, claimedAtKey(processing)).Err(); err != nil {
		logger.Error("broker: failed to clear claim timestamp", "processing_list", processing, "error", err.Error())
	}
}

// ReclaimOrphaned scans queue's processing lists across all worker slots
// and requeues any task whose claim timestamp is older than
// claimStaleAfter, the signal that the worker holding it crashed before
// acking (a live worker clears its claim timestamp on every ack, so an
// in-flight task's timestamp is always recent). It is safe to call
// concurrently with Consume and is meant to run on a periodic ticker from
// cmd/worker, independent of any single worker slot's lifetime. Returns the
// number of tasks requeued.
func (b *Broker) ReclaimOrphaned(ctx context.Context, queue string, maxWorkerSlots int) (int, error) {
	reclaimed := 0
	for workerID := 0; workerID < maxWorkerSlots; workerID++ {
		processing := processingList(queue, workerID)
		claimedAt := claimedAtKey(processing)

		val, err := b.rdb.Get(ctx, claimedAt).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // nothing claimed in this slot
			}
			return reclaimed, fmt.Errorf("broker: read claim time for %s: %w", processing, err)
		}
		unixTS, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			logger.Error("broker: malformed claim timestamp, leaving slot alone", "processing_list", processing, "value", val)
			continue
		}
		if time.Since(time.Unix(unixTS, 0)) < claimStaleAfter {
			continue
		}

		for {
			raw, err := b.rdb.RPopLPush(ctx, processing, queue).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return reclaimed, fmt.Errorf("broker: reclaim from %s: %w", processing, err)
			}
			logger.Warn("broker: reclaimed orphaned task", "processing_list", processing, "task", raw)
			reclaimed++
		}
		if err := b.rdb.Del(ctx, claimedAt).Err(); err != nil {
			logger.Error("broker: failed to clear claim timestamp after reclaim", "processing_list", processing, "error", err.Error())
		}
	}
	return reclaimed, nil
}

// PublishStatus publishes a job status change to the job_updates topic.
func (b *Broker) PublishStatus(ctx context.Context, update StatusUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("broker: marshal status update: %w", err)
	}
	if err := b.rdb.Publish(ctx, topicJobUpdates, data).Err(); err != nil {
		return fmt.Errorf("broker: publish status update: %w", err)
	}
	return nil
}

// SubscribeStatus subscribes to job_updates and invokes onUpdate for each
// message received until ctx is cancelled. internal/livebus uses exactly
// one long-lived SubscribeStatus call and fans each update out to every
// registered WebSocket client itself, rather than each client holding its
// own Redis subscription.
func (b *Broker) SubscribeStatus(ctx context.Context, onUpdate func(StatusUpdate)) error {
	sub := b.rdb.Subscribe(ctx, topicJobUpdates)
	defer sub.Close()

	ch := sub.Channel()
	log := logger.Get()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var update StatusUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				log.Error("broker: malformed status update dropped", "error", err.Error())
				continue
			}
			onUpdate(update)
		}
	}
}

// QueueDepth reports the number of pending tasks on queue, used by the
// admin CLI's status command.
func (b *Broker) QueueDepth(ctx context.Context, queue string) (int64, error) {
	n, err := b.rdb.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("broker: queue depth for %s: %w", queue, err)
	}
	return n, nil
}
