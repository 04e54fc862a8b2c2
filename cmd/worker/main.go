// Command worker runs one or more GPU/CPU task-queue consumers (spec §9
// "scheduling model"): each process owns a single GPU or CPU slot and runs
// tasks sequentially on it. All three pipeline stages share the gpu_tasks
// queue (spec §9: "assemble/transcribe/diarize/embedding -> gpu_tasks") and
// are dispatched here by task.Stage.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/asr"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/audio"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/config"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/database"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/diarizer"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/pipeline/assembler"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/pipeline/diarize"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/pipeline/transcribe"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Startup("init", "worker starting")

	// spec §9: gpu_tasks workers use a concurrency of 1, since all three GPU
	// stages (assemble/transcribe/diarize) share one device and model
	// serialization on it requires a single consumer. A deployment that
	// wants more GPU throughput runs more cmd/worker processes, each still
	// bound to GPU_WORKERS=1, not more goroutines inside one process.
	if cfg.GPUWorkers != 1 {
		log.Fatalf("GPU_WORKERS must be 1 (got %d): gpu_tasks requires single-consumer concurrency, run additional cmd/worker processes instead", cfg.GPUWorkers)
	}

	if !cfg.CheckFFmpeg() {
		log.Fatalf("ffmpeg not found at %q; set FFMPEG_PATH", cfg.FFmpegPath)
	}

	if err := database.Initialize(cfg.DatabasePath); err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer database.Close()
	logger.Startup("database", "database ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := broker.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("broker connect failed: %v", err)
	}
	defer b.Close()
	logger.Startup("broker", "broker connected")

	jobs := repository.NewJobRepository(database.DB)
	transcripts := repository.NewTranscriptRepository(database.DB)
	diarized := repository.NewDiarizedTranscriptRepository(database.DB)

	asmWorker := assembler.New(jobs, b, audio.NewAssemblerWithPath(cfg.FFmpegPath), cfg.SharedAudioPath)
	transcribeWorker := transcribe.New(jobs, transcripts, b, asr.NewHTTPEngine(cfg.ASRBaseURL))
	diarizeParams := diarizer.Params{
		WindowSeconds:     cfg.DiarizeWindowSeconds,
		OverlapSeconds:    cfg.DiarizeOverlapSeconds,
		KnownThreshold:    cfg.DiarizeKnownThreshold,
		DistanceThreshold: cfg.DiarizeDistanceThreshold,
		MergeMaxPause:     cfg.DiarizeMergeMaxPause,
		VADEnabled:        cfg.VADEnabled,
	}
	diarizeWorker := diarize.New(jobs, transcripts, diarized, b, diarizer.NewHTTPEngine(cfg.DiarizerBaseURL), &diarizer.FakeProfileSource{}, diarizeParams)

	dispatch := func(ctx context.Context, task broker.Task) error {
		switch task.Stage {
		case "assemble":
			return asmWorker.Handle(ctx, task)
		case "transcribe":
			return transcribeWorker.Handle(ctx, task)
		case "diarize":
			return diarizeWorker.Handle(ctx, task)
		default:
			return fmt.Errorf("unknown task stage %q", task.Stage)
		}
	}

	for i := 0; i < cfg.GPUWorkers; i++ {
		go b.Consume(ctx, broker.QueueGPU, i, dispatch)
	}
	for i := 0; i < cfg.CPUWorkers; i++ {
		go b.Consume(ctx, broker.QueueCPU, i, dispatch)
	}

	go reclaimOrphansPeriodically(ctx, b, broker.QueueGPU, cfg.GPUWorkers)
	go reclaimOrphansPeriodically(ctx, b, broker.QueueCPU, cfg.CPUWorkers)

	logger.Startup("ready", "worker ready", "gpu_workers", cfg.GPUWorkers, "cpu_workers", cfg.CPUWorkers)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("worker shutting down")
	cancel()
}

// reclaimOrphansPeriodically requeues tasks left in a processing list by a
// worker slot that claimed them and then crashed before acking. slots is the
// number of consumer goroutines running against queue, matching the worker
// IDs passed to b.Consume.
func reclaimOrphansPeriodically(ctx context.Context, b *broker.Broker, queue string, slots int) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.ReclaimOrphaned(ctx, queue, slots)
			if err != nil {
				logger.Error("worker: reclaim orphaned tasks failed", "queue", queue, "error", err.Error())
				continue
			}
			if n > 0 {
				logger.Warn("worker: reclaimed orphaned tasks", "queue", queue, "count", n)
			}
		}
	}
}
