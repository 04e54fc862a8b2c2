// Package assembler implements the Assembler Worker (spec §4.2): it
// consumes "assemble" tasks, concatenates a job's uploaded chunks into one
// normalized recording, and hands the job off to transcription.
package assembler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/audio"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"
)

// Worker assembles chunk uploads into one audio file per job.
type Worker struct {
	jobs            repository.JobRepository
	broker          *broker.Broker
	assembler       *audio.Assembler
	sharedAudioPath string
}

func New(jobs repository.JobRepository, b *broker.Broker, asm *audio.Assembler, sharedAudioPath string) *Worker {
	return &Worker{jobs: jobs, broker: b, assembler: asm, sharedAudioPath: sharedAudioPath}
}

// Handle processes one "assemble" task (spec §4.2). On success it removes
// the chunk files, advances the job to transcribing, publishes an update,
// and enqueues transcription. On failure it marks the job failed.
//
// Broker delivery is at-least-once (spec §9): a task can be redelivered
// after a worker crash or a reclaimed processing entry even though a prior
// run already finished it. If the job has already moved past assembling,
// that means a previous run already completed assembly and enqueued
// transcription, so this redelivery is a no-op rather than a duplicate
// re-assemble and a duplicate transcribe enqueue.
func (w *Worker) Handle(ctx context.Context, task broker.Task) error {
	job, err := w.jobs.FindByID(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("assembler: job %s not found: %w", task.JobID, err)
	}

	if job.Status.Rank() > models.StatusAssembling.Rank() {
		logger.Info("assembler: job already past assembling, skipping redelivered task", "job_id", job.ID, "status", string(job.Status))
		return nil
	}

	start := time.Now()
	logger.JobStarted("assembly", job.ID)

	if err := w.assemble(ctx, job); err != nil {
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			logger.Error("assembler: failed to mark job failed", "job_id", job.ID, "error", markErr.Error())
		}
		logger.JobFailed("assembly", job.ID, time.Since(start), err)
		w.publish(ctx, job, "failed", err.Error())
		return err
	}

	if err := w.jobs.UpdateStatus(ctx, job.ID, models.StatusTranscribing); err != nil {
		return fmt.Errorf("assembler: advance job %s to transcribing: %w", job.ID, err)
	}
	logger.JobCompleted("assembly", job.ID, time.Since(start))
	w.publish(ctx, job, string(models.StatusTranscribing), "")

	audioPath := filepath.Join(w.jobDir(job), stemFullWav(job.OriginalFilename))
	if err := w.broker.Enqueue(ctx, broker.QueueGPU, broker.Task{
		Stage:    "transcribe",
		JobID:    job.ID,
		Language: job.ActiveLanguage,
		Payload:  mustPayload(audioPath),
	}); err != nil {
		return fmt.Errorf("assembler: enqueue transcription for %s: %w", job.ID, err)
	}
	return nil
}

func (w *Worker) assemble(ctx context.Context, job *models.Job) error {
	dir := w.jobDir(job)
	output := filepath.Join(dir, stemFullWav(job.OriginalFilename))

	chunks, err := audio.ListChunksSorted(dir)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		if _, statErr := os.Stat(output); statErr == nil {
			// A prior run already concatenated and removed the chunks; this
			// task was redelivered after a crash between the concatenation
			// and the status advance, not a genuine missing-input failure.
			logger.Info("assembler: output already assembled, treating redelivered task as no-op", "job_id", job.ID)
			return nil
		}
		return fmt.Errorf("no chunks found in %s", dir)
	}

	if err := w.assembler.Concatenate(ctx, chunks, output); err != nil {
		return fmt.Errorf("concatenate: %w", err)
	}

	for _, chunk := range chunks {
		if err := os.Remove(chunk); err != nil {
			logger.Warn("assembler: failed to remove chunk after assembly", "chunk", chunk, "error", err.Error())
		}
	}
	return nil
}

func (w *Worker) jobDir(job *models.Job) string {
	return filepath.Join(w.sharedAudioPath, job.ChunkDir())
}

func stemFullWav(originalFilename string) string {
	ext := filepath.Ext(originalFilename)
	stem := originalFilename[:len(originalFilename)-len(ext)]
	return stem + "_full.wav"
}

func (w *Worker) publish(ctx context.Context, job *models.Job, status, errMsg string) {
	if err := w.broker.PublishStatus(ctx, broker.StatusUpdate{
		JobID: job.ID, RequestID: job.RequestID, Status: status, Error: errMsg,
	}); err != nil {
		logger.Error("assembler: publish status failed", "job_id", job.ID, "error", err.Error())
	}
}

func mustPayload(audioPath string) []byte {
	return []byte(fmt.Sprintf(`{"audio_path":%q}`, audioPath))
}
