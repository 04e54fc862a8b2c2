package diarize

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/diarizer"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"
)

// Worker runs the Diarization Worker (spec §4.4): fetch the active-language
// transcript and enrolled profiles, call the external diarizer, map
// speakers onto words, and persist the result.
type Worker struct {
	jobs        repository.JobRepository
	transcripts repository.TranscriptRepository
	diarized    repository.DiarizedTranscriptRepository
	broker      *broker.Broker
	engine      diarizer.Engine
	profiles    diarizer.ProfileSource
	params      diarizer.Params
}

func New(
	jobs repository.JobRepository,
	transcripts repository.TranscriptRepository,
	diarized repository.DiarizedTranscriptRepository,
	b *broker.Broker,
	engine diarizer.Engine,
	profiles diarizer.ProfileSource,
	params diarizer.Params,
) *Worker {
	return &Worker{
		jobs: jobs, transcripts: transcripts, diarized: diarized,
		broker: b, engine: engine, profiles: profiles, params: params,
	}
}

type taskPayload struct {
	AudioPath string `json:"audio_path"`
}

// Handle processes one "diarize" task (spec §4.4).
func (w *Worker) Handle(ctx context.Context, task broker.Task) error {
	job, err := w.jobs.FindByID(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("diarize: job %s not found: %w", task.JobID, err)
	}

	start := time.Now()
	logger.JobStarted("diarization", job.ID)

	if err := w.run(ctx, job, task.Payload); err != nil {
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			logger.Error("diarize: failed to mark job failed", "job_id", job.ID, "error", markErr.Error())
		}
		logger.JobFailed("diarization", job.ID, time.Since(start), err)
		w.publish(ctx, job, "failed", err.Error())
		return err
	}

	if err := w.jobs.UpdateStatus(ctx, job.ID, models.StatusCompleted); err != nil {
		return fmt.Errorf("diarize: advance job %s to completed: %w", job.ID, err)
	}
	logger.JobCompleted("diarization", job.ID, time.Since(start))
	w.publish(ctx, job, string(models.StatusCompleted), "")
	return nil
}

func (w *Worker) run(ctx context.Context, job *models.Job, rawPayload json.RawMessage) error {
	var payload taskPayload
	if len(rawPayload) > 0 {
		if err := json.Unmarshal(rawPayload, &payload); err != nil {
			return fmt.Errorf("malformed task payload: %w", err)
		}
	}

	transcript, err := w.transcripts.FindByJobAndLanguage(ctx, job.ID, job.ActiveLanguage)
	if err != nil {
		return fmt.Errorf("no transcript for active language %q: %w", job.ActiveLanguage, err)
	}
	var words []models.WordSegment
	if err := json.Unmarshal([]byte(transcript.WordsJSON), &words); err != nil {
		return fmt.Errorf("decode transcript words: %w", err)
	}

	profiles, err := w.profiles.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list speaker profiles: %w", err)
	}

	segments, err := w.engine.Diarize(ctx, payload.AudioPath, profiles, w.params)
	if err != nil {
		return fmt.Errorf("diarizer engine: %w", err)
	}

	speakerSegments := MapSpeakersToWords(segments, words)
	segmentsJSON, err := json.Marshal(speakerSegments)
	if err != nil {
		return fmt.Errorf("marshal speaker segments: %w", err)
	}

	return w.diarized.ReplaceGenerated(ctx, job.ID, string(segmentsJSON))
}

func (w *Worker) publish(ctx context.Context, job *models.Job, status, errMsg string) {
	if err := w.broker.PublishStatus(ctx, broker.StatusUpdate{
		JobID: job.ID, RequestID: job.RequestID, Status: status, Error: errMsg,
	}); err != nil {
		logger.Error("diarize: publish status failed", "job_id", job.ID, "error", err.Error())
	}
}
