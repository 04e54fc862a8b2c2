// Package transcribe implements the Transcription Worker (spec §4.3): it
// calls the external ASR engine, persists the word-level Transcript for a
// language, and publishes the sentence-level view for live UI payloads.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/asr"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"
)

// Worker transcribes the assembled audio for a job into a word-level
// Transcript.
type Worker struct {
	jobs        repository.JobRepository
	transcripts repository.TranscriptRepository
	broker      *broker.Broker
	engine      asr.Engine
}

func New(jobs repository.JobRepository, transcripts repository.TranscriptRepository, b *broker.Broker, engine asr.Engine) *Worker {
	return &Worker{jobs: jobs, transcripts: transcripts, broker: b, engine: engine}
}

type taskPayload struct {
	AudioPath string `json:"audio_path"`
}

// sentenceView is the grouped, sentence-level payload published for live
// UI consumption alongside the persisted word-level Transcript.
type sentenceView struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Handle processes one "transcribe" task (spec §4.3). Idempotent: rerunning
// for the same (job, language) replaces the Transcript.
func (w *Worker) Handle(ctx context.Context, task broker.Task) error {
	job, err := w.jobs.FindByID(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("transcribe: job %s not found: %w", task.JobID, err)
	}

	var payload taskPayload
	if len(task.Payload) > 0 {
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("transcribe: malformed task payload: %w", err)
		}
	}
	language := task.Language
	if language == "" {
		language = job.ActiveLanguage
	}

	start := time.Now()
	logger.JobStarted("transcription", job.ID, "language", language)

	result, err := w.engine.Transcribe(ctx, payload.AudioPath, language)
	if err != nil {
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			logger.Error("transcribe: failed to mark job failed", "job_id", job.ID, "error", markErr.Error())
		}
		logger.JobFailed("transcription", job.ID, time.Since(start), err)
		w.publish(ctx, job, "failed", err.Error(), nil)
		return fmt.Errorf("transcribe: asr engine: %w", err)
	}

	wordsJSON, err := json.Marshal(result.Words)
	if err != nil {
		return fmt.Errorf("transcribe: marshal words: %w", err)
	}

	existing, findErr := w.transcripts.FindByJobAndLanguage(ctx, job.ID, language)
	if findErr == nil {
		if err := w.transcripts.ReplaceGenerated(ctx, existing.ID, string(wordsJSON)); err != nil {
			return fmt.Errorf("transcribe: replace existing transcript: %w", err)
		}
	} else {
		if err := w.transcripts.Create(ctx, &models.Transcript{
			JobID: job.ID, Language: language, WordsJSON: string(wordsJSON),
		}); err != nil {
			return fmt.Errorf("transcribe: create transcript: %w", err)
		}
	}

	if err := w.jobs.UpdateStatus(ctx, job.ID, models.StatusTranscriptionComplete); err != nil {
		return fmt.Errorf("transcribe: advance job %s: %w", job.ID, err)
	}
	logger.JobCompleted("transcription", job.ID, time.Since(start), "language", language)

	sentences := make([]sentenceView, len(result.Sentences))
	for i, s := range result.Sentences {
		sentences[i] = sentenceView{Text: s.Text, Start: s.Start, End: s.End}
	}
	w.publish(ctx, job, string(models.StatusTranscriptionComplete), "", sentences)
	return nil
}

func (w *Worker) publish(ctx context.Context, job *models.Job, status, errMsg string, sentences []sentenceView) {
	update := broker.StatusUpdate{JobID: job.ID, RequestID: job.RequestID, Status: status, Error: errMsg}
	if len(sentences) > 0 {
		if data, err := json.Marshal(map[string]any{"sentences": sentences}); err == nil {
			update.Payload = data
		}
	}
	if err := w.broker.PublishStatus(ctx, update); err != nil {
		logger.Error("transcribe: publish status failed", "job_id", job.ID, "error", err.Error())
	}
}
