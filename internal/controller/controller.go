// Package controller implements the Job Controller (spec §4.1): the
// read-check-write transactions that create and advance Jobs, accept
// chunks, serve status, and authorize every call by owner identity. HTTP
// adapters (internal/httpapi) drive these methods (the admin CLI in
// internal/meetingctl works on the repositories directly);
// per spec §9 "State checks are the gate, not the API path", every
// invariant lives here rather than in a route guard.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/authn"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/config"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/docx"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/errs"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/llm"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/pipeline/summary"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"

	"gorm.io/gorm"
)

// Controller owns every repository and collaborator the Job operations
// need. It holds no per-request state; every method takes the identifying
// parameters it needs and is safe for concurrent use.
type Controller struct {
	cfg *config.Config

	users       *authn.Users
	jobs        repository.JobRepository
	transcripts repository.TranscriptRepository
	diarized    repository.DiarizedTranscriptRepository
	summaries   repository.SummaryRepository
	chats       repository.ChatRepository

	broker *broker.Broker
	llm    llm.Service
	docx   docx.Renderer
}

// New builds a Controller from its dependencies.
func New(cfg *config.Config, db *gorm.DB, b *broker.Broker, llmSvc llm.Service, renderer docx.Renderer) *Controller {
	return &Controller{
		cfg:         cfg,
		users:       authn.NewUsers(db),
		jobs:        repository.NewJobRepository(db),
		transcripts: repository.NewTranscriptRepository(db),
		diarized:    repository.NewDiarizedTranscriptRepository(db),
		summaries:   repository.NewSummaryRepository(db),
		chats:       repository.NewChatRepository(db),
		broker:      b,
		llm:         llmSvc,
		docx:        renderer,
	}
}

// jobDir returns the per-job chunk/assembled-audio directory.
func (c *Controller) jobDir(job *models.Job) string {
	return filepath.Join(c.cfg.SharedAudioPath, job.ChunkDir())
}

// AssembledAudioPath returns where the Assembler writes (and downstream
// stages read) the concatenated, normalized recording.
func AssembledAudioPath(jobDir, originalFilename string) string {
	ext := filepath.Ext(originalFilename)
	stem := originalFilename[:len(originalFilename)-len(ext)]
	return filepath.Join(jobDir, stem+"_full.wav")
}

func (c *Controller) publish(ctx context.Context, job *models.Job) {
	env, err := c.envelopeFor(ctx, job)
	if err != nil {
		logger.Error("controller: build envelope for publish failed", "job_id", job.ID, "error", err.Error())
		return
	}
	if err := c.broker.PublishStatus(ctx, broker.StatusUpdate{
		JobID:     job.ID,
		RequestID: job.RequestID,
		Status:    string(job.Status),
		Error:     derefOrEmpty(job.ErrorMessage),
	}); err != nil {
		logger.Error("controller: publish status failed", "job_id", job.ID, "error", err.Error())
	}
	_ = env // the full envelope is served on demand via GetStatus; the pub/sub
	// payload carries the minimal delta per spec §6 ("payload: status
	// envelope or partial"), consumers re-fetch the full state if needed.
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (c *Controller) requireOwner(ctx context.Context, job *models.Job, username string) error {
	user, err := c.users.GetOrCreate(ctx, username)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "resolve user")
	}
	if job.OwnerID != user.ID {
		return errs.New(errs.Forbidden, "caller is not the job owner")
	}
	return nil
}

// Start creates a Job with status uploading and provisions its chunk
// directory (spec §4.1 "start").
func (c *Controller) Start(ctx context.Context, requestID, username, language, filename string, meetingName, meetingType, meetingHost *string, members []string) (*models.Job, error) {
	if requestID == "" || username == "" || language == "" || filename == "" {
		return nil, errs.New(errs.InvalidInput, "requestId, username, language, and filename are required")
	}

	if _, err := c.jobs.FindByRequestID(ctx, requestID); err == nil {
		return nil, errs.New(errs.Conflict, "request_id %q already exists", requestID)
	}

	user, err := c.users.GetOrCreate(ctx, username)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "resolve user")
	}

	membersJSON, err := json.Marshal(members)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "malformed meetingMembers")
	}

	job := &models.Job{
		RequestID:        requestID,
		OwnerID:          user.ID,
		OriginalFilename: filename,
		ActiveLanguage:   language,
		Status:           models.StatusUploading,
		MeetingName:      meetingName,
		MeetingType:      meetingType,
		MeetingHost:      meetingHost,
		MeetingMembers:   string(membersJSON),
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "create job")
	}

	if err := os.MkdirAll(c.jobDir(job), 0755); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "provision job directory")
	}

	return job, nil
}

// UploadChunk persists one chunk and, on the last chunk, advances the job
// to assembling and enqueues the assemble task (spec §4.1 "uploadChunk").
func (c *Controller) UploadChunk(ctx context.Context, requestID string, chunkBytes []byte, chunkFilename string, isLast bool) error {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if job.Status != models.StatusUploading {
		return errs.New(errs.Conflict, "job is not accepting chunks in status %q", job.Status)
	}

	path := filepath.Join(c.jobDir(job), chunkFilename)
	if err := os.WriteFile(path, chunkBytes, 0644); err != nil {
		return errs.Wrap(errs.Internal, err, "write chunk")
	}

	if job.UploadStartedAt == nil {
		now := time.Now().UTC()
		if err := c.jobs.Update(ctx, setField(job, func(j *models.Job) { j.UploadStartedAt = &now })); err != nil {
			return errs.Wrap(errs.Internal, err, "record upload start")
		}
	}

	if !isLast {
		return nil
	}

	now := time.Now().UTC()
	job.UploadFinishedAt = &now
	job.Status = models.StatusAssembling
	if err := c.jobs.Update(ctx, job); err != nil {
		return errs.Wrap(errs.Internal, err, "advance job to assembling")
	}

	if err := c.broker.Enqueue(ctx, broker.QueueGPU, broker.Task{Stage: "assemble", JobID: job.ID}); err != nil {
		return errs.Wrap(errs.Internal, err, "enqueue assemble task")
	}
	c.publish(ctx, job)
	return nil
}

func setField(job *models.Job, mutate func(*models.Job)) *models.Job {
	mutate(job)
	return job
}

// TriggerDiarize requires transcription_complete and enqueues a diarize
// task (spec §4.1 "triggerDiarize").
func (c *Controller) TriggerDiarize(ctx context.Context, requestID, username string) error {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return err
	}
	if job.Status != models.StatusTranscriptionComplete {
		return errs.New(errs.InvalidState, "diarize requires transcription_complete, got %q", job.Status)
	}

	audioPath := AssembledAudioPath(c.jobDir(job), job.OriginalFilename)
	if _, err := os.Stat(audioPath); err != nil {
		return errs.New(errs.NotFound, "assembled audio missing for job %q", requestID)
	}

	job.Status = models.StatusDiarizing
	if err := c.jobs.Update(ctx, job); err != nil {
		return errs.Wrap(errs.Internal, err, "advance job to diarizing")
	}
	if err := c.broker.Enqueue(ctx, broker.QueueGPU, broker.Task{
		Stage:   "diarize",
		JobID:   job.ID,
		Payload: mustJSON(map[string]string{"audio_path": audioPath}),
	}); err != nil {
		return errs.Wrap(errs.Internal, err, "enqueue diarize task")
	}
	c.publish(ctx, job)
	return nil
}

// ChangeLanguage switches the active language, reusing a cached Transcript
// when present (spec §4.1 "changeLanguage").
func (c *Controller) ChangeLanguage(ctx context.Context, requestID, username, newLanguage string) error {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return err
	}
	if newLanguage == job.ActiveLanguage {
		return nil // spec §8: "changeLanguage to the current language returns immediately without enqueuing work"
	}

	_, findErr := c.transcripts.FindByJobAndLanguage(ctx, job.ID, newLanguage)
	hasExisting := findErr == nil

	job.ActiveLanguage = newLanguage

	if delErr := c.diarized.DeleteByJob(ctx, job.ID); delErr != nil {
		return errs.Wrap(errs.Internal, delErr, "clear diarized transcript on language change")
	}
	if hasExisting {
		job.Status = models.StatusTranscriptionComplete
	} else {
		job.Status = models.StatusTranscribing
	}

	if err := c.jobs.Update(ctx, job); err != nil {
		return errs.Wrap(errs.Internal, err, "update job language")
	}

	if !hasExisting {
		audioPath := AssembledAudioPath(c.jobDir(job), job.OriginalFilename)
		if err := c.broker.Enqueue(ctx, broker.QueueGPU, broker.Task{
			Stage:    "transcribe",
			JobID:    job.ID,
			Language: newLanguage,
			Payload:  mustJSON(map[string]string{"audio_path": audioPath}),
		}); err != nil {
			return errs.Wrap(errs.Internal, err, "enqueue transcription task")
		}
	}

	c.publish(ctx, job)
	return nil
}

// UpdatePlainTranscript replaces the active-language Transcript and
// cascades the invalidation spec §4.1 requires ("updatePlainTranscript").
func (c *Controller) UpdatePlainTranscript(ctx context.Context, requestID, username string, segments []models.WordSegment) error {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return err
	}

	transcript, err := c.transcripts.FindByJobAndLanguage(ctx, job.ID, job.ActiveLanguage)
	if err != nil {
		return errs.New(errs.NotFound, "no transcript exists for active language %q", job.ActiveLanguage)
	}

	wordsJSON, err := json.Marshal(segments)
	if err != nil {
		return errs.Wrap(errs.InvalidInput, err, "malformed segments")
	}

	if err := c.transcripts.ReplaceEdited(ctx, transcript.ID, string(wordsJSON)); err != nil {
		return errs.Wrap(errs.Internal, err, "replace transcript")
	}

	job.Status = models.StatusTranscriptionComplete
	if err := c.jobs.Update(ctx, job); err != nil {
		return errs.Wrap(errs.Internal, err, "revert job status")
	}

	c.publish(ctx, job)
	return nil
}

// Cancel deletes a Job and its chunk directory; only permitted before
// processing begins (spec §4.1 "cancel").
func (c *Controller) Cancel(ctx context.Context, requestID, username string) error {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return err
	}
	if job.Status != models.StatusUploading && job.Status != models.StatusAssembling {
		return errs.New(errs.InvalidState, "cancel not permitted in status %q", job.Status)
	}

	dir := c.jobDir(job)
	if err := c.jobs.DeleteCascade(ctx, job.ID); err != nil {
		return errs.Wrap(errs.Internal, err, "delete job")
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("controller: failed to remove job directory on cancel", "job_id", job.ID, "error", err.Error())
	}

	if err := c.broker.PublishStatus(ctx, broker.StatusUpdate{
		JobID: job.ID, RequestID: job.RequestID, Status: "cancelled",
	}); err != nil {
		logger.Error("controller: publish cancel failed", "job_id", job.ID, "error", err.Error())
	}
	return nil
}

// UpdateInfo partially updates meeting metadata (spec §4.1 "updateInfo").
func (c *Controller) UpdateInfo(ctx context.Context, requestID, username string, meetingName, meetingType, meetingHost *string) (*models.Job, error) {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return nil, err
	}

	if meetingName != nil {
		job.MeetingName = meetingName
	}
	if meetingType != nil {
		job.MeetingType = meetingType
	}
	if meetingHost != nil {
		job.MeetingHost = meetingHost
	}
	if err := c.jobs.Update(ctx, job); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "update job metadata")
	}

	c.publish(ctx, job)
	return job, nil
}

// GetStatus returns the current status envelope for a job (spec §4.1
// "getStatus").
func (c *Controller) GetStatus(ctx context.Context, requestID, username string) (*StatusEnvelope, error) {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return nil, err
	}

	env, err := c.envelopeFor(ctx, job)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "build status envelope")
	}
	return &env, nil
}

func (c *Controller) envelopeFor(ctx context.Context, job *models.Job) (StatusEnvelope, error) {
	var transcript *models.Transcript
	if t, err := c.transcripts.FindByJobAndLanguage(ctx, job.ID, job.ActiveLanguage); err == nil {
		transcript = t
	}

	var diarized *models.DiarizedTranscript
	if d, err := c.diarized.FindByJob(ctx, job.ID); err == nil {
		diarized = d
	}

	return buildEnvelope(job, transcript, diarized)
}

// JobByRequestID is a thin lookup by request ID, without an owner check.
func (c *Controller) JobByRequestID(ctx context.Context, requestID string) (*models.Job, error) {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, errs.New(errs.NotFound, "job %q not found", requestID)
	}
	return job, nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("controller: marshal task payload: %v", err))
	}
	return data
}

// Summary generates (or regenerates) the summary artifact for one
// (job, summaryType) pair (spec §4.1 "summary"). A "speaker" summary
// requires a DiarizedTranscript; every other type requires an
// active-language Transcript.
func (c *Controller) Summary(ctx context.Context, requestID, username string, summaryType models.SummaryType) (*models.Summary, error) {
	if !summaryType.Valid() {
		return nil, errs.New(errs.InvalidInput, "unknown summary type %q", summaryType)
	}

	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return nil, err
	}

	content, err := c.generateSummaryContent(ctx, job, summaryType)
	if err != nil {
		return nil, err
	}

	s := &models.Summary{JobID: job.ID, SummaryType: summaryType, Content: content}
	if err := c.summaries.Upsert(ctx, s); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "store summary")
	}
	return s, nil
}

// generateSummaryContent validates prerequisites, assembles source text,
// and calls the LLM collaborator. Used by Summary.
func (c *Controller) generateSummaryContent(ctx context.Context, job *models.Job, summaryType models.SummaryType) (string, error) {
	var plainText, diarizedText string

	if summaryType == models.SummarySpeaker {
		d, err := c.diarized.FindByJob(ctx, job.ID)
		if err != nil {
			return "", errs.New(errs.InvalidState, "speaker summary requires a diarized transcript")
		}
		var segments []models.SpeakerSegment
		if err := json.Unmarshal([]byte(d.SegmentsJSON), &segments); err != nil {
			return "", errs.Wrap(errs.Internal, err, "decode diarized segments")
		}
		diarizedText = summary.DiarizedText(segments)
	} else {
		t, err := c.transcripts.FindByJobAndLanguage(ctx, job.ID, job.ActiveLanguage)
		if err != nil {
			return "", errs.New(errs.InvalidState, "summary requires a completed transcript for language %q", job.ActiveLanguage)
		}
		var words []models.WordSegment
		if err := json.Unmarshal([]byte(t.WordsJSON), &words); err != nil {
			return "", errs.Wrap(errs.Internal, err, "decode transcript words")
		}
		plainText = summary.PlainText(words)
	}

	src := summary.SourceText(summaryType, plainText, diarizedText, job.UploadStartedAt, job.UploadFinishedAt, c.cfg.Location())

	content, err := summary.Generate(ctx, c.llm, c.cfg.LLMModel, summaryType, src)
	if err != nil {
		return "", errs.Upstream("llm", err)
	}
	return content, nil
}

// DownloadAudio returns the path to the job's assembled recording (spec §6
// "GET /meeting/{request_id}/download/audio").
func (c *Controller) DownloadAudio(ctx context.Context, requestID, username string) (string, error) {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return "", errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return "", err
	}
	if job.Status == models.StatusUploading || job.Status == models.StatusAssembling {
		return "", errs.New(errs.InvalidState, "audio not yet assembled for job %q", requestID)
	}
	path := AssembledAudioPath(c.jobDir(job), job.OriginalFilename)
	if _, err := os.Stat(path); err != nil {
		return "", errs.New(errs.NotFound, "assembled audio missing for job %q", requestID)
	}
	return path, nil
}

// DownloadDocument renders a summary type to DOCX via the docx Renderer
// (spec §6 "GET /meeting/{request_id}/download/document").
func (c *Controller) DownloadDocument(ctx context.Context, requestID, username string, summaryType models.SummaryType) ([]byte, error) {
	job, err := c.jobs.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, errs.New(errs.NotFound, "job %q not found", requestID)
	}
	if err := c.requireOwner(ctx, job, username); err != nil {
		return nil, err
	}

	s, err := c.summaries.FindByJobAndType(ctx, job.ID, summaryType)
	if err != nil {
		return nil, errs.New(errs.NotFound, "no %q summary generated yet for job %q", summaryType, requestID)
	}

	header, _ := summary.BuildContextHeader(job.UploadStartedAt, job.UploadFinishedAt, c.cfg.Location())
	docCtx := map[string]any{
		"meeting_name": derefOrEmpty(job.MeetingName),
		"meeting_type": derefOrEmpty(job.MeetingType),
		"meeting_host": derefOrEmpty(job.MeetingHost),
		"day":          header.Day,
		"month":        header.Month,
		"year":         header.Year,
		"start_time":   header.StartTime,
		"end_time":     header.EndTime,
	}

	data, err := c.docx.Render(ctx, summaryType, s.Content, docCtx)
	if err != nil {
		return nil, errs.Upstream("docx", err)
	}
	return data, nil
}
