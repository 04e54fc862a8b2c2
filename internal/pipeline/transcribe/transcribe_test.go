package transcribe

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/asr"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestWorker(t *testing.T, engine asr.Engine) (*Worker, repository.JobRepository, repository.TranscriptRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Job{}, &models.Transcript{}))

	mr := miniredis.RunT(t)
	b, err := broker.New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	jobs := repository.NewJobRepository(db)
	transcripts := repository.NewTranscriptRepository(db)
	return New(jobs, transcripts, b, engine), jobs, transcripts
}

func TestHandleCreatesTranscriptOnFirstRun(t *testing.T) {
	engine := &asr.Fake{Result: &asr.Result{
		Words:     []asr.Word{{Text: "xin", Start: 0, End: 0.5}, {Text: "chao", Start: 0.5, End: 1}},
		Sentences: []asr.Sentence{{Text: "xin chao", Start: 0, End: 1}},
	}}
	w, jobs, transcripts := newTestWorker(t, engine)
	ctx := context.Background()

	job := &models.Job{RequestID: "req-1", OwnerID: "owner", OriginalFilename: "m.wav", ActiveLanguage: "vi", Status: models.StatusTranscribing}
	require.NoError(t, jobs.Create(ctx, job))

	payload, _ := json.Marshal(map[string]string{"audio_path": "/tmp/m_full.wav"})
	err := w.Handle(ctx, broker.Task{Stage: "transcribe", JobID: job.ID, Language: "vi", Payload: payload})
	require.NoError(t, err)

	updated, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusTranscriptionComplete, updated.Status)

	transcript, err := transcripts.FindByJobAndLanguage(ctx, job.ID, "vi")
	require.NoError(t, err)
	require.Contains(t, transcript.WordsJSON, "xin")
}

func TestHandleIsIdempotentOnRerun(t *testing.T) {
	engine := &asr.Fake{Result: &asr.Result{
		Words: []asr.Word{{Text: "updated", Start: 0, End: 1}},
	}}
	w, jobs, transcripts := newTestWorker(t, engine)
	ctx := context.Background()

	job := &models.Job{RequestID: "req-2", OwnerID: "owner", OriginalFilename: "m.wav", ActiveLanguage: "vi", Status: models.StatusTranscribing}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, transcripts.Create(ctx, &models.Transcript{JobID: job.ID, Language: "vi", WordsJSON: `[{"text":"old"}]`}))

	err := w.Handle(ctx, broker.Task{Stage: "transcribe", JobID: job.ID, Language: "vi"})
	require.NoError(t, err)

	list, err := transcripts.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Contains(t, list[0].WordsJSON, "updated")
}

func TestHandleDoesNotRevertStatusOnRedeliveryAfterJobAdvanced(t *testing.T) {
	engine := &asr.Fake{Result: &asr.Result{
		Words: []asr.Word{{Text: "redelivered", Start: 0, End: 1}},
	}}
	w, jobs, transcripts := newTestWorker(t, engine)
	ctx := context.Background()

	job := &models.Job{RequestID: "req-3", OwnerID: "owner", OriginalFilename: "m.wav", ActiveLanguage: "vi", Status: models.StatusDiarizing}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, transcripts.Create(ctx, &models.Transcript{JobID: job.ID, Language: "vi", WordsJSON: `[{"text":"old"}]`}))

	err := w.Handle(ctx, broker.Task{Stage: "transcribe", JobID: job.ID, Language: "vi"})
	require.NoError(t, err)

	updated, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDiarizing, updated.Status)

	transcript, err := transcripts.FindByJobAndLanguage(ctx, job.ID, "vi")
	require.NoError(t, err)
	require.Contains(t, transcript.WordsJSON, "redelivered")
}
