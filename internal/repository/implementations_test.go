package repository

import (
	"context"
	"testing"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.Transcript{},
		&models.DiarizedTranscript{},
		&models.Summary{},
		&models.ChatEntry{},
	))
	return db
}

func TestJobRepositoryDeleteCascade(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	jobs := NewJobRepository(db)
	transcripts := NewTranscriptRepository(db)
	diarized := NewDiarizedTranscriptRepository(db)
	summaries := NewSummaryRepository(db)
	chats := NewChatRepository(db)

	job := &models.Job{RequestID: "req-1", OwnerID: "owner-1", OriginalFilename: "meeting.wav", ActiveLanguage: "vi", Status: models.StatusCompleted}
	require.NoError(t, jobs.Create(ctx, job))

	transcript := &models.Transcript{JobID: job.ID, Language: "vi", WordsJSON: "[]"}
	require.NoError(t, transcripts.Create(ctx, transcript))

	diar := &models.DiarizedTranscript{JobID: job.ID, SegmentsJSON: "[]"}
	require.NoError(t, diarized.Create(ctx, diar))

	summary := &models.Summary{JobID: job.ID, SummaryType: models.SummaryActionItems, Content: "do things"}
	require.NoError(t, summaries.Create(ctx, summary))

	chat := &models.ChatEntry{JobID: job.ID, Role: models.ChatRoleUser, Message: "hello"}
	require.NoError(t, chats.Create(ctx, chat))

	require.NoError(t, jobs.DeleteCascade(ctx, job.ID))

	_, err := jobs.FindByID(ctx, job.ID)
	require.Error(t, err)

	remaining, err := transcripts.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Empty(t, remaining)

	remainingSummaries, err := summaries.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Empty(t, remainingSummaries)

	remainingChats, err := chats.ListByJob(ctx, job.ID, 0)
	require.NoError(t, err)
	require.Empty(t, remainingChats)
}

func TestListKnownDirectories(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobRepository(db)

	require.NoError(t, jobs.Create(ctx, &models.Job{RequestID: "req-a", OwnerID: "o", OriginalFilename: "m.wav", ActiveLanguage: "vi", Status: models.StatusCompleted}))
	require.NoError(t, jobs.Create(ctx, &models.Job{RequestID: "req-b", OwnerID: "o", OriginalFilename: "m.wav", ActiveLanguage: "vi", Status: models.StatusUploading}))

	known, err := jobs.ListKnownDirectories(ctx)
	require.NoError(t, err)
	require.True(t, known["req-a"])
	require.True(t, known["req-b"])
	require.False(t, known["req-orphan"])
}

func TestUpdateStatusIsANoOpWhenNotAdvancing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewJobRepository(db)

	job := &models.Job{RequestID: "req-c", OwnerID: "o", OriginalFilename: "m.wav", ActiveLanguage: "vi", Status: models.StatusDiarizing}
	require.NoError(t, jobs.Create(ctx, job))

	require.NoError(t, jobs.UpdateStatus(ctx, job.ID, models.StatusTranscriptionComplete))

	updated, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDiarizing, updated.Status)

	require.NoError(t, jobs.UpdateStatus(ctx, job.ID, models.StatusCompleted))

	advanced, err := jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, advanced.Status)
}

func TestTranscriptReplaceEditedCascadesInvalidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	jobs := NewJobRepository(db)
	transcripts := NewTranscriptRepository(db)
	diarized := NewDiarizedTranscriptRepository(db)
	summaries := NewSummaryRepository(db)
	chats := NewChatRepository(db)

	job := &models.Job{RequestID: "req-2", OwnerID: "owner-1", OriginalFilename: "meeting.wav", ActiveLanguage: "vi", Status: models.StatusCompleted}
	require.NoError(t, jobs.Create(ctx, job))

	transcript := &models.Transcript{JobID: job.ID, Language: "vi", WordsJSON: "[]"}
	require.NoError(t, transcripts.Create(ctx, transcript))
	require.NoError(t, diarized.Create(ctx, &models.DiarizedTranscript{JobID: job.ID, SegmentsJSON: "[]"}))
	require.NoError(t, summaries.Create(ctx, &models.Summary{JobID: job.ID, SummaryType: models.SummaryTopic, Content: "topic"}))
	require.NoError(t, chats.Create(ctx, &models.ChatEntry{JobID: job.ID, Role: models.ChatRoleUser, Message: "hi"}))

	require.NoError(t, transcripts.ReplaceEdited(ctx, transcript.ID, `[{"text":"hello"}]`))

	updated, err := transcripts.FindByID(ctx, transcript.ID)
	require.NoError(t, err)
	require.True(t, updated.EditedFlag)

	_, err = diarized.FindByJob(ctx, job.ID)
	require.Error(t, err)

	remainingSummaries, err := summaries.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Empty(t, remainingSummaries)

	remainingChats, err := chats.ListByJob(ctx, job.ID, 0)
	require.NoError(t, err)
	require.Empty(t, remainingChats)
}

func TestUserRepositoryFindByUsername(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	users := NewUserRepository(db)
	require.NoError(t, users.Create(ctx, &models.User{Username: "vi.nguyen", DisplayName: "Vi Nguyen"}))

	found, err := users.FindByUsername(ctx, "vi.nguyen")
	require.NoError(t, err)
	require.Equal(t, "Vi Nguyen", found.DisplayName)

	_, err = users.FindByUsername(ctx, "unknown")
	require.Error(t, err)
}
