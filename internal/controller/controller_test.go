package controller

import (
	"context"
	"os"
	"testing"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/config"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/docx"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/errs"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/llm"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestController(t *testing.T) (*Controller, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Job{}, &models.Transcript{},
		&models.DiarizedTranscript{}, &models.Summary{}, &models.ChatEntry{},
	))

	mr := miniredis.RunT(t)
	b, err := broker.New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	dir := t.TempDir()
	cfg := &config.Config{SharedAudioPath: dir, LocalTimezone: "UTC", LLMModel: "fake-model", ChatHistoryLimit: 10}

	c := New(cfg, db, b, &llm.Fake{}, &docx.Fake{})
	return c, db
}

func TestStartCreatesJobAndDirectory(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	job, err := c.Start(ctx, "req-1", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, models.StatusUploading, job.Status)

	info, err := os.Stat(c.jobDir(job))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestStartRejectsDuplicateRequestID(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.Start(ctx, "req-dup", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = c.Start(ctx, "req-dup", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.Error(t, err)
	require.Equal(t, errs.Conflict, errs.KindOf(err))
}

func TestUploadChunkLastChunkEnqueuesAssemble(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	job, err := c.Start(ctx, "req-2", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, c.UploadChunk(ctx, "req-2", []byte("chunk0"), "meeting_0.wav", false))
	require.NoError(t, c.UploadChunk(ctx, "req-2", []byte("chunk1"), "meeting_1.wav", true))

	updated, err := c.JobByRequestID(ctx, job.RequestID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAssembling, updated.Status)
	require.NotNil(t, updated.UploadFinishedAt)

	depth, err := c.broker.QueueDepth(ctx, broker.QueueGPU)
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)
}

func TestUploadChunkRejectsWhenNotUploading(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.Start(ctx, "req-3", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.UploadChunk(ctx, "req-3", []byte("c"), "meeting_0.wav", true))

	err = c.UploadChunk(ctx, "req-3", []byte("c"), "meeting_1.wav", true)
	require.Error(t, err)
	require.Equal(t, errs.Conflict, errs.KindOf(err))
}

func TestCancelRemovesJobAndDirectory(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	job, err := c.Start(ctx, "req-4", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, c.Cancel(ctx, "req-4", "vi.nguyen"))

	_, err = c.JobByRequestID(ctx, job.RequestID)
	require.Error(t, err)

	_, statErr := os.Stat(c.jobDir(job))
	require.True(t, os.IsNotExist(statErr))
}

func TestCancelForbiddenForNonOwner(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.Start(ctx, "req-5", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)

	err = c.Cancel(ctx, "req-5", "someone.else")
	require.Error(t, err)
	require.Equal(t, errs.Forbidden, errs.KindOf(err))
}

func TestChangeLanguageToCurrentIsNoop(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	job, err := c.Start(ctx, "req-6", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, c.ChangeLanguage(ctx, job.RequestID, "vi.nguyen", "vi"))

	updated, err := c.JobByRequestID(ctx, job.RequestID)
	require.NoError(t, err)
	require.Equal(t, models.StatusUploading, updated.Status)
}

func TestSummaryRequiresTranscript(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.Start(ctx, "req-7", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = c.Summary(ctx, "req-7", "vi.nguyen", models.SummaryTopic)
	require.Error(t, err)
	require.Equal(t, errs.InvalidState, errs.KindOf(err))
}

func TestSummaryGeneratesFromTranscript(t *testing.T) {
	c, db := newTestController(t)
	ctx := context.Background()

	job, err := c.Start(ctx, "req-8", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Transcript{
		JobID: job.ID, Language: "vi", WordsJSON: `[{"id":"w1","text":"hello","start":0,"end":1}]`,
	}).Error)

	s, err := c.Summary(ctx, job.RequestID, "vi.nguyen", models.SummaryTopic)
	require.NoError(t, err)
	require.Contains(t, s.Content, "echo:")
}

func TestChatGeneralChitChatAppendsHistory(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	job, err := c.Start(ctx, "req-9", "vi.nguyen", "vi", "meeting.wav", nil, nil, nil, nil)
	require.NoError(t, err)
	c.llm = &llm.Fake{Reply: `{"intent":"general_chit_chat"}`}

	reply, err := c.Chat(ctx, job.RequestID, "vi.nguyen", "xin chao")
	require.NoError(t, err)
	require.NotEmpty(t, reply)
	require.Equal(t, chitChatReply, reply)

	entries, err := c.chats.ListByJob(ctx, job.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, models.ChatRoleUser, entries[0].Role)
	require.Equal(t, models.ChatRoleAssistant, entries[1].Role)
}
