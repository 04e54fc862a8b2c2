package repository

import (
	"context"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"

	"gorm.io/gorm"
)

// UserRepository handles user lookups for the optional account surface and
// for resolving a request's plain username field to an owner ID.
type UserRepository interface {
	Repository[models.User]
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

type userRepository struct {
	*BaseRepository[models.User]
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository[models.User](db)}
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// JobRepository handles the meeting Job aggregate: the job row plus the
// transcript/diarization/summary/chat rows that hang off it.
type JobRepository interface {
	Repository[models.Job]
	FindByRequestID(ctx context.Context, requestID string) (*models.Job, error)
	ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]models.Job, int64, error)
	ListStale(ctx context.Context, statuses []models.JobStatus, olderThan time.Time) ([]models.Job, error)
	ListKnownDirectories(ctx context.Context) (map[string]bool, error)
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
	DeleteCascade(ctx context.Context, jobID string) error
}

type jobRepository struct {
	*BaseRepository[models.Job]
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{BaseRepository: NewBaseRepository[models.Job](db)}
}

func (r *jobRepository) FindByRequestID(ctx context.Context, requestID string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]models.Job, int64, error) {
	var jobs []models.Job
	var count int64

	db := r.db.WithContext(ctx).Model(&models.Job{}).Where("owner_id = ?", ownerID)
	if err := db.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&jobs).Error
	return jobs, count, err
}

// ListStale finds jobs in one of statuses created before olderThan, for the
// Stale-Job Reaper (spec
// §4.8: "created_at older than a threshold").
func (r *jobRepository) ListStale(ctx context.Context, statuses []models.JobStatus, olderThan time.Time) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", statuses, olderThan).
		Find(&jobs).Error
	return jobs, err
}

// ListKnownDirectories returns every Job's chunk-directory name, for the
// reaper's orphan sweep to diff against what actually exists on disk.
func (r *jobRepository) ListKnownDirectories(ctx context.Context) (map[string]bool, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).Select("request_id").Find(&jobs).Error; err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		known[j.ChunkDir()] = true
	}
	return known, nil
}

// statusRankCase renders a SQL CASE expression mapping the jobs.status
// column to its JobStatus.Rank(), so UpdateStatus's monotone guard runs as
// part of the single atomic UPDATE rather than a separate read-then-write
// that would race against a concurrent writer.
const statusRankCase = `CASE status
	WHEN 'uploading' THEN 0
	WHEN 'assembling' THEN 1
	WHEN 'transcribing' THEN 2
	WHEN 'transcription_complete' THEN 3
	WHEN 'diarizing' THEN 4
	WHEN 'completed' THEN 5
	ELSE 99 END`

// UpdateStatus advances a job's status. Per spec §3's monotone-status
// invariant, the write only applies if status ranks further along the
// pipeline than the job's current status (models.JobStatus.Rank); a
// redelivered task carrying a stale status is a no-op, not an error, since
// broker delivery is at-least-once (spec §9) and a worker may be asked to
// process a task the job has already moved past.
func (r *jobRepository) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND ("+statusRankCase+") < ?", jobID, status.Rank()).
		Updates(map[string]any{"status": status, "error_message": nil}).Error
}

func (r *jobRepository) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{"status": models.StatusFailed, "error_message": errMsg}).Error
}

// DeleteCascade removes a job and every row that hangs off it — transcripts,
// diarized transcripts, summaries, and chat history (spec §3: "deleting a
// Job deletes every Transcript, DiarizedTranscript, Summary, and ChatEntry
// tied to it").
func (r *jobRepository) DeleteCascade(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.ChatEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&models.Summary{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&models.DiarizedTranscript{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&models.Transcript{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Job{}, "id = ?", jobID).Error
	})
}

// TranscriptRepository handles the per-language word-level transcript.
type TranscriptRepository interface {
	Repository[models.Transcript]
	FindByJobAndLanguage(ctx context.Context, jobID, language string) (*models.Transcript, error)
	ListByJob(ctx context.Context, jobID string) ([]models.Transcript, error)
	// ReplaceEdited overwrites a transcript's words and marks it edited,
	// cascading the invalidation required by spec §3: a changed Transcript
	// invalidates its DiarizedTranscript, Summaries, and ChatEntries.
	ReplaceEdited(ctx context.Context, transcriptID string, wordsJSON string) error
	// ReplaceGenerated overwrites a transcript's words in place without
	// marking it edited or cascading invalidation. Used when the
	// Transcription Worker reruns for a (job, language) pair that already
	// has a Transcript: a worker rerun regenerates machine output, it is
	// not an owner edit, so downstream DiarizedTranscript/Summaries/
	// ChatEntries are left alone (mirrors ReplaceGenerated on
	// DiarizedTranscriptRepository).
	ReplaceGenerated(ctx context.Context, transcriptID string, wordsJSON string) error
}

type transcriptRepository struct {
	*BaseRepository[models.Transcript]
}

func NewTranscriptRepository(db *gorm.DB) TranscriptRepository {
	return &transcriptRepository{BaseRepository: NewBaseRepository[models.Transcript](db)}
}

func (r *transcriptRepository) FindByJobAndLanguage(ctx context.Context, jobID, language string) (*models.Transcript, error) {
	var t models.Transcript
	err := r.db.WithContext(ctx).Where("job_id = ? AND language = ?", jobID, language).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transcriptRepository) ListByJob(ctx context.Context, jobID string) ([]models.Transcript, error) {
	var ts []models.Transcript
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Find(&ts).Error
	return ts, err
}

func (r *transcriptRepository) ReplaceEdited(ctx context.Context, transcriptID string, wordsJSON string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Transcript
		if err := tx.First(&t, "id = ?", transcriptID).Error; err != nil {
			return err
		}
		if err := tx.Model(&t).Updates(map[string]any{
			"words_json": wordsJSON,
			"edited_flag": true,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", t.JobID).Delete(&models.DiarizedTranscript{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", t.JobID).Delete(&models.Summary{}).Error; err != nil {
			return err
		}
		return tx.Where("job_id = ?", t.JobID).Delete(&models.ChatEntry{}).Error
	})
}

func (r *transcriptRepository) ReplaceGenerated(ctx context.Context, transcriptID string, wordsJSON string) error {
	return r.db.WithContext(ctx).Model(&models.Transcript{}).
		Where("id = ?", transcriptID).
		Update("words_json", wordsJSON).Error
}

// DiarizedTranscriptRepository handles the speaker-attributed transcript.
type DiarizedTranscriptRepository interface {
	Repository[models.DiarizedTranscript]
	FindByJob(ctx context.Context, jobID string) (*models.DiarizedTranscript, error)
	// ReplaceEdited overwrites speaker segments and invalidates downstream
	// Summaries and ChatEntries, same cascade rule as a Transcript edit.
	ReplaceEdited(ctx context.Context, id string, segmentsJSON string) error
	// DeleteByJob removes any diarized transcript for a job. Used when a
	// language change invalidates the active-language diarization.
	DeleteByJob(ctx context.Context, jobID string) error
	// ReplaceGenerated deletes any prior diarized transcript for a job and
	// creates a fresh one, per spec §4.4's "deleting any prior" rerun rule.
	// Unlike ReplaceEdited it does not set edited_flag or cascade into
	// Summaries/ChatEntries: a worker rerun is not an owner edit.
	ReplaceGenerated(ctx context.Context, jobID, segmentsJSON string) error
}

type diarizedTranscriptRepository struct {
	*BaseRepository[models.DiarizedTranscript]
}

func NewDiarizedTranscriptRepository(db *gorm.DB) DiarizedTranscriptRepository {
	return &diarizedTranscriptRepository{BaseRepository: NewBaseRepository[models.DiarizedTranscript](db)}
}

func (r *diarizedTranscriptRepository) FindByJob(ctx context.Context, jobID string) (*models.DiarizedTranscript, error) {
	var d models.DiarizedTranscript
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *diarizedTranscriptRepository) ReplaceEdited(ctx context.Context, id string, segmentsJSON string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.DiarizedTranscript
		if err := tx.First(&d, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&d).Updates(map[string]any{
			"segments_json": segmentsJSON,
			"edited_flag": true,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", d.JobID).Delete(&models.Summary{}).Error; err != nil {
			return err
		}
		return tx.Where("job_id = ?", d.JobID).Delete(&models.ChatEntry{}).Error
	})
}

func (r *diarizedTranscriptRepository) ReplaceGenerated(ctx context.Context, jobID, segmentsJSON string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.DiarizedTranscript{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.DiarizedTranscript{JobID: jobID, SegmentsJSON: segmentsJSON}).Error
	})
}

func (r *diarizedTranscriptRepository) DeleteByJob(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&models.DiarizedTranscript{}).Error
}

// SummaryRepository handles generated summaries, one row per (job, type).
type SummaryRepository interface {
	Repository[models.Summary]
	FindByJobAndType(ctx context.Context, jobID string, summaryType models.SummaryType) (*models.Summary, error)
	ListByJob(ctx context.Context, jobID string) ([]models.Summary, error)
	Upsert(ctx context.Context, summary *models.Summary) error
}

type summaryRepository struct {
	*BaseRepository[models.Summary]
}

func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepository{BaseRepository: NewBaseRepository[models.Summary](db)}
}

func (r *summaryRepository) FindByJobAndType(ctx context.Context, jobID string, summaryType models.SummaryType) (*models.Summary, error) {
	var s models.Summary
	err := r.db.WithContext(ctx).Where("job_id = ? AND summary_type = ?", jobID, summaryType).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *summaryRepository) ListByJob(ctx context.Context, jobID string) ([]models.Summary, error) {
	var ss []models.Summary
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Find(&ss).Error
	return ss, err
}

// Upsert replaces an existing (job_id, summary_type) row rather than
// erroring on the unique index, since re-requesting a summary after a
// transcript edit is the normal regeneration path.
func (r *summaryRepository) Upsert(ctx context.Context, summary *models.Summary) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ? AND summary_type = ?", summary.JobID, summary.SummaryType).
			Delete(&models.Summary{}).Error; err != nil {
			return err
		}
		return tx.Create(summary).Error
	})
}

// ChatRepository handles per-job chat history.
type ChatRepository interface {
	Repository[models.ChatEntry]
	ListByJob(ctx context.Context, jobID string, limit int) ([]models.ChatEntry, error)
	DeleteByJob(ctx context.Context, jobID string) error
}

type chatRepository struct {
	*BaseRepository[models.ChatEntry]
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{BaseRepository: NewBaseRepository[models.ChatEntry](db)}
}

// ListByJob returns the last limit entries for a job in chronological
// (oldest-first) order, matching spec §4.6's "last chat_history_limit x 2
// ChatEntries... in chronological order".
func (r *chatRepository) ListByJob(ctx context.Context, jobID string, limit int) ([]models.ChatEntry, error) {
	var entries []models.ChatEntry
	q := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (r *chatRepository) DeleteByJob(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&models.ChatEntry{}).Error
}
