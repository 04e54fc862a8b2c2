package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the Job state machine position, per the controller's
// upload -> assemble -> transcribe -> diarize -> complete pipeline.
type JobStatus string

const (
	StatusUploading             JobStatus = "uploading"
	StatusAssembling            JobStatus = "assembling"
	StatusTranscribing          JobStatus = "transcribing"
	StatusTranscriptionComplete JobStatus = "transcription_complete"
	StatusDiarizing             JobStatus = "diarizing"
	StatusCompleted             JobStatus = "completed"
	StatusFailed                JobStatus = "failed"
)

// Rank orders a JobStatus along the pipeline: uploading < assembling <
// transcribing < transcription_complete < diarizing < completed. Used by
// JobRepository.UpdateStatus to enforce the monotone-status invariant
// (spec §3): a write to a status no further along than the job's current
// one is a no-op, not an error, so a redelivered task can't push a job's
// status backward. StatusFailed and any unrecognized status rank above
// every forward status, since failed is a terminal sink reachable from any
// state and is written through MarkFailed, not UpdateStatus.
func (s JobStatus) Rank() int {
	switch s {
	case StatusUploading:
		return 0
	case StatusAssembling:
		return 1
	case StatusTranscribing:
		return 2
	case StatusTranscriptionComplete:
		return 3
	case StatusDiarizing:
		return 4
	case StatusCompleted:
		return 5
	default:
		return 99
	}
}

// MeetingMembers is a JSON-encoded list of member names, stored as text.
type MeetingMembers []string

// Job represents one meeting processing session, identified by RequestID.
type Job struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestID        string    `json:"request_id" gorm:"uniqueIndex;not null;type:varchar(128)"`
	OwnerID          string    `json:"owner_id" gorm:"index;not null;type:varchar(64)"`
	OriginalFilename string    `json:"original_filename" gorm:"type:text;not null"`
	ActiveLanguage   string    `json:"language" gorm:"type:varchar(10);not null"`
	Status           JobStatus `json:"status" gorm:"type:varchar(32);not null;index"`

	MeetingName    *string `json:"bbh_name,omitempty" gorm:"type:text"`
	MeetingType    *string `json:"meeting_type,omitempty" gorm:"type:varchar(64)"`
	MeetingHost    *string `json:"meeting_host,omitempty" gorm:"type:varchar(128)"`
	MeetingMembers string  `json:"-" gorm:"type:text"` // JSON-encoded []string

	UploadStartedAt  *time.Time `json:"upload_started_at,omitempty"`
	UploadFinishedAt *time.Time `json:"upload_finished_at,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// ChunkDir returns the per-job directory name under the configured shared path.
func (j *Job) ChunkDir() string {
	return j.RequestID
}

// IsTerminal reports whether the Job can no longer transition except via deletion.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
