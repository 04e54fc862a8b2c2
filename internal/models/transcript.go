package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WordSegment is one word-level timestamped token of a Transcript.
type WordSegment struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SpeakerSegment is one contiguous speaker-labeled region of a DiarizedTranscript.
type SpeakerSegment struct {
	ID      string  `json:"id"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Transcript is the word-level, language-scoped transcript for a Job.
// At most one row exists per (JobID, Language).
type Transcript struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	JobID       string    `json:"job_id" gorm:"not null;type:varchar(36);uniqueIndex:idx_transcript_job_lang"`
	Language    string    `json:"language" gorm:"not null;type:varchar(10);uniqueIndex:idx_transcript_job_lang"`
	WordsJSON   string    `json:"-" gorm:"type:text;not null"` // JSON-encoded []WordSegment
	EditedFlag  bool      `json:"edited_flag" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (t *Transcript) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// DiarizedTranscript is the speaker-separated view of a Job's active-language
// Transcript. At most one row exists per JobID.
type DiarizedTranscript struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	JobID       string    `json:"job_id" gorm:"not null;uniqueIndex;type:varchar(36)"`
	SegmentsJSON string   `json:"-" gorm:"type:text;not null"` // JSON-encoded []SpeakerSegment
	EditedFlag  bool      `json:"edited_flag" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (d *DiarizedTranscript) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
