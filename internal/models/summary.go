package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SummaryType enumerates the kinds of derived summary artifacts a Job can have.
type SummaryType string

const (
	SummaryTopic             SummaryType = "topic"
	SummarySpeaker           SummaryType = "speaker"
	SummaryActionItems       SummaryType = "action_items"
	SummaryDecisionLog       SummaryType = "decision_log"
	SummaryBBHHDQT           SummaryType = "summary_bbh_hdqt"
	SummaryNghiQuyet         SummaryType = "summary_nghi_quyet"
)

// IsTemplated reports whether this summary type renders through a DOCX
// template (and therefore needs the localized context header prefixed onto
// the source text before summarization).
func (s SummaryType) IsTemplated() bool {
	return s == SummaryBBHHDQT || s == SummaryNghiQuyet
}

func (s SummaryType) Valid() bool {
	switch s {
	case SummaryTopic, SummarySpeaker, SummaryActionItems, SummaryDecisionLog, SummaryBBHHDQT, SummaryNghiQuyet:
		return true
	}
	return false
}

// Summary is an at-most-one-per-(job,type) stored LLM-produced artifact.
type Summary struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	JobID       string      `json:"job_id" gorm:"not null;type:varchar(36);uniqueIndex:idx_summary_job_type"`
	SummaryType SummaryType `json:"summary_type" gorm:"not null;type:varchar(32);uniqueIndex:idx_summary_job_type"`
	Content     string      `json:"content" gorm:"type:text;not null"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *Summary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
