package controller

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
)

// PlainSegment is one HH:MM:SS-formatted word-level transcript entry in a
// status envelope.
type PlainSegment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DiarizedSegment is one HH:MM:SS-formatted speaker-attributed entry.
type DiarizedSegment struct {
	ID        string `json:"id"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// StatusEnvelope is the wire shape returned by GetStatus and sent as the
// snapshot when a WebSocket client connects (spec §6). job_updates messages
// carry a broker.StatusUpdate, not this envelope.
type StatusEnvelope struct {
	RequestID          string            `json:"request_id"`
	Status             string            `json:"status"`
	MeetingName        *string           `json:"bbh_name"`
	MeetingType        *string           `json:"meeting_type"`
	MeetingHost        *string           `json:"meeting_host"`
	Language           string            `json:"language"`
	PlainTranscript    []PlainSegment    `json:"plain_transcript"`
	DiarizedTranscript []DiarizedSegment `json:"diarized_transcript"`
	ErrorMessage       *string           `json:"error_message"`
}

// FormatHHMMSS truncates seconds to an integer and renders HH:MM:SS.
// Non-finite input (NaN, +/-Inf) renders as "00:00:00" (spec §4.1
// "Timestamp formatting... non-numeric input -> 00:00:00").
func FormatHHMMSS(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00:00"
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func buildEnvelope(job *models.Job, transcript *models.Transcript, diarized *models.DiarizedTranscript) (StatusEnvelope, error) {
	env := StatusEnvelope{
		RequestID:    job.RequestID,
		Status:       string(job.Status),
		MeetingName:  job.MeetingName,
		MeetingType:  job.MeetingType,
		MeetingHost:  job.MeetingHost,
		Language:     job.ActiveLanguage,
		ErrorMessage: job.ErrorMessage,
	}

	if transcript != nil {
		var words []models.WordSegment
		if err := json.Unmarshal([]byte(transcript.WordsJSON), &words); err != nil {
			return env, fmt.Errorf("decode transcript words: %w", err)
		}
		env.PlainTranscript = make([]PlainSegment, len(words))
		for i, w := range words {
			env.PlainTranscript[i] = PlainSegment{
				ID:        w.ID,
				Text:      w.Text,
				StartTime: FormatHHMMSS(w.Start),
				EndTime:   FormatHHMMSS(w.End),
			}
		}
	}

	if diarized != nil {
		var segments []models.SpeakerSegment
		if err := json.Unmarshal([]byte(diarized.SegmentsJSON), &segments); err != nil {
			return env, fmt.Errorf("decode diarized segments: %w", err)
		}
		env.DiarizedTranscript = make([]DiarizedSegment, len(segments))
		for i, s := range segments {
			env.DiarizedTranscript[i] = DiarizedSegment{
				ID:        s.ID,
				Speaker:   s.Speaker,
				Text:      s.Text,
				StartTime: FormatHHMMSS(s.Start),
				EndTime:   FormatHHMMSS(s.End),
			}
		}
	}

	return env, nil
}
