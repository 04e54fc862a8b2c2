// Package summary implements summary generation (spec §4.1's `summary`
// operation): assembling the source text, prefixing templated summaries
// with a localized context header, and calling the external LLM
// collaborator.
//
// ContextHeader is grounded on the original's inline context_header
// construction (debug.py, generate_and_download_document): the job's
// upload_started_at/upload_finished_at are formatted HH:MM and prepended,
// in Vietnamese, ahead of the transcript text handed to the LLM.
// BuildContextHeader also returns the same fields as a structured
// ContextHeader, which the controller passes to the DOCX renderer; the LLM
// receives only the text prefix.
package summary

import (
	"fmt"
	"time"
)

// ContextHeader is the structured date/time context of a meeting, converted
// from UTC to the configured local timezone. It is passed to the DOCX
// renderer; it is not sent to the LLM.
type ContextHeader struct {
	Day, Month, Year   int
	Hour, Minute       int
	StartTime, EndTime string // "HH:MM", "N/A" if unknown
}

// BuildContextHeader converts startedAt/finishedAt (UTC, nil if unknown)
// into loc's local time and returns both the structured header and the
// literal text prefix that SourceText prepends to the source transcript of
// templated summary types.
func BuildContextHeader(startedAt, finishedAt *time.Time, loc *time.Location) (ContextHeader, string) {
	h := ContextHeader{StartTime: "N/A", EndTime: "N/A"}

	var anchor time.Time
	if startedAt != nil {
		local := startedAt.In(loc)
		h.StartTime = local.Format("15:04")
		anchor = local
	}
	if finishedAt != nil {
		local := finishedAt.In(loc)
		h.EndTime = local.Format("15:04")
		if anchor.IsZero() {
			anchor = local
		}
	}
	if !anchor.IsZero() {
		h.Day, h.Month, h.Year = anchor.Day(), int(anchor.Month()), anchor.Year()
		h.Hour, h.Minute = anchor.Hour(), anchor.Minute()
	}

	prefix := fmt.Sprintf(
		"**THÔNG TIN BỐI CẢNH CUỘC HỌP:**\n- Giờ bắt đầu: %s\n- Giờ kết thúc: %s\n\n**NỘI DUNG BIÊN BẢN (TRANSCRIPT):**\n",
		h.StartTime, h.EndTime,
	)
	return h, prefix
}
