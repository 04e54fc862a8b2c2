// Package diarize implements the Diarization Worker (spec §4.4) and the
// Speaker-Word Mapper (spec §4.5).
//
// MapSpeakersToWords is grounded on original_source/app/processing/mapper.py's
// map_speaker_to_text: a single forward pass over both timelines with one
// shared word cursor that never rewinds, assigning each word to at most one
// speaker segment by its center time.
package diarize

import (
	"strings"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/diarizer"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
)

// MapSpeakersToWords assigns each word to the speaker segment covering its
// center time, producing one output segment per input speaker segment that
// collected at least one word. Both inputs must already be sorted by start
// time; the cursor only ever advances.
func MapSpeakersToWords(segments []diarizer.Segment, words []models.WordSegment) []models.SpeakerSegment {
	if len(segments) == 0 || len(words) == 0 {
		return nil
	}

	var out []models.SpeakerSegment
	wordIdx := 0

	for _, seg := range segments {
		var collected []string

		for wordIdx < len(words) {
			w := words[wordIdx]
			center := w.Start + (w.End-w.Start)/2

			if center < seg.Start {
				wordIdx++
				continue
			}
			if center <= seg.End {
				collected = append(collected, w.Text)
				wordIdx++
				continue
			}
			break
		}

		if len(collected) > 0 {
			out = append(out, models.SpeakerSegment{
				Speaker: seg.SpeakerName,
				Text:    strings.Join(collected, " "),
				Start:   seg.Start,
				End:     seg.End,
			})
		}
	}

	return out
}
