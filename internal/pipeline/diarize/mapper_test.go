package diarize

import (
	"testing"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/diarizer"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMapSpeakersToWordsBoundaryFavorsEarlierSegment(t *testing.T) {
	segments := []diarizer.Segment{
		{Start: 0.0, End: 5.0, SpeakerName: "S1"},
		{Start: 5.0, End: 10.0, SpeakerName: "S2"},
	}
	words := []models.WordSegment{
		{Text: "a", Start: 0.1, End: 0.5},
		{Text: "b", Start: 4.8, End: 5.2}, // center = 5.0, boundary
		{Text: "c", Start: 6.0, End: 6.4},
	}

	got := MapSpeakersToWords(segments, words)

	assert.Equal(t, []models.SpeakerSegment{
		{Speaker: "S1", Text: "a b", Start: 0.0, End: 5.0},
		{Speaker: "S2", Text: "c", Start: 5.0, End: 10.0},
	}, got)
}

func TestMapSpeakersToWordsDiscardsLeadingSilence(t *testing.T) {
	segments := []diarizer.Segment{{Start: 2.0, End: 4.0, SpeakerName: "S1"}}
	words := []models.WordSegment{
		{Text: "before", Start: 0.0, End: 1.0},
		{Text: "inside", Start: 2.5, End: 3.0},
	}

	got := MapSpeakersToWords(segments, words)
	assert.Equal(t, []models.SpeakerSegment{{Speaker: "S1", Text: "inside", Start: 2.0, End: 4.0}}, got)
}

func TestMapSpeakersToWordsSkipsSegmentWithNoWords(t *testing.T) {
	segments := []diarizer.Segment{
		{Start: 0.0, End: 1.0, SpeakerName: "S1"},
		{Start: 1.0, End: 2.0, SpeakerName: "S2"},
	}
	words := []models.WordSegment{{Text: "late", Start: 1.5, End: 1.8}}

	got := MapSpeakersToWords(segments, words)
	assert.Equal(t, []models.SpeakerSegment{{Speaker: "S2", Text: "late", Start: 1.0, End: 2.0}}, got)
}

func TestMapSpeakersToWordsEmptyInputs(t *testing.T) {
	assert.Nil(t, MapSpeakersToWords(nil, []models.WordSegment{{Text: "x"}}))
	assert.Nil(t, MapSpeakersToWords([]diarizer.Segment{{}}, nil))
}
