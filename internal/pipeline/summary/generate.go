package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/llm"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
)

// SourceText builds the text handed to the LLM for a given summary type:
// the speaker-diarized transcript for "speaker", the plain word-level
// transcript otherwise. Templated types (spec §4.1's IsTemplated) get the
// localized context header prepended.
func SourceText(t models.SummaryType, plainText, diarizedText string, startedAt, finishedAt *time.Time, loc *time.Location) string {
	body := plainText
	if t == models.SummarySpeaker {
		body = diarizedText
	}
	if t.IsTemplated() {
		_, prefix := BuildContextHeader(startedAt, finishedAt, loc)
		return prefix + body
	}
	return body
}

// Generate calls the LLM collaborator to produce the summary content for a
// single (job, type) pair.
func Generate(ctx context.Context, svc llm.Service, model string, t models.SummaryType, sourceText string) (string, error) {
	if strings.TrimSpace(sourceText) == "" {
		return "", fmt.Errorf("summary: empty source text for type %q", t)
	}
	resp, err := svc.ChatCompletion(ctx, model, []llm.ChatMessage{
		{Role: "system", Content: instructions(t)},
		{Role: "user", Content: sourceText},
	}, 0.3)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary: empty completion for type %q", t)
	}
	return resp.Choices[0].Message.Content, nil
}

// PlainText renders word segments back into a single space-joined string
// for LLM consumption.
func PlainText(words []models.WordSegment) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// DiarizedText renders speaker segments into "Speaker: text" lines.
func DiarizedText(segments []models.SpeakerSegment) string {
	lines := make([]string, len(segments))
	for i, s := range segments {
		lines[i] = fmt.Sprintf("%s: %s", s.Speaker, s.Text)
	}
	return strings.Join(lines, "\n")
}
