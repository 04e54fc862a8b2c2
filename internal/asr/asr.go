// Package asr defines the external speech-to-text collaborator boundary.
// The model itself is out of scope (spec §1); the interface the
// Transcription Worker calls against lives here, plus an HTTP client for an
// external ASR service and a fake used by tests.
package asr

import "context"

// Word is one timestamped token as returned by the ASR engine.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Sentence is a grouped, sentence-level view used for live UI payloads
// (spec §4.3: "a sentence-level view... used for live UI payloads").
type Sentence struct {
	Text  string
	Start float64
	End   float64
}

// Result is the full output of one transcription call.
type Result struct {
	Words     []Word
	Sentences []Sentence
}

// Engine transcribes an audio file in the given language.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)
}
