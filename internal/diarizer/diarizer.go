// Package diarizer defines the external speaker-diarization collaborator
// boundary (spec §1, §4.4): voice-activity detection, windowed embeddings,
// known-speaker matching, and hierarchical clustering all live outside this
// repository. This package carries the call contract, an HTTP client for an
// external diarizer, a fake, and the enrollment profile shape the
// Diarization Worker passes through, grounded
// on original_source/app/processing/enrollment.py's {speaker_name,
// embedding} tuples.
package diarizer

import "context"

// Profile is one enrolled speaker's reference embedding, fetched read-only
// from the vector store (spec §5: "Vector store: read-only from the
// Diarization Worker").
type Profile struct {
	SpeakerName string
	Embedding   []float32
}

// Segment is one speaker-labeled region of the audio timeline.
type Segment struct {
	Start       float64
	End         float64
	SpeakerName string
}

// Params carries the numeric knobs spec §4.4 says are read from
// configuration: window/overlap durations, known-match threshold,
// clustering distance threshold, and the max pause for merging adjacent
// same-speaker segments.
type Params struct {
	WindowSeconds    float64
	OverlapSeconds   float64
	KnownThreshold   float64
	DistanceThreshold float64
	MergeMaxPause    float64
	VADEnabled       bool
}

// Engine performs diarization of an audio file against a set of known
// speaker profiles, returning an ordered (by Start) list of segments.
type Engine interface {
	Diarize(ctx context.Context, audioPath string, profiles []Profile, params Params) ([]Segment, error)
}
