package diarizer

import "context"

// Fake is a deterministic Engine used in controller/worker tests.
type Fake struct {
	Segments []Segment
	Err      error
}

func (f *Fake) Diarize(ctx context.Context, audioPath string, profiles []Profile, params Params) ([]Segment, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Segments != nil {
		return f.Segments, nil
	}
	return []Segment{
		{Start: 0.0, End: 5.0, SpeakerName: "S1"},
		{Start: 5.0, End: 10.0, SpeakerName: "S2"},
	}, nil
}
