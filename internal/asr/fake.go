package asr

import "context"

// Fake is a deterministic Engine used by controller/worker tests.
type Fake struct {
	Result *Result
	Err    error
}

func (f *Fake) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Result != nil {
		return f.Result, nil
	}
	return &Result{
		Words: []Word{
			{Text: "hello", Start: 0.0, End: 0.5},
			{Text: "world", Start: 0.6, End: 1.1},
		},
		Sentences: []Sentence{
			{Text: "hello world", Start: 0.0, End: 1.1},
		},
	}, nil
}
