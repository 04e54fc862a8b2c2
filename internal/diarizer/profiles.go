package diarizer

import "context"

// ProfileSource fetches enrolled speaker profiles for comparison against a
// job's audio. It is a boundary-only interface: the vector store holding
// enrollment embeddings is out of scope for this repo (spec §1), so no
// concrete vector-DB client is wired here, only the shape the Diarization
// Worker needs to pass profiles opaquely to the Engine.
type ProfileSource interface {
	ListProfiles(ctx context.Context) ([]Profile, error)
}

// FakeProfileSource is a deterministic ProfileSource for tests.
type FakeProfileSource struct {
	Profiles []Profile
	Err      error
}

func (f *FakeProfileSource) ListProfiles(ctx context.Context) ([]Profile, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Profiles, nil
}
