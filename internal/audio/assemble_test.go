package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListChunksSortedOrdersByNumericSuffix(t *testing.T) {
	dir := t.TempDir()
	names := []string{"m_10.wav", "m_2.wav", "m_1.wav", "notes.txt"}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644))
	}

	chunks, err := ListChunksSorted(dir)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, filepath.Join(dir, "m_1.wav"), chunks[0])
	assert.Equal(t, filepath.Join(dir, "m_2.wav"), chunks[1])
	assert.Equal(t, filepath.Join(dir, "m_10.wav"), chunks[2])
}

func TestListChunksSortedEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	chunks, err := ListChunksSorted(dir)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestConcatenateRejectsEmptyChunkList(t *testing.T) {
	a := NewAssembler()
	err := a.Concatenate(nil, nil, filepath.Join(t.TempDir(), "out.wav"))
	assert.Error(t, err)
}

func TestWriteConcatListProducesAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "m_1.wav")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))

	listFile, err := writeConcatList([]string{p})
	require.NoError(t, err)
	defer os.Remove(listFile)

	data, err := os.ReadFile(listFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), p)
}
