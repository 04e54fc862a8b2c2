// Package audio wraps the ffmpeg invocations the Assembler Worker needs:
// concatenating a job's uploaded chunks in order and re-encoding the result
// to the mono/16-bit/16kHz format the ASR and diarization collaborators
// expect. Grounded on the teacher's internal/audio.AudioMerger, which wraps
// ffmpeg the same way (os/exec, stderr draining, context-cancellable
// Wait) for a different purpose (multi-track offset mixing).
package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Assembler concatenates ordered chunk files into one normalized WAV.
type Assembler struct {
	ffmpegPath string
}

func NewAssembler() *Assembler {
	return &Assembler{ffmpegPath: "ffmpeg"}
}

func NewAssemblerWithPath(ffmpegPath string) *Assembler {
	return &Assembler{ffmpegPath: ffmpegPath}
}

// chunkSuffix matches the client-assigned numeric ordering suffix, e.g.
// "m_12.wav" -> 12.
var chunkSuffix = regexp.MustCompile(`_(\d+)\.[^.]+$`)

// ListChunksSorted returns the chunk file paths in dir sorted chronologically
// by their numeric filename suffix.
func ListChunksSorted(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chunk directory: %w", err)
	}

	type chunk struct {
		path string
		n    int
	}
	var chunks []chunk
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := chunkSuffix.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk{path: filepath.Join(dir, e.Name()), n: n})
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].n < chunks[j].n })

	paths := make([]string, len(chunks))
	for i, c := range chunks {
		paths[i] = c.path
	}
	return paths, nil
}

// Concatenate joins chunkPaths in order and re-encodes to mono, 16-bit,
// 16kHz PCM WAV at outputPath. Chunks are concatenated via ffmpeg's concat
// demuxer rather than filter_complex amix, since these are sequential
// segments of one recording, not simultaneous tracks.
func (a *Assembler) Concatenate(ctx context.Context, chunkPaths []string, outputPath string) error {
	if len(chunkPaths) == 0 {
		return fmt.Errorf("no chunks to assemble")
	}

	listFile, err := writeConcatList(chunkPaths)
	if err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listFile)

	cmd := exec.CommandContext(ctx, a.ffmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-ac", "1", // mono
		"-ar", "16000", // 16kHz
		"-sample_fmt", "s16", // 16-bit
		outputPath,
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	go drainStderr(stderr)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("assembled output missing: %w", err)
	}
	return nil
}

func writeConcatList(paths []string) (string, error) {
	f, err := os.CreateTemp("", "assemble-*.txt")
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(w, "file '%s'\n", abs)
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func drainStderr(stderr io.Reader) {
	buf := make([]byte, 1024)
	for {
		if _, err := stderr.Read(buf); err != nil {
			return
		}
	}
}

// ValidateFFmpeg checks that the configured ffmpeg binary is runnable.
func (a *Assembler) ValidateFFmpeg() error {
	if err := exec.Command(a.ffmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found or not working: %w", err)
	}
	return nil
}
