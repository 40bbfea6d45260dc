package mp3

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoFrames is returned when a file contains no Layer III frames
var ErrNoFrames = errors.New("no MPEG Layer III frames found")

// AdjustGain adds steps to every global_gain field in data, clamping to
// 0..255. It returns the number of frames modified. data keeps its length.
func AdjustGain(data []byte, steps int) int {
	if steps == 0 {
		return 0
	}

	frames := 0
	pos := skipID3v2(data)
	for pos+4 <= len(data) {
		h, ok := parseHeader(data[pos:])
		if !ok {
			pos++
			continue
		}

		// A real frame is followed by another sync word or the end of data
		next := pos + h.frameSize
		valid := next <= len(data)
		if next+2 <= len(data) {
			valid = data[next] == 0xFF && data[next+1]&0xE0 == 0xE0
		}
		if !valid {
			pos++
			continue
		}

		for _, loc := range gainLocations(pos, h) {
			writeGain(data, loc, clampGain(int(readGain(data, loc))+steps))
		}
		frames++
		pos = next
	}
	return frames
}

func clampGain(v int) byte {
	return byte(min(max(v, 0), 255))
}

// ApplyGain rewrites the global_gain fields of the MP3 file at path. The new
// content is written to a temporary file in the same directory and renamed
// over the original, so a failure leaves the original intact.
func ApplyGain(path string, steps int) (int, error) {
	if steps == 0 {
		return 0, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat MP3 file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read MP3 file: %w", err)
	}

	frames := AdjustGain(data, steps)
	if frames == 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrNoFrames)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".headroom-*.mp3")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return 0, fmt.Errorf("failed to write MP3 file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return 0, fmt.Errorf("failed to sync MP3 file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to close MP3 file: %w", err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to replace MP3 file: %w", err)
	}
	return frames, nil
}
