// Package scanner finds supported audio files below a directory.
package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/linuxmatters/headroom/internal/gain"
)

// extensions maps lower-case file extensions to formats
var extensions = map[string]gain.Format{
	".flac": gain.FormatFLAC,
	".aiff": gain.FormatAIFF,
	".aif":  gain.FormatAIFF,
	".wav":  gain.FormatWAV,
	".mp3":  gain.FormatMP3,
	".m4a":  gain.FormatAAC,
	".aac":  gain.FormatAAC,
}

// TempPrefix starts the name of every temp file written next to an original
const TempPrefix = ".headroom-"

// File is one audio file found by Scan
type File struct {
	Path   string // absolute or root-joined path
	Rel    string // slash-separated path relative to the scan root
	Format gain.Format
}

// Options controls a scan
type Options struct {
	Exclude []string // doublestar globs against File.Rel
	SkipDir string   // directory to ignore entirely, typically the backup directory
}

// FormatForPath returns the format implied by the file extension
func FormatForPath(path string) gain.Format {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtensions returns the recognised extensions without dots, sorted
func SupportedExtensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}

// Scan walks root recursively and returns supported audio files in lexical
// order of their relative paths.
func Scan(root string, opts Options) ([]File, error) {
	skipDir := ""
	if opts.SkipDir != "" {
		skipDir = filepath.Clean(opts.SkipDir)
	}

	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped; an unreadable root is fatal
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if skipDir != "" && filepath.Clean(path) == skipDir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		// macOS AppleDouble resource forks
		if strings.HasPrefix(d.Name(), "._") {
			return nil
		}
		// Temp output left by an interrupted apply
		if strings.HasPrefix(d.Name(), TempPrefix) {
			return nil
		}

		format := FormatForPath(path)
		if format == gain.FormatUnknown {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if excluded(rel, opts.Exclude) {
			return nil
		}

		files = append(files, File{Path: path, Rel: rel, Format: format})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
