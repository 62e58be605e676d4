package fallback

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// EngineSidecar is the engine name of the sidecar strategy.
const EngineSidecar = "sidecar"

// SidecarPaths lists candidate sidecar files for path in lookup order. For
// each extension the base name with the extension replaced comes first, then
// the full file name with the extension appended.
func SidecarPaths(path string, exts []string) []string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	seen := map[string]bool{path: true}
	var out []string
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		for _, candidate := range []string{base + ext, path + ext} {
			if seen[candidate] {
				continue
			}
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	return out
}

// Sidecar returns the strategy that reads a pre-computed text file next to the
// source. Subtitle files are reduced to their cue text.
func Sidecar(exts []string) Strategy {
	return Strategy{
		Name: EngineSidecar,
		Extract: func(_ context.Context, path string) (Output, error) {
			for _, candidate := range SidecarPaths(path, exts) {
				data, err := os.ReadFile(candidate)
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				if err != nil {
					return Output{}, eris.Wrapf(err, "fallback: read sidecar %s", candidate)
				}

				text := string(data)
				switch strings.ToLower(filepath.Ext(candidate)) {
				case ".srt", ".vtt":
					text = StripSubtitles(text)
				}
				text = strings.TrimSpace(text)
				if text == "" {
					continue
				}
				return Output{Text: text, Metadata: map[string]any{"sidecar_path": candidate}}, nil
			}
			return Output{}, eris.Wrapf(ErrUnavailable, "no sidecar for %s", filepath.Base(path))
		},
	}
}

var (
	cueNumber  = regexp.MustCompile(`^\d+$`)
	cueTiming  = regexp.MustCompile(`-->`)
	markupTags = regexp.MustCompile(`<[^>]+>`)
)

// StripSubtitles drops the WEBVTT header, NOTE blocks, cue numbers, timing
// lines and inline markup from SRT/VTT text.
func StripSubtitles(text string) string {
	var lines []string
	inNote := false
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		switch {
		case line == "":
			inNote = false
			continue
		case inNote:
			continue
		case strings.HasPrefix(line, "WEBVTT"):
			continue
		case strings.HasPrefix(line, "NOTE"):
			inNote = true
			continue
		case cueNumber.MatchString(line), cueTiming.MatchString(line):
			continue
		}
		if s := strings.TrimSpace(markupTags.ReplaceAllString(line, "")); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}
