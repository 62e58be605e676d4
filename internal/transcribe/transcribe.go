// Package transcribe builds the speech-to-text fallback chain for audio
// files.
package transcribe

import (
	"path/filepath"
	"strings"

	"github.com/sells-group/docrecon/internal/config"
	"github.com/sells-group/docrecon/internal/fallback"
)

// ChainName names the transcription chain in results, metrics and artifact
// files.
const ChainName = "transcript"

var audioExts = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".flac": true,
	".ogg": true, ".opus": true, ".aac": true, ".webm": true, ".mp4": true,
}

// IsAudio reports whether path has a supported audio extension.
func IsAudio(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// NewChain returns the transcription chain: the whisper CLI, then sidecar
// transcripts (.txt, .srt, .vtt by default).
func NewChain(cfg config.TranscribeConfig) *fallback.Chain {
	probe := NewFFprobe(cfg.FFprobePath)
	c := &fallback.Chain{Name: ChainName, Probe: probe.Probe}
	c.Append(
		NewWhisper(cfg.WhisperPath, cfg.Model).Strategy(),
		fallback.Sidecar(cfg.SidecarExts),
	)
	return c
}
