package transcribe

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/fallback"
)

// Whisper runs the openai-whisper CLI.
type Whisper struct {
	binPath string
	model   string
}

// NewWhisper creates a Whisper transcriber. Empty arguments select "whisper"
// and the "base" model.
func NewWhisper(binPath, model string) *Whisper {
	if binPath == "" {
		binPath = "whisper"
	}
	if model == "" {
		model = "base"
	}
	return &Whisper{binPath: binPath, model: model}
}

// Transcribe runs whisper into a scratch directory and returns the contents
// of the .txt transcript it writes.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (string, error) {
	bin, err := exec.LookPath(w.binPath)
	if err != nil {
		return "", eris.Wrapf(fallback.ErrUnavailable, "whisper: %s not found", w.binPath)
	}

	outDir, err := os.MkdirTemp("", "docrecon-whisper-*")
	if err != nil {
		return "", eris.Wrap(err, "transcribe: create output dir")
	}
	defer os.RemoveAll(outDir) //nolint:errcheck

	cmd := exec.CommandContext(ctx, bin, audioPath,
		"--model", w.model,
		"--output_format", "txt",
		"--output_dir", outDir,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "transcribe: whisper failed for %s: %s", audioPath, stderr.String())
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".txt"))
	if err != nil {
		return "", eris.Wrapf(err, "transcribe: read whisper output for %s", audioPath)
	}
	return string(data), nil
}

// Strategy adapts w to the fallback chain.
func (w *Whisper) Strategy() fallback.Strategy {
	return fallback.Strategy{
		Name:     "whisper",
		Supports: IsAudio,
		Extract: func(ctx context.Context, path string) (fallback.Output, error) {
			text, err := w.Transcribe(ctx, path)
			return fallback.Output{Text: text, Metadata: map[string]any{"model": w.model}}, err
		},
	}
}
