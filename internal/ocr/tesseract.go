package ocr

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/fallback"
)

// Tesseract runs the tesseract CLI on image files.
type Tesseract struct {
	binPath string
	lang    string
}

// NewTesseract creates a Tesseract extractor. Empty arguments select
// "tesseract" and "eng".
func NewTesseract(binPath, lang string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{binPath: binPath, lang: lang}
}

// ExtractText runs `tesseract <image> stdout -l <lang>` and returns stdout.
func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	bin, err := exec.LookPath(t.binPath)
	if err != nil {
		return "", eris.Wrapf(fallback.ErrUnavailable, "tesseract: %s not found", t.binPath)
	}

	cmd := exec.CommandContext(ctx, bin, imagePath, "stdout", "-l", t.lang)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract failed for %s: %s", imagePath, stderr.String())
	}
	return stdout.String(), nil
}

// Strategy adapts t to the fallback chain.
func (t *Tesseract) Strategy() fallback.Strategy {
	return fallback.Strategy{
		Name:     "tesseract",
		Supports: IsImage,
		Extract: func(ctx context.Context, path string) (fallback.Output, error) {
			text, err := t.ExtractText(ctx, path)
			return fallback.Output{Text: text, Metadata: map[string]any{"language": t.lang}}, err
		},
	}
}
