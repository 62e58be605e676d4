package ocr

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/fallback"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText runs pdftotext -layout on the given PDF and returns stdout.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	bin, err := exec.LookPath(p.binPath)
	if err != nil {
		return "", eris.Wrapf(fallback.ErrUnavailable, "pdftotext: %s not found", p.binPath)
	}

	cmd := exec.CommandContext(ctx, bin, "-layout", pdfPath, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}
	return stdout.String(), nil
}

// Strategy adapts p to the fallback chain.
func (p *PdfToText) Strategy() fallback.Strategy {
	return fallback.Strategy{
		Name:     "pdftotext",
		Supports: IsPDF,
		Extract: func(ctx context.Context, path string) (fallback.Output, error) {
			text, err := p.ExtractText(ctx, path)
			return fallback.Output{Text: text}, err
		},
	}
}
