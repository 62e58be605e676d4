// Package ocr builds the text-extraction fallback chain for scanned images
// and PDFs.
package ocr

import (
	"path/filepath"
	"strings"

	"github.com/sells-group/docrecon/internal/config"
	"github.com/sells-group/docrecon/internal/fallback"
)

// ChainName names the OCR chain in results, metrics and artifact files.
const ChainName = "ocr"

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".tif": true, ".tiff": true, ".bmp": true, ".webp": true,
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// IsPDF reports whether path is a PDF by extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// NewChain returns the OCR chain: in-process Tesseract when compiled in, the
// tesseract CLI, pdftotext for PDFs, Mistral OCR when a key is configured,
// and finally sidecar text files.
func NewChain(cfg config.OCRConfig) *fallback.Chain {
	c := &fallback.Chain{Name: ChainName, Probe: Probe}

	if s, ok := inProcessStrategy(cfg.Language); ok {
		c.Append(s)
	}
	c.Append(
		NewTesseract(cfg.TesseractPath, cfg.Language).Strategy(),
		NewPdfToText(cfg.PdfToTextPath).Strategy(),
	)
	if cfg.MistralKey != "" {
		c.Append(NewMistralOCR(cfg.MistralKey, cfg.MistralModel, cfg.MistralRPS).Strategy())
	}
	c.Append(fallback.Sidecar(cfg.SidecarExts))
	return c
}
