//go:build !gosseract

package ocr

import "github.com/sells-group/docrecon/internal/fallback"

// inProcessStrategy is unavailable without the gosseract build tag; the
// tesseract CLI strategy covers the same engine.
func inProcessStrategy(string) (fallback.Strategy, bool) {
	return fallback.Strategy{}, false
}
