//go:build gosseract

package ocr

import (
	"context"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/fallback"
)

// inProcessStrategy runs Tesseract through its C API. A fresh client is used
// per call since gosseract clients are not safe for concurrent use.
func inProcessStrategy(lang string) (fallback.Strategy, bool) {
	if lang == "" {
		lang = "eng"
	}
	return fallback.Strategy{
		Name:     "gosseract",
		Supports: IsImage,
		Extract: func(_ context.Context, path string) (fallback.Output, error) {
			client := gosseract.NewClient()
			defer client.Close()

			if err := client.SetLanguage(lang); err != nil {
				return fallback.Output{}, eris.Wrap(err, "ocr: gosseract set language")
			}
			if err := client.SetImage(path); err != nil {
				return fallback.Output{}, eris.Wrapf(err, "ocr: gosseract set image %s", path)
			}
			text, err := client.Text()
			if err != nil {
				return fallback.Output{}, eris.Wrapf(err, "ocr: gosseract recognize %s", path)
			}
			return fallback.Output{Text: text, Metadata: map[string]any{"language": lang}}, nil
		},
	}, true
}
