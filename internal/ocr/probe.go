package ocr

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/rotisserie/eris"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Probe reports the file size and, for images, the decoded format and
// dimensions. Undecodable images still return the size alongside the error.
func Probe(_ context.Context, path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: stat %s", path)
	}
	out := map[string]any{"size_bytes": info.Size()}

	if IsPDF(path) {
		out["format"] = "pdf"
		return out, nil
	}
	if !IsImage(path) {
		return out, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return out, eris.Wrapf(err, "ocr: open %s", path)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return out, eris.Wrapf(err, "ocr: decode image header %s", path)
	}
	out["format"] = format
	out["width"] = cfg.Width
	out["height"] = cfg.Height
	return out, nil
}
