package pipeline

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrecon/internal/model"
)

// ImageWriter stores an embedded picture payload and returns its path.
type ImageWriter interface {
	WriteImage(name string, data []byte) (string, error)
}

// ExtractCharts turns every picture into a ChartRecord. Embedded data: URIs
// are written through w when it is non-nil; file URIs are passed through.
func ExtractCharts(doc model.Document, w ImageWriter) []model.ChartRecord {
	var out []model.ChartRecord
	for i, pic := range doc.Pictures {
		loc := Locate(pic.Prov, 0)
		rec := model.ChartRecord{
			Caption: strings.TrimSpace(pic.Caption),
			Page:    loc.Page,
			BBox:    loc.BBox,
		}

		if pic.Image != nil {
			uri := strings.TrimSpace(pic.Image.URI)
			switch {
			case strings.HasPrefix(uri, "data:"):
				if w == nil {
					break
				}
				path, err := writeDataURI(w, fmt.Sprintf("picture_%d", i+1), uri)
				if err != nil {
					zap.L().Debug("pipeline: picture payload not exported",
						zap.Int("picture", i),
						zap.Error(err),
					)
					break
				}
				rec.ImagePath = path
			case uri != "":
				rec.ImagePath = strings.TrimPrefix(uri, "file://")
			}
		}
		out = append(out, rec)
	}
	return out
}

// writeDataURI decodes a base64 data URI and hands it to w with an extension
// derived from its media type.
func writeDataURI(w ImageWriter, base, uri string) (string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", eris.New("pipeline: data uri has no payload")
	}

	mediaType, params, _ := strings.Cut(header, ";")
	var data []byte
	if strings.Contains(params, "base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", eris.Wrap(err, "pipeline: decode picture payload")
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return "", eris.Wrap(err, "pipeline: unescape picture payload")
		}
		data = []byte(unescaped)
	}

	ext := ".bin"
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	path, err := w.WriteImage(base+ext, data)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: write picture")
	}
	return path, nil
}
