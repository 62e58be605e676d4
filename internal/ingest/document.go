// Package ingest turns source files into pipeline jobs: converted document
// models, markdown, plain text, spreadsheets, and files that need OCR or
// transcription first.
package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrecon/internal/model"
)

// ErrUnsupported is returned for files no loader understands.
var ErrUnsupported = eris.New("ingest: unsupported file type")

// LoadDocument reads path as a document model. .json files are converter
// output, .md and .markdown are markdown, .txt is plain text.
func LoadDocument(path string) (model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "ingest: read %s", path)
	}
	name := baseName(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeDocument(name, data)
	case ".md", ".markdown":
		return MarkdownDocument(name, data), nil
	case ".txt":
		return TextDocument(name, string(data)), nil
	default:
		return model.Document{}, eris.Wrapf(ErrUnsupported, "ingest: %s", path)
	}
}

// DecodeDocument decodes converter JSON. Malformed input gets one repair
// attempt before the original decode error is returned.
func DecodeDocument(name string, data []byte) (model.Document, error) {
	var doc model.Document
	err := json.Unmarshal(data, &doc)
	if err != nil {
		repaired, repairErr := jsonrepair.RepairJSON(string(data))
		if repairErr != nil {
			return model.Document{}, eris.Wrapf(err, "ingest: decode %s", name)
		}
		doc = model.Document{}
		if retryErr := json.Unmarshal([]byte(repaired), &doc); retryErr != nil {
			return model.Document{}, eris.Wrapf(err, "ingest: decode %s", name)
		}
		zap.L().Warn("ingest: repaired malformed document JSON",
			zap.String("document", name),
			zap.Error(err),
		)
	}
	if doc.Name == "" {
		doc.Name = name
	}
	return doc, nil
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// TextDocument wraps plain text as a single-page document with one
// paragraph per blank-line separated block.
func TextDocument(name, text string) model.Document {
	doc := model.Document{Name: name, Pages: []model.Page{{Index: 1}}}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, block := range blankLines.Split(text, -1) {
		block = strings.Join(strings.Fields(block), " ")
		if block == "" {
			continue
		}
		doc.Texts = append(doc.Texts, model.TextItem{
			Label: "paragraph",
			Text:  block,
			Prov:  []model.Provenance{{Page: 1}},
		})
	}
	return doc
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
