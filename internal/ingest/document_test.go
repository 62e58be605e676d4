package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrecon/internal/model"
	"github.com/sells-group/docrecon/internal/pipeline"
)

func TestDecodeDocument(t *testing.T) {
	t.Parallel()

	doc, err := DecodeDocument("fallback", []byte(`{"texts":[{"label":"title","text":"Q3"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "fallback", doc.Name)
	require.Len(t, doc.Texts, 1)
	assert.Equal(t, "Q3", doc.Texts[0].Text)

	doc, err = DecodeDocument("fallback", []byte(`{"name":"q3-report","pages":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "q3-report", doc.Name)
}

func TestDecodeDocument_Repair(t *testing.T) {
	t.Parallel()

	raw := `{"name": "weekly", "texts": [{"label": "paragraph", "text": "Revenue rose",},],}`
	doc, err := DecodeDocument("x", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "weekly", doc.Name)
	require.Len(t, doc.Texts, 1)
	assert.Equal(t, "Revenue rose", doc.Texts[0].Text)
}

func TestDecodeDocument_MalformedTableKeepsDocument(t *testing.T) {
	t.Parallel()

	raw := `{
		"name": "weekly",
		"pages": [
			{"page_no": 1, "tables": [
				{"caption": "Spend", "cells": [{"row_index": 0, "column_index": 0, "row_span": "2", "col_span": 1, "text": "Item"}]},
				{"grid": [["Item", "Q3"], ["Revenue", "100"]]}
			]}
		],
		"texts": [
			{"label": "title", "text": "Weekly update"},
			{"label": "paragraph", "text": "Ad spend was $300k."}
		]
	}`

	doc, err := DecodeDocument("weekly.json", []byte(raw))
	require.NoError(t, err)
	require.Len(t, doc.Texts, 2)
	assert.Equal(t, "Ad spend was $300k.", doc.Texts[1].Text)

	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Tables, 2)
	assert.ErrorIs(t, doc.Pages[0].Tables[0].Err, model.ErrMalformedTable)
	assert.Equal(t, "Spend", doc.Pages[0].Tables[0].Caption)
	assert.NoError(t, doc.Pages[0].Tables[1].Err)

	tables := pipeline.NewTableMerger(nil).Merge(doc.Pages)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"Item", "Q3"}, tables[0].Columns)
}

func TestDecodeDocument_Unrepairable(t *testing.T) {
	t.Parallel()

	_, err := DecodeDocument("nums", []byte(`[1, 2, 3]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: decode nums")
}

func TestTextDocument(t *testing.T) {
	t.Parallel()

	doc := TextDocument("memo", "First   paragraph\r\nwraps here.\r\n\r\n\n  Second one.  \n\n   \n")
	assert.Equal(t, "memo", doc.Name)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].Index)
	require.Len(t, doc.Texts, 2)
	assert.Equal(t, "First paragraph wraps here.", doc.Texts[0].Text)
	assert.Equal(t, "Second one.", doc.Texts[1].Text)
	assert.Equal(t, "paragraph", doc.Texts[1].Label)
	assert.Equal(t, 1, doc.Texts[1].Prov[0].Page)

	assert.Empty(t, TextDocument("blank", "  \n\n ").Texts)
}

func TestLoadDocument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	tests := []struct {
		name      string
		file      string
		content   string
		wantName  string
		wantTexts int
		wantErr   error
	}{
		{name: "json", file: "a.json", content: `{"texts":[{"label":"paragraph","text":"hi"}]}`, wantName: "a", wantTexts: 1},
		{name: "markdown", file: "b.md", content: "# Title\n\nBody", wantName: "b", wantTexts: 2},
		{name: "text", file: "c.txt", content: "one\n\ntwo", wantName: "c", wantTexts: 2},
		{name: "unsupported", file: "d.docx", content: "PK", wantErr: ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := LoadDocument(write(tt.file, tt.content))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, doc.Name)
			assert.Len(t, doc.Texts, tt.wantTexts)
		})
	}

	_, err := LoadDocument(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
