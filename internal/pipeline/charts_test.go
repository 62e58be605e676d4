package pipeline

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrecon/internal/model"
)

type memImages struct {
	files map[string][]byte
	err   error
}

func (m *memImages) WriteImage(name string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = data
	return "/out/" + name, nil
}

func TestExtractCharts(t *testing.T) {
	t.Parallel()

	payload := []byte{0x89, 'P', 'N', 'G'}
	doc := model.Document{Pictures: []model.Picture{
		{
			Caption: " Revenue by quarter ",
			Image:   &model.ImageRef{URI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)},
			Prov:    []model.Provenance{{Page: 2, BBox: &model.BBox{Left: 1, Right: 2, Top: 3, Bottom: 4}}},
		},
		{Caption: "Logo", Image: &model.ImageRef{URI: "file:///tmp/logo.png"}},
		{},
	}}

	w := &memImages{}
	charts := ExtractCharts(doc, w)
	require.Len(t, charts, 3)

	assert.Equal(t, "Revenue by quarter", charts[0].Caption)
	assert.Equal(t, 2, charts[0].Page)
	assert.Equal(t, "/out/picture_1.png", charts[0].ImagePath)
	require.NotNil(t, charts[0].BBox)
	assert.Equal(t, payload, w.files["picture_1.png"])

	assert.Equal(t, "/tmp/logo.png", charts[1].ImagePath)
	assert.Equal(t, 0, charts[1].Page)

	assert.Empty(t, charts[2].ImagePath)
}

func TestExtractCharts_NoWriterOrBadPayload(t *testing.T) {
	t.Parallel()

	doc := model.Document{Pictures: []model.Picture{
		{Image: &model.ImageRef{URI: "data:image/png;base64,AAAA"}},
		{Image: &model.ImageRef{URI: "data:image/png;base64,@@not-base64@@"}},
		{Image: &model.ImageRef{URI: "data:image/png"}},
	}}

	charts := ExtractCharts(doc, nil)
	require.Len(t, charts, 3)
	for _, c := range charts {
		assert.Empty(t, c.ImagePath)
	}

	charts = ExtractCharts(doc, &memImages{err: errors.New("disk full")})
	for _, c := range charts {
		assert.Empty(t, c.ImagePath)
	}
}

func TestWriteDataURI_Plain(t *testing.T) {
	t.Parallel()

	w := &memImages{}
	path, err := writeDataURI(w, "fig", "data:image/svg+xml,%3Csvg%3E%3C%2Fsvg%3E")
	require.NoError(t, err)
	assert.Equal(t, "/out/fig.svg", path)
	assert.Equal(t, "<svg></svg>", string(w.files["fig.svg"]))
}
