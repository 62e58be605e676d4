package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrecon/internal/model"
)

func TestLocate_FirstUsableEntry(t *testing.T) {
	t.Parallel()

	box := &model.BBox{Left: 1, Top: 2, Right: 3, Bottom: 4}
	loc := Locate([]model.Provenance{{Page: 0}, {Page: 3, BBox: box}}, 9)

	assert.True(t, loc.Found)
	assert.Equal(t, 3, loc.Page)
	require.NotNil(t, loc.BBox)
	assert.Equal(t, *box, *loc.BBox)

	// The returned box is a copy.
	box.Left = 100
	assert.Equal(t, 1.0, loc.BBox.Left)
}

func TestLocate_MissingBBox(t *testing.T) {
	t.Parallel()

	loc := Locate([]model.Provenance{{Page: 2}}, 0)
	assert.True(t, loc.Found)
	assert.Equal(t, 2, loc.Page)
	assert.Nil(t, loc.BBox)

	loc = Locate([]model.Provenance{{Page: 2, BBox: &model.BBox{}}}, 0)
	assert.Nil(t, loc.BBox)
}

func TestLocate_Fallback(t *testing.T) {
	t.Parallel()

	loc := Locate(nil, 5)
	assert.False(t, loc.Found)
	assert.Equal(t, 5, loc.Page)

	loc = Locate([]model.Provenance{{Page: -1}}, 0)
	assert.False(t, loc.Found)
	assert.Equal(t, 0, loc.Page)
}
