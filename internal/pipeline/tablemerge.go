package pipeline

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/docrecon/internal/metrics"
	"github.com/sells-group/docrecon/internal/model"
)

// TableMerger joins table fragments that continue across page breaks. It
// holds no per-document state and may be shared between goroutines.
type TableMerger struct {
	normalizer *Normalizer
}

// NewTableMerger returns a merger that normalizes fragments with n.
func NewTableMerger(n *Normalizer) *TableMerger {
	if n == nil {
		n = NewNormalizer("")
	}
	return &TableMerger{normalizer: n}
}

// Fragment converts one table object found on page into a fragment.
func (m *TableMerger) Fragment(page int, t model.Table) (model.TableFragment, error) {
	nt, err := m.normalizer.Normalize(t)
	if err != nil {
		return model.TableFragment{}, err
	}
	loc := Locate(t.Prov, page)
	if page <= 0 {
		page = loc.Page
	}
	return model.TableFragment{
		Page:      page,
		BBox:      loc.BBox,
		Signature: Signature(nt.Columns),
		Table:     nt,
	}, nil
}

// mergeCursor points at the table the next fragment may continue.
type mergeCursor struct {
	idx int
}

func (c *mergeCursor) reset() { c.idx = -1 }

func (c *mergeCursor) continues(out []model.MergedTable, f model.TableFragment) bool {
	if c.idx < 0 {
		return false
	}
	prev := out[c.idx]
	return f.Page == prev.LastPage()+1 && slices.Equal(prev.Signature, f.Signature)
}

// Merge walks pages in ascending index order and returns the logical tables.
// A fragment continues the previous table only when it sits on the very next
// page with an identical column signature. A fragment that cannot be
// converted breaks continuity.
func (m *TableMerger) Merge(pages []model.Page) []model.MergedTable {
	ordered := slices.Clone(pages)
	slices.SortStableFunc(ordered, func(a, b model.Page) int { return cmp.Compare(a.Index, b.Index) })

	var out []model.MergedTable
	cur := mergeCursor{idx: -1}
	for _, page := range ordered {
		for i, tbl := range page.Tables {
			frag, err := m.Fragment(page.Index, tbl)
			if err != nil {
				zap.L().Debug("pipeline: skipping unconvertible table fragment",
					zap.Int("page", page.Index),
					zap.Int("table", i),
					zap.Error(err),
				)
				metrics.TableFragments.WithLabelValues("failed").Inc()
				cur.reset()
				continue
			}
			metrics.TableFragments.WithLabelValues("converted").Inc()

			if cur.continues(out, frag) {
				prev := &out[cur.idx]
				if !prev.Merged {
					metrics.TablesMerged.Inc()
				}
				prev.Rows = append(prev.Rows, frag.Table.Rows...)
				prev.Pages = append(prev.Pages, frag.Page)
				prev.BBoxes = append(prev.BBoxes, frag.BBox)
				prev.Merged = true
				continue
			}

			out = append(out, model.MergedTable{
				Pages:      []int{frag.Page},
				BBoxes:     []*model.BBox{frag.BBox},
				Caption:    tbl.Caption,
				Columns:    frag.Table.Columns,
				Rows:       append([][]string(nil), frag.Table.Rows...),
				HeaderInfo: frag.Table.HeaderInfo,
				Signature:  frag.Signature,
			})
			cur.idx = len(out) - 1
		}
	}
	return out
}
