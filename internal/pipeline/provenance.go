package pipeline

import "github.com/sells-group/docrecon/internal/model"

// Location is the resolved page/region of a document element.
type Location struct {
	Page  int
	BBox  *model.BBox
	Found bool
}

// Locate returns the first usable provenance entry. Entries without a
// positive page are skipped; a missing bbox is allowed. When nothing usable
// exists the fallback page is returned with Found=false.
func Locate(prov []model.Provenance, fallbackPage int) Location {
	for _, p := range prov {
		if p.Page <= 0 {
			continue
		}
		loc := Location{Page: p.Page, Found: true}
		if p.BBox != nil && !p.BBox.IsZero() {
			b := *p.BBox
			loc.BBox = &b
		}
		return loc
	}
	return Location{Page: fallbackPage}
}
