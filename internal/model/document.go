package model

import (
	"bytes"
	"encoding/json"
)

// Document is the converted document model handed over by the conversion step.
// Any of the sequences may be empty.
type Document struct {
	Name     string     `json:"name"`
	Pages    []Page     `json:"pages"`
	Texts    []TextItem `json:"texts"`
	Pictures []Picture  `json:"pictures"`
}

// Page is one page of the converted document.
type Page struct {
	Index    int       `json:"page_no"`
	Tables   []Table   `json:"tables"`
	Elements []Element `json:"elements"`
}

// Element is a labeled page element (equation, caption, list item, ...).
type Element struct {
	Label string       `json:"label"`
	Text  string       `json:"text"`
	Prov  []Provenance `json:"prov"`
}

// TextItem is one entry of the flat text stream.
type TextItem struct {
	Label string       `json:"label"`
	Text  string       `json:"text"`
	Level int          `json:"level,omitempty"`
	Prov  []Provenance `json:"prov"`
}

// Picture is a detected figure.
type Picture struct {
	Label   string       `json:"label,omitempty"`
	Caption string       `json:"caption"`
	Image   *ImageRef    `json:"image,omitempty"`
	Prov    []Provenance `json:"prov"`
}

// ImageRef points at the picture payload, either a file path or a data URI.
type ImageRef struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimetype,omitempty"`
}

// Provenance ties an element to a page and a region on it.
type Provenance struct {
	Page int   `json:"page_no"`
	BBox *BBox `json:"bbox,omitempty"`
}

// BBox is a bounding box in page coordinates.
type BBox struct {
	Left   float64 `json:"l"`
	Top    float64 `json:"t"`
	Right  float64 `json:"r"`
	Bottom float64 `json:"b"`
	Origin string  `json:"coord_origin,omitempty"`
}

// IsZero reports whether the box carries no coordinates.
func (b BBox) IsZero() bool {
	return b.Left == 0 && b.Top == 0 && b.Right == 0 && b.Bottom == 0
}

// UnmarshalJSON accepts {"l","t","r","b"}, {"x0","y0","x1","y1"} or a
// four-number array. Anything else decodes to an empty box.
func (b *BBox) UnmarshalJSON(data []byte) error {
	*b = BBox{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(data, &arr); err != nil || len(arr) != 4 {
			return nil
		}
		b.Left, b.Top, b.Right, b.Bottom = arr[0], arr[1], arr[2], arr[3]
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	num := func(keys ...string) float64 {
		for _, k := range keys {
			v, ok := raw[k]
			if !ok {
				continue
			}
			var f float64
			if json.Unmarshal(v, &f) == nil {
				return f
			}
		}
		return 0
	}
	b.Left = num("l", "x0", "left")
	b.Top = num("t", "y0", "top")
	b.Right = num("r", "x1", "right")
	b.Bottom = num("b", "y1", "bottom")
	if v, ok := raw["coord_origin"]; ok {
		_ = json.Unmarshal(v, &b.Origin)
	}
	return nil
}
