package model

import "time"

// ArtifactKind is the category of an ingested source file.
type ArtifactKind string

const (
	ArtifactDocument    ArtifactKind = "document"
	ArtifactSpreadsheet ArtifactKind = "spreadsheet"
	ArtifactImage       ArtifactKind = "image"
	ArtifactAudio       ArtifactKind = "audio"
)

// Artifact is one ingested source file. ID is derived from the file content.
type Artifact struct {
	ID         string       `json:"id"`
	Kind       ArtifactKind `json:"kind"`
	SourcePath string       `json:"source_path"`
	SHA256     string       `json:"sha256"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ContentType classifies an Evidence payload.
type ContentType string

const (
	ContentTable          ContentType = "table"
	ContentChart          ContentType = "chart"
	ContentFormula        ContentType = "formula"
	ContentCSV            ContentType = "csv"
	ContentXLSX           ContentType = "xlsx"
	ContentFinancialTable ContentType = "financial_table"
)

// AllContentTypes returns every defined evidence content type.
func AllContentTypes() []ContentType {
	return []ContentType{
		ContentTable,
		ContentChart,
		ContentFormula,
		ContentCSV,
		ContentXLSX,
		ContentFinancialTable,
	}
}

// Evidence is a persisted, citable piece of extracted content.
type Evidence struct {
	ID          string         `json:"id"`
	ArtifactID  string         `json:"artifact_id"`
	Locator     string         `json:"locator"`
	ContentType ContentType    `json:"content_type"`
	Preview     string         `json:"preview"`
	FullData    map[string]any `json:"full_data"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Fact is a persisted metric aggregate. EvidenceID is a weak reference and
// may be empty.
type Fact struct {
	ID         string             `json:"id"`
	ArtifactID string             `json:"artifact_id"`
	ReportWeek string             `json:"report_week"`
	Entity     string             `json:"entity"`
	Metrics    map[string]float64 `json:"metrics"`
	EvidenceID string             `json:"evidence_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Bundle is an Evidence record with the Facts derived from it. The sink
// assigns the evidence ID, which is then stamped on each fact. Evidence is
// nil for facts that cite nothing.
type Bundle struct {
	Evidence *Evidence
	Facts    []Fact
}
