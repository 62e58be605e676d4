package artifact

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/model"
)

// MetaFile is the sidecar listing everything written for an artifact.
const MetaFile = "meta.json"

// Meta is the JSON sidecar of one artifact directory. Files maps logical
// names to paths relative to the artifact directory.
type Meta struct {
	ArtifactID  string                 `json:"artifact_id"`
	Kind        model.ArtifactKind     `json:"kind"`
	Source      string                 `json:"source"`
	SHA256      string                 `json:"sha256"`
	Files       map[string]string      `json:"files"`
	Warnings    []string               `json:"warnings"`
	Extractions map[string]*Extraction `json:"extractions,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Extraction records one fallback chain run.
type Extraction struct {
	Engine   string         `json:"engine"`
	Status   string         `json:"status"`
	TextFile string         `json:"text_file"`
	Warnings []string       `json:"warnings"`
	Attempts []string       `json:"attempts"`
	Probe    map[string]any `json:"probe,omitempty"`
}

// ReadMeta loads the sidecar of art. A missing sidecar yields a fresh Meta.
func (l *Layout) ReadMeta(art model.Artifact) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(l.Dir(art), MetaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &Meta{
			ArtifactID: art.ID,
			Kind:       art.Kind,
			Source:     art.SourcePath,
			SHA256:     art.SHA256,
			Files:      map[string]string{},
		}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "artifact: read meta")
	}

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "artifact: parse meta")
	}
	if m.Files == nil {
		m.Files = map[string]string{}
	}
	return &m, nil
}

// UpdateMeta applies fn to the sidecar of art and writes it back.
func (l *Layout) UpdateMeta(art model.Artifact, fn func(*Meta)) (*Meta, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.ReadMeta(art)
	if err != nil {
		return nil, err
	}
	fn(m)
	m.UpdatedAt = time.Now().UTC()

	if _, err := l.WriteJSON(art, MetaFile, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordFiles adds written files to the sidecar under their logical names.
// paths are full paths as returned by WriteFile.
func (l *Layout) RecordFiles(art model.Artifact, files map[string]string, warnings ...string) error {
	dir := l.Dir(art)
	_, err := l.UpdateMeta(art, func(m *Meta) {
		for name, path := range files {
			if rel, relErr := filepath.Rel(dir, path); relErr == nil {
				path = rel
			}
			m.Files[name] = filepath.ToSlash(path)
		}
		m.Warnings = append(m.Warnings, warnings...)
	})
	return err
}
