// Package artifact manages the exported file tree. Every ingested file gets
// a content-addressed directory <root>/<kind>/<artifact_id>/ holding its
// exports and a meta.json that lists them.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/model"
)

// idLength is the number of hex digits of the content hash used as ID.
const idLength = 16

// NewArtifact hashes the file at path and returns its Artifact record.
func NewArtifact(kind model.ArtifactKind, path string) (model.Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Artifact{}, eris.Wrapf(err, "artifact: open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return model.Artifact{}, eris.Wrapf(err, "artifact: hash %s", path)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return model.Artifact{
		ID:         sum[:idLength],
		Kind:       kind,
		SourcePath: abs,
		SHA256:     sum,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Layout writes files below a root directory.
type Layout struct {
	root string
	mu   sync.Mutex // guards meta.json read-modify-write
}

// NewLayout returns a Layout rooted at root.
func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

// Dir returns the directory of art.
func (l *Layout) Dir(art model.Artifact) string {
	return filepath.Join(l.root, string(art.Kind), art.ID)
}

// WriteFile stores data at name inside the artifact directory and returns
// the full path. name may contain subdirectories but must stay local.
func (l *Layout) WriteFile(art model.Artifact, name string, data []byte) (string, error) {
	if art.ID == "" || art.Kind == "" {
		return "", eris.New("artifact: artifact needs an id and a kind")
	}
	if !filepath.IsLocal(name) {
		return "", eris.Errorf("artifact: file name %q escapes the artifact directory", name)
	}

	path := filepath.Join(l.Dir(art), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", eris.Wrapf(err, "artifact: create dir for %s", name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "artifact: write %s", name)
	}
	return path, nil
}

// WriteJSON stores v as indented JSON.
func (l *Layout) WriteJSON(art model.Artifact, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", eris.Wrapf(err, "artifact: marshal %s", name)
	}
	return l.WriteFile(art, name, data)
}

// Images returns a writer that stores picture payloads under images/.
func (l *Layout) Images(art model.Artifact) *ImageDir {
	return &ImageDir{layout: l, art: art}
}

// ImageDir stores images for one artifact.
type ImageDir struct {
	layout *Layout
	art    model.Artifact
}

// WriteImage stores data as images/<name>.
func (d *ImageDir) WriteImage(name string, data []byte) (string, error) {
	return d.layout.WriteFile(d.art, filepath.Join("images", filepath.Base(name)), data)
}
