package fallback

import (
	"github.com/sells-group/docrecon/internal/artifact"
	"github.com/sells-group/docrecon/internal/model"
)

// Persist writes res.Text to <chain>.txt in the artifact directory and records
// the run in meta.json. Both files are written whatever the outcome, so an
// unavailable result still leaves an (empty) text file behind.
func Persist(layout *artifact.Layout, art model.Artifact, res Result) (string, error) {
	name := res.Chain + ".txt"
	path, err := layout.WriteFile(art, name, []byte(res.Text))
	if err != nil {
		return "", err
	}

	attempts := make([]string, len(res.Attempts))
	for i, a := range res.Attempts {
		attempts[i] = a.String()
	}

	_, err = layout.UpdateMeta(art, func(m *artifact.Meta) {
		m.Files[res.Chain] = name
		if m.Extractions == nil {
			m.Extractions = map[string]*artifact.Extraction{}
		}
		m.Extractions[res.Chain] = &artifact.Extraction{
			Engine:   res.Engine,
			Status:   res.Status,
			TextFile: name,
			Warnings: res.Warnings,
			Attempts: attempts,
			Probe:    res.Probe,
		}
	})
	if err != nil {
		return path, err
	}
	return path, nil
}
