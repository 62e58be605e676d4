package fallback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrecon/internal/artifact"
	"github.com/sells-group/docrecon/internal/model"
)

func missingEngine(name string) Strategy {
	return Strategy{
		Name: name,
		Extract: func(context.Context, string) (Output, error) {
			return Output{}, eris.Wrapf(ErrUnavailable, "%s not found in PATH", name)
		},
	}
}

func fixedEngine(name, text string) Strategy {
	return Strategy{
		Name: name,
		Extract: func(context.Context, string) (Output, error) {
			return Output{Text: text, Metadata: map[string]any{"engine_version": "1"}}, nil
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestChain_SidecarWhenEngineMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	img := filepath.Join(dir, "scan.png")
	writeFile(t, img, "png bytes")
	writeFile(t, filepath.Join(dir, "scan.txt"), "  Invoice total $120  \n")

	c := &Chain{Name: "ocr", Strategies: []Strategy{missingEngine("tesseract"), Sidecar([]string{".txt"})}}
	res := c.Run(context.Background(), img)

	assert.Equal(t, EngineSidecar, res.Engine)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "Invoice total $120", res.Text)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "tesseract: unavailable")
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, AttemptUnavailable, res.Attempts[0].Outcome)
	assert.Equal(t, AttemptOK, res.Attempts[1].Outcome)
	assert.Equal(t, filepath.Join(dir, "scan.txt"), res.Metadata["sidecar_path"])
}

func TestChain_UnavailableWithoutEngineOrSidecar(t *testing.T) {
	t.Parallel()

	img := filepath.Join(t.TempDir(), "scan.png")
	writeFile(t, img, "png bytes")

	c := &Chain{Name: "ocr", Strategies: []Strategy{missingEngine("tesseract"), Sidecar([]string{".txt"})}}
	res := c.Run(context.Background(), img)

	assert.Equal(t, EngineUnavailable, res.Engine)
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.Equal(t, "", res.Text)
	assert.Len(t, res.Warnings, 2)
}

func TestChain_FirstSuccessWins(t *testing.T) {
	t.Parallel()

	calls := 0
	counting := Strategy{Name: "second", Extract: func(context.Context, string) (Output, error) {
		calls++
		return Output{Text: "never"}, nil
	}}
	c := &Chain{Name: "ocr"}
	c.Append(fixedEngine("first", "hello"), counting)

	res := c.Run(context.Background(), "x.png")
	assert.Equal(t, "first", res.Engine)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, "1", res.Metadata["engine_version"])
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 0, calls)
}

func TestChain_OutcomesAndSkips(t *testing.T) {
	t.Parallel()

	onlyPDF := fixedEngine("pdftotext", "pdf text")
	onlyPDF.Supports = func(path string) bool { return strings.HasSuffix(path, ".pdf") }
	broken := Strategy{Name: "broken", Extract: func(context.Context, string) (Output, error) {
		return Output{}, fmt.Errorf("exit status 1")
	}}
	blank := fixedEngine("blank", "   ")

	c := &Chain{Name: "ocr", Strategies: []Strategy{onlyPDF, broken, blank}}
	res := c.Run(context.Background(), "photo.jpg")

	assert.Equal(t, EngineUnavailable, res.Engine)
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, AttemptSkipped, res.Attempts[0].Outcome)
	assert.Equal(t, AttemptFailed, res.Attempts[1].Outcome)
	assert.Equal(t, AttemptEmpty, res.Attempts[2].Outcome)
	// Skips are not warnings.
	assert.Len(t, res.Warnings, 2)
}

func TestChain_ProbeFailureIsWarning(t *testing.T) {
	t.Parallel()

	c := &Chain{
		Name:       "transcript",
		Strategies: []Strategy{fixedEngine("whisper", "hi")},
		Probe: func(context.Context, string) (map[string]any, error) {
			return map[string]any{"size_bytes": int64(3)}, eris.Wrap(ErrUnavailable, "ffprobe")
		},
	}
	res := c.Run(context.Background(), "a.wav")
	assert.Equal(t, "whisper", res.Engine)
	require.Len(t, res.Warnings, 1)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "probe: ffprobe"))
	assert.Equal(t, int64(3), res.Probe["size_bytes"])
}

func TestSidecarPaths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"/a/talk.txt", "/a/talk.wav.txt",
		"/a/talk.srt", "/a/talk.wav.srt",
	}, SidecarPaths("/a/talk.wav", []string{".txt", "srt", " "}))

	// The source itself is never its own sidecar.
	assert.Equal(t, []string{"/a/notes.txt.txt"}, SidecarPaths("/a/notes.txt", []string{".txt"}))
}

func TestSidecar_FullNameAndSubtitles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audio := filepath.Join(dir, "call.mp3")
	writeFile(t, filepath.Join(dir, "call.mp3.vtt"), "WEBVTT\n\nNOTE produced by hand\nignore me\n\n1\n00:00:00.000 --> 00:00:02.000\n<v Ana>Revenue grew 12%.</v>\n\n2\n00:00:02.000 --> 00:00:04.000\nThanks.\n")

	out, err := Sidecar([]string{".txt", ".srt", ".vtt"}).Extract(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew 12%.\nThanks.", out.Text)
}

func TestSidecar_EmptyFileSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audio := filepath.Join(dir, "call.mp3")
	writeFile(t, filepath.Join(dir, "call.txt"), "  \n")
	writeFile(t, filepath.Join(dir, "call.srt"), "1\n00:00:01,000 --> 00:00:02,000\nHello there\n")

	out, err := Sidecar([]string{".txt", ".srt"}).Extract(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out.Text)
}

func TestStripSubtitles(t *testing.T) {
	t.Parallel()

	in := "\ufeff1\r\n00:00:01,000 --> 00:00:03,000\r\n<i>First</i> line\r\n\r\n2\r\n00:00:03,000 --> 00:00:05,000\r\nSecond\r\n"
	assert.Equal(t, "First line\nSecond", StripSubtitles(in))
	assert.Equal(t, "", StripSubtitles("WEBVTT\n\n"))
}

func TestPersist(t *testing.T) {
	t.Parallel()

	layout := artifact.NewLayout(t.TempDir())
	art := model.Artifact{ID: "0123456789abcdef", Kind: model.ArtifactImage, SourcePath: "/in/scan.png"}

	res := Result{
		Chain:    "ocr",
		Engine:   EngineUnavailable,
		Status:   StatusUnavailable,
		Warnings: []string{"tesseract: unavailable: not found"},
		Attempts: []Attempt{{Engine: "tesseract", Outcome: AttemptUnavailable, Error: "not found"}},
		Probe:    map[string]any{"format": "png"},
	}
	path, err := Persist(layout, art, res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(layout.Dir(art), "ocr.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	meta, err := layout.ReadMeta(art)
	require.NoError(t, err)
	assert.Equal(t, "ocr.txt", meta.Files["ocr"])
	require.Contains(t, meta.Extractions, "ocr")
	ex := meta.Extractions["ocr"]
	assert.Equal(t, EngineUnavailable, ex.Engine)
	assert.Equal(t, StatusUnavailable, ex.Status)
	assert.Equal(t, []string{"tesseract: unavailable: not found"}, ex.Attempts)
	assert.Equal(t, "png", ex.Probe["format"])
}
