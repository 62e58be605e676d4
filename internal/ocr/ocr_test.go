package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/docrecon/internal/config"
	"github.com/sells-group/docrecon/internal/fallback"
	"github.com/sells-group/docrecon/internal/resilience"
)

func fakeBinary(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func strategyNames(c *fallback.Chain) []string {
	var out []string
	for _, s := range c.Strategies {
		out = append(out, s.Name)
	}
	return out
}

func TestNewChain_Order(t *testing.T) {
	c := NewChain(config.OCRConfig{SidecarExts: []string{".txt"}})
	names := strategyNames(c)
	assert.Equal(t, ChainName, c.Name)
	assert.Equal(t, "sidecar", names[len(names)-1])
	assert.NotContains(t, names, "mistral")
	assert.Contains(t, names, "tesseract")
	assert.Contains(t, names, "pdftotext")

	c = NewChain(config.OCRConfig{MistralKey: "mk", SidecarExts: []string{".txt"}})
	names = strategyNames(c)
	assert.Equal(t, []string{"mistral", "sidecar"}, names[len(names)-2:])
}

func TestChain_SidecarWhenNoEngine(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "receipt.png")
	writePNG(t, img, 4, 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipt.txt"), []byte("\nTotal due $48.10\n"), 0o644))

	c := &fallback.Chain{Name: ChainName, Probe: Probe}
	c.Append(NewTesseract("/nonexistent/tesseract", "eng").Strategy(), fallback.Sidecar([]string{".txt"}))

	res := c.Run(context.Background(), img)
	assert.Equal(t, "sidecar", res.Engine)
	assert.Equal(t, "Total due $48.10", res.Text)
	assert.Equal(t, "png", res.Probe["format"])
	assert.Equal(t, 4, res.Probe["width"])

	require.NoError(t, os.Remove(filepath.Join(dir, "receipt.txt")))
	res = c.Run(context.Background(), img)
	assert.Equal(t, fallback.EngineUnavailable, res.Engine)
	assert.Equal(t, "", res.Text)
}

func TestTesseract_ExtractText(t *testing.T) {
	bin := fakeBinary(t, "tesseract", `echo "args: $2 $3 $4"; echo "Invoice 42"`+"\n")

	text, err := NewTesseract(bin, "deu").ExtractText(context.Background(), "/tmp/scan.png")
	require.NoError(t, err)
	assert.Contains(t, text, "args: stdout -l deu")
	assert.Contains(t, text, "Invoice 42")
}

func TestTesseract_Defaults(t *testing.T) {
	tess := NewTesseract("", "")
	assert.Equal(t, "tesseract", tess.binPath)
	assert.Equal(t, "eng", tess.lang)
}

func TestTesseract_Unavailable(t *testing.T) {
	_, err := NewTesseract("/nonexistent/tesseract", "eng").ExtractText(context.Background(), "a.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fallback.ErrUnavailable))
}

func TestTesseract_Failure(t *testing.T) {
	bin := fakeBinary(t, "tesseract", "echo 'cannot read image' >&2\nexit 1\n")

	_, err := NewTesseract(bin, "eng").ExtractText(context.Background(), "a.png")
	require.Error(t, err)
	assert.False(t, errors.Is(err, fallback.ErrUnavailable))
	assert.Contains(t, err.Error(), "cannot read image")
}

func TestPdfToText_BinPath(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/custom/pdftotext")
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

func TestPdfToText_ExtractText_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.ExtractText(context.Background(), "/tmp/test.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, fallback.ErrUnavailable)
}

func TestPdfToText_ExtractText_Success(t *testing.T) {
	bin := fakeBinary(t, "pdftotext", "echo 'Extracted text content'\n")

	text, err := NewPdfToText(bin).ExtractText(context.Background(), "/tmp/dummy.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Extracted text content")
}

func TestPdfToText_StrategySupportsPDFOnly(t *testing.T) {
	s := NewPdfToText("").Strategy()
	assert.True(t, s.Supports("a/report.PDF"))
	assert.False(t, s.Supports("a/scan.png"))
}

func newTestMistral(endpoint string) *MistralOCR {
	m := NewMistralOCR("test-key", "test-model", 0)
	m.endpoint = endpoint
	return m
}

func TestMistralOCR_Defaults(t *testing.T) {
	m := NewMistralOCR("key", "", 2)
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
	assert.Equal(t, rate.Limit(2), m.limiter.limiter.Limit())
}

func TestMistralOCR_ExtractPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{ //nolint:errcheck
			{Index: 0, Markdown: "Page one content"},
			{Index: 1, Markdown: "Page two content"},
		}})
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test content"), 0o644))

	text, err := newTestMistral(srv.URL).ExtractText(context.Background(), pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "Page one content\n\nPage two content", text)
}

func TestMistralOCR_ExtractImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image_url", req.Document.Type)
		assert.Contains(t, req.Document.ImageURL, "data:image/png;base64,")
		assert.Empty(t, req.Document.DocumentURL)
		json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{{Markdown: "scanned"}}}) //nolint:errcheck
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "scan.png")
	writePNG(t, img, 2, 2)

	res := (&fallback.Chain{Name: ChainName, Strategies: []fallback.Strategy{newTestMistral(srv.URL).Strategy()}}).
		Run(context.Background(), img)
	assert.Equal(t, "mistral", res.Engine)
	assert.Equal(t, "scanned", res.Text)
	assert.Equal(t, "test-model", res.Metadata["model"])
}

func TestMistralOCR_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0o644))

	_, err := newTestMistral(srv.URL).ExtractText(context.Background(), pdfPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 401")
}

func TestMistralOCR_RateLimitedSlowsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0o644))

	m := NewMistralOCR("k", "m", 100)
	m.endpoint = srv.URL
	_, err := m.ExtractText(context.Background(), pdfPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 429")
	assert.Equal(t, rate.Limit(50), m.limiter.limiter.Limit())
}

func TestMistralOCR_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0o644))

	m := newTestMistral(srv.URL)
	m.breaker = resilience.NewBreaker("mistral", 2, time.Minute)

	for range 2 {
		_, err := m.ExtractText(context.Background(), pdfPath)
		require.Error(t, err)
		assert.NotErrorIs(t, err, fallback.ErrUnavailable)
	}
	_, err := m.ExtractText(context.Background(), pdfPath)
	assert.ErrorIs(t, err, fallback.ErrUnavailable)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, resilience.Open, m.breaker.State())
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`)) //nolint:errcheck
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0o644))

	_, err := newTestMistral(srv.URL).ExtractText(context.Background(), pdfPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

func TestMistralOCR_FileNotFound(t *testing.T) {
	_, err := NewMistralOCR("key", "model", 0).ExtractText(context.Background(), "/nonexistent/file.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr: read")
}

func TestAdaptiveLimiter(t *testing.T) {
	a := newAdaptiveLimiter(8)
	for range 5 {
		a.onRateLimit()
	}
	assert.Equal(t, rate.Limit(2), a.currentRate)

	for range 20 {
		a.onSuccess()
	}
	assert.Equal(t, rate.Limit(8), a.currentRate)

	unlimited := newAdaptiveLimiter(0)
	unlimited.onRateLimit()
	assert.Equal(t, rate.Inf, unlimited.limiter.Limit())
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()

	img := filepath.Join(dir, "chart.png")
	writePNG(t, img, 12, 7)
	meta, err := Probe(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "png", meta["format"])
	assert.Equal(t, 12, meta["width"])
	assert.Equal(t, 7, meta["height"])
	assert.Greater(t, meta["size_bytes"], int64(0))

	pdf := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
	meta, err = Probe(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, "pdf", meta["format"])
	assert.Equal(t, int64(4), meta["size_bytes"])

	bad := filepath.Join(dir, "broken.tiff")
	require.NoError(t, os.WriteFile(bad, []byte("not a tiff"), 0o644))
	meta, err = Probe(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, int64(10), meta["size_bytes"])

	_, err = Probe(context.Background(), filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestIsImage(t *testing.T) {
	for _, p := range []string{"a.png", "b.JPG", "c.tiff", "d.webp", "e.bmp"} {
		assert.True(t, IsImage(p), p)
	}
	assert.False(t, IsImage("a.pdf"))
	assert.False(t, IsImage("noext"))
}
