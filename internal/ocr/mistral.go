package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/docrecon/internal/fallback"
	"github.com/sells-group/docrecon/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
)

// adaptiveLimiter wraps a rate.Limiter that halves its rate on 429 responses
// (down to a quarter of the initial rate) and recovers by 20% per success.
type adaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	currentRate rate.Limit
}

func newAdaptiveLimiter(rps float64) *adaptiveLimiter {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	return &adaptiveLimiter{limiter: rate.NewLimiter(r, 1), initialRate: r, currentRate: r}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *adaptiveLimiter) onSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate == rate.Inf || a.currentRate >= a.initialRate {
		return
	}
	a.currentRate = min(a.currentRate*1.2, a.initialRate)
	a.limiter.SetLimit(a.currentRate)
}

func (a *adaptiveLimiter) onRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate == rate.Inf {
		return
	}
	a.currentRate = max(a.currentRate*0.5, a.initialRate/4)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("ocr: mistral rate limited, reducing request rate",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// MistralOCR extracts text from PDFs and images using the Mistral OCR API.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	limiter  *adaptiveLimiter
	breaker  *resilience.Breaker
}

// NewMistralOCR creates a MistralOCR extractor. If model is empty, the default
// is used; rps <= 0 disables request pacing.
func NewMistralOCR(apiKey, model string, rps float64) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{},
		limiter:  newAdaptiveLimiter(rps),
		breaker:  resilience.NewBreaker("mistral", 0, 0),
	}
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// document builds the request payload for path: PDFs go as document_url,
// images as image_url, both inline data URIs.
func document(path string, data []byte) mistralOCRDocument {
	encoded := base64.StdEncoding.EncodeToString(data)
	if IsPDF(path) {
		return mistralOCRDocument{Type: "document_url", DocumentURL: "data:application/pdf;base64," + encoded}
	}
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return mistralOCRDocument{Type: "image_url", ImageURL: "data:" + mediaType + ";base64," + encoded}
}

// ExtractText reads a file, sends it to Mistral OCR, and returns the page
// markdown joined by blank lines.
func (m *MistralOCR) ExtractText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read %s", path)
	}

	bodyBytes, err := json.Marshal(mistralOCRRequest{Model: m.model, Document: document(path, data)})
	if err != nil {
		return "", eris.Wrap(err, "ocr: marshal mistral request")
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "ocr: mistral rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	if !m.breaker.Allow() {
		return "", eris.Wrap(fallback.ErrUnavailable, "ocr: mistral circuit open")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.breaker.Failure()
		return "", eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		m.breaker.Failure()
		return "", eris.Wrap(err, "ocr: read mistral response")
	}

	switch resp.StatusCode {
	case http.StatusOK:
		m.breaker.Success()
		m.limiter.onSuccess()
	case http.StatusTooManyRequests:
		m.breaker.Success()
		m.limiter.onRateLimit()
		return "", eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(respBody))
	default:
		m.breaker.Failure()
		return "", eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return "", eris.Wrap(err, "ocr: unmarshal mistral response")
	}

	var sb strings.Builder
	for i, page := range ocrResp.Pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
	}
	return sb.String(), nil
}

// Strategy adapts m to the fallback chain.
func (m *MistralOCR) Strategy() fallback.Strategy {
	return fallback.Strategy{
		Name:     "mistral",
		Supports: func(path string) bool { return IsPDF(path) || IsImage(path) },
		Extract: func(ctx context.Context, path string) (fallback.Output, error) {
			text, err := m.ExtractText(ctx, path)
			return fallback.Output{Text: text, Metadata: map[string]any{"model": m.model}}, err
		},
	}
}
