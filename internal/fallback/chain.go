// Package fallback runs ordered extraction strategies for media files. The
// first strategy that produces text wins; when every strategy fails the
// result is tagged unavailable instead of returning an error.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrecon/internal/metrics"
)

// EngineUnavailable is the engine name reported when every strategy failed.
const EngineUnavailable = "unavailable"

// Status values of a Result.
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
)

// Attempt outcomes.
const (
	AttemptOK          = "ok"
	AttemptSkipped     = "skipped"
	AttemptUnavailable = "unavailable"
	AttemptFailed      = "failed"
	AttemptEmpty       = "empty"
)

// ErrUnavailable marks an engine that is not installed or not configured.
var ErrUnavailable = eris.New("fallback: engine unavailable")

// ErrNoText is returned by strategies that ran but produced nothing.
var ErrNoText = eris.New("fallback: no text produced")

// Output is what a strategy extracted.
type Output struct {
	Text     string
	Metadata map[string]any
}

// Strategy is one extraction engine. Supports may be nil, meaning every file.
type Strategy struct {
	Name     string
	Supports func(path string) bool
	Extract  func(ctx context.Context, path string) (Output, error)
}

// Attempt records one strategy invocation.
type Attempt struct {
	Engine  string `json:"engine"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func (a Attempt) String() string {
	if a.Error == "" {
		return a.Engine + ": " + a.Outcome
	}
	return fmt.Sprintf("%s: %s: %s", a.Engine, a.Outcome, a.Error)
}

// Result is the uniform outcome of a chain run.
type Result struct {
	Chain    string         `json:"chain"`
	Source   string         `json:"source"`
	Engine   string         `json:"engine"`
	Status   string         `json:"status"`
	Text     string         `json:"text"`
	Warnings []string       `json:"warnings"`
	Attempts []Attempt      `json:"attempts"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Probe    map[string]any `json:"probe,omitempty"`
}

// ProbeFunc collects descriptive metadata about the source file.
type ProbeFunc func(ctx context.Context, path string) (map[string]any, error)

// Chain is an ordered list of strategies sharing one result shape.
type Chain struct {
	Name       string
	Strategies []Strategy
	Probe      ProbeFunc
}

// Append adds strategies to the end of the chain.
func (c *Chain) Append(s ...Strategy) {
	c.Strategies = append(c.Strategies, s...)
}

// Run tries each strategy in order. It never returns an error: failures are
// recorded as warnings and exhaustion yields Engine == EngineUnavailable with
// empty text.
func (c *Chain) Run(ctx context.Context, path string) Result {
	log := zap.L().With(zap.String("chain", c.Name), zap.String("path", path))
	res := Result{Chain: c.Name, Source: path}

	if c.Probe != nil {
		probe, err := c.Probe(ctx, path)
		if err != nil {
			res.Warnings = append(res.Warnings, "probe: "+err.Error())
		}
		res.Probe = probe
	}

	for _, s := range c.Strategies {
		if s.Supports != nil && !s.Supports(path) {
			res.Attempts = append(res.Attempts, Attempt{Engine: s.Name, Outcome: AttemptSkipped})
			continue
		}

		out, err := s.Extract(ctx, path)
		text := strings.TrimSpace(out.Text)
		if err == nil && text == "" {
			err = ErrNoText
		}
		if err != nil {
			a := Attempt{Engine: s.Name, Outcome: outcome(err), Error: err.Error()}
			res.Attempts = append(res.Attempts, a)
			res.Warnings = append(res.Warnings, a.String())
			log.Warn("fallback: strategy failed",
				zap.String("engine", s.Name),
				zap.String("outcome", a.Outcome),
				zap.Error(err),
			)
			continue
		}

		res.Attempts = append(res.Attempts, Attempt{Engine: s.Name, Outcome: AttemptOK})
		res.Engine = s.Name
		res.Status = StatusOK
		res.Text = text
		res.Metadata = out.Metadata
		metrics.FallbackResults.WithLabelValues(c.Name, s.Name).Inc()
		log.Debug("fallback: extracted", zap.String("engine", s.Name), zap.Int("chars", len(text)))
		return res
	}

	res.Engine = EngineUnavailable
	res.Status = StatusUnavailable
	metrics.FallbackResults.WithLabelValues(c.Name, EngineUnavailable).Inc()
	log.Warn("fallback: no engine produced text", zap.Int("attempts", len(res.Attempts)))
	return res
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return AttemptUnavailable
	case errors.Is(err, ErrNoText):
		return AttemptEmpty
	default:
		return AttemptFailed
	}
}
